package main

import (
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/certdesk-go-api/internal/certificate"
	"github.com/noah-isme/certdesk-go-api/internal/config"
	"github.com/noah-isme/certdesk-go-api/internal/repository"
	"github.com/noah-isme/certdesk-go-api/internal/service"
)

// session is populated by the root command before any subcommand runs.
type session struct {
	cfg      config.Config
	logger   zerolog.Logger
	records  service.RecordService
	renderer *certificate.Renderer
}

func newRootCmd() *cobra.Command {
	var (
		s        session
		workbook string
		pdfDir   string
		verbose  bool
	)

	root := &cobra.Command{
		Use:           "certctl",
		Short:         "Manage student records and issue certificates from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if workbook != "" {
				cfg.WorkbookPath = workbook
			}
			if pdfDir != "" {
				cfg.PDFDir = pdfDir
			}

			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			s.cfg = cfg
			s.logger = zerolog.New(cmd.ErrOrStderr()).Level(level).With().Timestamp().Logger()

			repo, err := repository.NewWorkbookRepository(cfg.WorkbookPath)
			if err != nil {
				return err
			}
			s.records, err = service.NewRecordService(cmd.Context(), repo, validator.New(validator.WithRequiredStructEnabled()), service.RecordServiceOptions{
				Autosave:       true,
				MaxImportBytes: cfg.UploadMaxBytes,
			}, s.logger)
			if err != nil {
				return err
			}

			s.renderer = certificate.NewRenderer(certificate.Config{
				Institution:    cfg.Institution,
				Signatory:      cfg.Signatory,
				SignatoryTitle: cfg.SignatoryTitle,
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&workbook, "workbook", "w", "", "Workbook path (default from CERTDESK_STORAGE_WORKBOOK)")
	root.PersistentFlags().StringVar(&pdfDir, "pdf-dir", "", "Directory for rendered PDFs (default from CERTDESK_PDF_DIR)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newListCmd(&s))
	root.AddCommand(newNextSerialCmd(&s))
	root.AddCommand(newFindCmd(&s))
	root.AddCommand(newUpsertCmd(&s))
	root.AddCommand(newImportCmd(&s))
	root.AddCommand(newExportCmd(&s))
	root.AddCommand(newRenderCmd(&s))

	return root
}

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/certdesk-go-api/internal/certificate"
	"github.com/noah-isme/certdesk-go-api/internal/service"
)

func newRenderCmd(s *session) *cobra.Command {
	var (
		kindName   string
		genderName string
		date       string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render a certificate PDF for a stored student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := certificate.ParseKind(kindName)
			if err != nil {
				return err
			}
			gender, err := certificate.ParseGender(genderName)
			if err != nil {
				return err
			}
			if date == "" {
				date = time.Now().Format("02/01/2006")
			}

			rec, err := s.records.Get(cmd.Context(), args[0])
			if errors.Is(err, service.ErrRecordNotFound) {
				return fmt.Errorf("no student with ID %q", args[0])
			}
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := s.renderer.Render(&buf, certificate.Request{Kind: kind, Record: rec, Gender: gender, Date: date}); err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(s.cfg.PDFDir, certificate.FileName(kind, rec.ID))
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write pdf: %w", err)
			}

			s.logger.Debug().Str("kind", string(kind)).Str("student_id", rec.ID).Str("path", out).Msg("certificate rendered")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindName, "kind", "k", string(certificate.KindTestimonial), "testimonial or transfer_certificate (alias tc)")
	cmd.Flags().StringVarP(&genderName, "gender", "g", "", "male or female (required)")
	cmd.Flags().StringVar(&date, "date", "", "Issue date printed on the certificate, DD/MM/YYYY (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default <pdf-dir>/<kind>_<id>.pdf)")
	_ = cmd.MarkFlagRequired("gender")
	return cmd
}

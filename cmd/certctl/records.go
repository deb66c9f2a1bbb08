package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/noah-isme/certdesk-go-api/internal/dto"
	"github.com/noah-isme/certdesk-go-api/internal/records"
	"github.com/noah-isme/certdesk-go-api/internal/service"
)

func recordTable(rows ...records.Record) *table.Table {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(records.Columns...)
	for _, r := range rows {
		t.Row(strconv.Itoa(r.Serial), r.ID, r.Name, r.Father, r.Mother, r.Class, r.Session, r.DOB)
	}
	return t
}

func newListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every student record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := s.records.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, recordTable(result.Records...).Render())
			fmt.Fprintf(out, "%d records, next serial %d\n", result.Total, result.NextSerial)
			return nil
		},
	}
}

func newNextSerialCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "next-serial",
		Short: "Print the serial the next new record would receive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			next, err := s.records.NextSerial(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}

func newFindCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "find <id>",
		Short: "Look up a student by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := s.records.Get(cmd.Context(), args[0])
			if errors.Is(err, service.ErrRecordNotFound) {
				return fmt.Errorf("no student with ID %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), recordTable(rec).Render())
			return nil
		},
	}
}

func newUpsertCmd(s *session) *cobra.Command {
	var (
		req    dto.RecordUpsertRequest
		serial string
		fields = map[string]*string{}
	)

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Insert a student or update the fields given as flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("serial") {
				value := dto.FlexibleString(serial)
				req.Serial = &value
			}
			for name, value := range fields {
				if !cmd.Flags().Changed(name) {
					continue
				}
				v := *value
				switch name {
				case "name":
					req.Name = &v
				case "father":
					req.Father = &v
				case "mother":
					req.Mother = &v
				case "class":
					req.Class = &v
				case "session":
					req.Session = &v
				case "dob":
					req.DOB = &v
				}
			}

			result, err := s.records.Upsert(cmd.Context(), req)
			if err != nil {
				return err
			}
			action := "updated"
			if result.Created {
				action = "created"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s student %s\n", action, result.Record.ID)
			fmt.Fprintln(out, recordTable(result.Record).Render())
			if !result.Saved {
				return fmt.Errorf("workbook %s was not saved", s.cfg.WorkbookPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Student ID (required)")
	cmd.Flags().StringVar(&serial, "serial", "", "Serial number; defaults to the next serial for new students")
	for _, name := range []string{"name", "father", "mother", "class", "session", "dob"} {
		fields[name] = cmd.Flags().String(name, "", fmt.Sprintf("Student %s", name))
	}
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the table with the contents of an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			result, err := s.records.Import(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records from %s (%s), next serial %d\n",
				result.Records, args[0], result.Format, result.NextSerial)
			if !result.Saved {
				return fmt.Errorf("workbook %s was not saved", result.Path)
			}
			return nil
		},
	}
}

func newExportCmd(s *session) *cobra.Command {
	var formatName string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the table to an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				format records.Format
				err    error
			)
			if formatName != "" {
				format, err = records.ParseFormat(formatName)
			} else {
				format, err = records.FormatFromPath(args[0])
			}
			if err != nil {
				return err
			}

			result, err := s.records.Export(cmd.Context(), format)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], result.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "", "xlsx or csv; inferred from the file extension when empty")
	return cmd
}

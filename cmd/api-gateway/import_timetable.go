package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/pkg/tabular"
)

type importOptions struct {
	file   string
	report string
}

func newImportTimetableCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import-timetable",
		Short: "Replace the weekly timetable from a CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := sessionFrom(cmd)

			f, err := os.Open(opts.file)
			if err != nil {
				return fmt.Errorf("open %s: %w", opts.file, err)
			}
			defer f.Close()

			a, err := newApp(cmd.Context(), sess.cfg, sess.logger)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			result, importErr := a.importer.Import(cmd.Context(), f)
			if result != nil {
				if opts.report != "" && len(result.MissingTeachers) > 0 {
					if err := writeMissingReport(opts.report, result); err != nil {
						return err
					}
					sess.logger.Info("missing teacher report written", zap.String("path", opts.report))
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			}
			return importErr
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Timetable CSV file (required)")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write unresolved teacher names to this CSV file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func writeMissingReport(path string, result *dto.TimetableImportResult) error {
	data := tabular.Dataset{Headers: []string{"Teacher"}}
	for _, name := range result.MissingTeachers {
		data.Rows = append(data.Rows, map[string]string{"Teacher": name})
	}
	body, err := tabular.RenderCSV(data)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

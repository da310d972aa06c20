package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

// ValidateReport is the JSON output of the validate command.
type ValidateReport struct {
	File        string                 `json:"file"`
	Valid       bool                   `json:"valid"`
	RecordCount int                    `json:"recordCount"`
	Errors      []core.ValidationError `json:"errors"`
	Sheets      []core.SheetResult     `json:"sheets"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workbook.xlsx>",
		Short: "Check a workbook without importing it",
		Long: `Run the upload validation on a local workbook and report the rows
that would be imported and the rows and sheets that would be rejected.

Exits with status 1 when anything was rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd.OutOrStdout())
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, out io.Writer) error {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return commandError(path, core.ErrNotXLSX)
	}

	fh, err := os.Open(path)
	if err != nil {
		return commandError("open workbook", err)
	}
	defer fh.Close()

	f, err := core.OpenWorkbook(fh)
	if err != nil {
		return commandError(path, err)
	}
	defer f.Close()

	result, err := core.ProcessWorkbook(f)
	if err != nil {
		return commandError(path, fmt.Errorf("%w: %v", core.ErrInvalidWorkbook, err))
	}

	report := ValidateReport{
		File:        filepath.Base(path),
		Valid:       len(result.Errors) == 0,
		RecordCount: len(result.ValidRecords()),
		Errors:      result.Errors,
		Sheets:      result.Sheets,
	}
	slog.Debug("workbook validated",
		"file", report.File,
		"sheets", len(report.Sheets),
		"records", report.RecordCount,
		"errors", len(report.Errors),
	)

	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if !report.Valid {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d row(s) or sheet(s) rejected", len(report.Errors))}
	}
	return nil
}

func printReport(w io.Writer, r ValidateReport) {
	for _, s := range r.Sheets {
		fmt.Fprintf(w, "%s: %d valid row(s)\n", s.Name, len(s.Rows))
	}
	for _, e := range r.Errors {
		if e.Row > 0 {
			fmt.Fprintf(w, "✗ %s row %d: %s\n", e.Sheet, e.Row, e.Message)
		} else {
			fmt.Fprintf(w, "✗ %s: %s\n", e.Sheet, e.Message)
		}
	}
	if r.Valid {
		fmt.Fprintf(w, "✓ %d record(s) valid\n", r.RecordCount)
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <snapshot.json>",
		Short: "Write a JSON snapshot as an .xlsx workbook",
		Long: `Render a snapshot as a workbook with one sheet per entry.

The snapshot is either the body accepted by /api/import ({"data": [...]})
or a bare array of sheets. Use "-" to read it from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, args[0], output, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "export.xlsx", "path of the workbook to write")

	return cmd
}

func runExport(opts *RootOptions, input, output string, stdin io.Reader, out io.Writer) error {
	var (
		raw []byte
		err error
	)
	if input == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(input)
	}
	if err != nil {
		return commandError("read snapshot", err)
	}

	sheets, err := decodeSheets(raw)
	if err != nil {
		return commandError(input, err)
	}

	var buf bytes.Buffer
	if err := core.WriteWorkbook(&buf, sheets); err != nil {
		return commandError("build workbook", err)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return commandError("write workbook", err)
	}

	rows := 0
	for _, s := range sheets {
		rows += len(s.Rows)
	}

	if opts.Format == "json" {
		return json.NewEncoder(out).Encode(map[string]any{
			"output": output,
			"sheets": len(sheets),
			"rows":   rows,
		})
	}
	fmt.Fprintf(out, "✓ wrote %d sheet(s), %d row(s) to %s\n", len(sheets), rows, output)
	return nil
}

// decodeSheets accepts {"data": [...]} or a bare array of sheets.
func decodeSheets(raw []byte) ([]core.SheetResult, error) {
	raw = bytes.TrimSpace(raw)

	var sheets []core.SheetResult
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &sheets); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidSnapshot, err)
		}
	} else {
		var body struct {
			Data []core.SheetResult `json:"data"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidSnapshot, err)
		}
		sheets = body.Data
	}

	if len(sheets) == 0 {
		return nil, core.ErrEmptySnapshot
	}
	return sheets, nil
}

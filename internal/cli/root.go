// Package cli implements the sheetimport command line tool.
//
// The commands work on local files only and never touch the record store:
// validate reports what an upload would accept, export turns a JSON
// snapshot into a workbook.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the workbook had rejected rows or sheets
	ExitCommandError = 2 // unreadable input, bad flags
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sheetimport",
		Short: "Validate and export fixed-schema spreadsheets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			// Diagnostics go to stderr so JSON output stays parseable.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), level, "text"))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode extracts the exit code from an error, defaulting to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorMessage renders err for the terminal. Known failures get the coded
// user message with the technical detail below it.
func ErrorMessage(err error) string {
	if !core.IsUserFacing(err) {
		return "error: " + err.Error()
	}
	userErr := core.NewUserError(err)
	return fmt.Sprintf("error: %s\n  %v", core.FormatUserError(err), userErr.Unwrap())
}

func commandError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: message, Err: err}
}

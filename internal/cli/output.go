package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mmynk/billbuddy/internal/service"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation was refused (validation, not found, conflict...)
	ExitCommandError = 2 // The program could not run (database, migrations, config)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// reported is set once the error has been shown to the user.
	reported bool
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// resultJSON is the JSON shape of a service.Result.
type resultJSON struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Printer writes command output as text or JSON.
type Printer struct {
	Format string
	Out    io.Writer
	Err    io.Writer
}

// Result prints the outcome of an operation with optional data.
// text is only used in text format.
func (p *Printer) Result(res service.Result, data any, text func(w io.Writer)) error {
	if p.Format == "json" {
		out := resultJSON{Success: res.Success, Message: res.Message, Data: data}
		if res.Error != nil {
			out.Error = string(res.Error.Kind)
		}
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !res.Success {
		fmt.Fprintf(p.Err, "Error [%s]: %s\n", res.Error.Kind, res.Message)
		return nil
	}
	if res.Message != "" {
		fmt.Fprintln(p.Out, res.Message)
	}
	if text != nil {
		text(p.Out)
	}
	return nil
}

// Report prints res and turns a failure into an exit error.
func (p *Printer) Report(err error, data any, text func(w io.Writer), format string, args ...any) error {
	res := service.ResultOf(err, format, args...)
	if perr := p.Result(res, data, text); perr != nil {
		return perr
	}
	if !res.Success {
		return &ExitError{Code: ExitFailure, Message: res.Message, Err: err, reported: true}
	}
	return nil
}

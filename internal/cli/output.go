package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/pipec/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Invalid pipeline or failed scenarios
	ExitCommandError = 2 // Command error (unreadable file, bad flags, etc.)
)

// Error codes for command-level failures. Pipeline diagnostics carry their
// own E/W codes.
const (
	ErrCodeGeneric      = "E_GENERIC"
	ErrCodeNotFound     = "E_NOT_FOUND"
	ErrCodeBadInput     = "E_BAD_INPUT"
	ErrCodeBadContext   = "E_BAD_CONTEXT"
	ErrCodeConfig       = "E_CONFIG"
	ErrCodeInvalid      = "E_INVALID_PIPELINE"
	ErrCodeTestFailed   = "E_TEST_FAILED"
	ErrCodeCache        = "E_CACHE"
	ErrCodeWriteFailure = "E_WRITE"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E101", "E_NOT_FOUND", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Invalid outputs a failed compile. data carries the full payload in JSON
// mode; text mode lists the diagnostics.
func (f *OutputFormatter) Invalid(data any, errs ir.Diagnostics) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "error", Data: data}
		if len(errs) > 0 {
			resp.Error = &CLIError{Code: errs[0].Code, Message: errs[0].Message}
		}
		return f.encode(resp)
	}

	fmt.Fprintln(f.Writer, "✗ Pipeline invalid")
	fmt.Fprintln(f.Writer)
	f.Diagnostics(errs)
	return nil
}

// Diagnostics prints one block per diagnostic in text mode.
func (f *OutputFormatter) Diagnostics(diags ir.Diagnostics) {
	for _, d := range diags {
		if d.Location != "" {
			fmt.Fprintf(f.Writer, "%s\n", d.Location)
		}
		fmt.Fprintf(f.Writer, "  %s %s: %s\n\n", d.Code, d.Kind, d.Message)
	}
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// fail prints a command-level error and returns it as an ExitCommandError.
func (f *OutputFormatter) fail(code, message string, err error) error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, msg, nil)
	return WrapExitError(ExitCommandError, message, err)
}

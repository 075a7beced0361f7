package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/txn"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The engine refused or failed the mutation
	ExitCommandError = 2 // Command error (bad config, storage not readable, etc.)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric   = "E001" // Generic/unknown error
	ErrCodeConfig    = "E002" // Configuration could not be loaded
	ErrCodeStorage   = "E003" // Engine storage could not be opened
	ErrCodeNotFound  = "E004" // Catalog not found
	ErrCodeConflict  = "E101" // Another transaction holds the catalog
	ErrCodeTimeout   = "E102" // Engine state lock not acquired in time
	ErrCodeInvalid   = "E103" // Mutation not applicable to the current state
	ErrCodeExecution = "E104" // Mutation admitted but failed while running
)

// ExitError carries the process exit code for an error.
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

// ErrorCode classifies a mutation error for CLI output.
func ErrorCode(err error) string {
	switch {
	case txn.IsConflict(err):
		return ErrCodeConflict
	case txn.IsTransactionTimedOut(err):
		return ErrCodeTimeout
	case errors.Is(err, mutation.ErrCatalogNotFound):
		return ErrCodeNotFound
	case txn.IsInvalidMutation(err):
		return ErrCodeInvalid
	default:
		return ErrCodeExecution
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// textRenderer is implemented by payloads with a human-readable form.
type textRenderer interface {
	renderText(w io.Writer)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	if r, ok := data.(textRenderer); ok {
		r.renderText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return nil
}

// fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) fail(exitCode int, code, message string, err error) error {
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err))
	return WrapExitError(exitCode, message, err)
}

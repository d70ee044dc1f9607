package core

import "fmt"

// Exit codes returned by the heosq CLI.
const (
	ExitOK       = 0
	ExitRuntime  = 1
	ExitUsage    = 2
	ExitNotFound = 4
)

// Reply error codes carried on the wire.
const (
	CodeInvalid  = "INVALID"
	CodeNotFound = "NOT_FOUND"
	CodeRuntime  = "RUNTIME"
)

// CLIError carries a user-visible message and exit code.
type CLIError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// WrapError creates a CLIError with an underlying error.
func WrapError(code int, msg string, err error) *CLIError {
	return &CLIError{Code: code, Msg: msg, Err: err}
}

// ErrorForReplyCode maps protocol error codes to CLI exit codes.
func ErrorForReplyCode(code string, message string) *CLIError {
	switch code {
	case CodeInvalid:
		return &CLIError{Code: ExitUsage, Msg: message}
	case CodeNotFound:
		return &CLIError{Code: ExitNotFound, Msg: message}
	default:
		return &CLIError{Code: ExitRuntime, Msg: message}
	}
}

// ReplyCodeForError maps an error to a wire code for the reply envelope.
func ReplyCodeForError(err error) string {
	cliErr, ok := err.(*CLIError)
	if !ok {
		return CodeRuntime
	}
	switch cliErr.Code {
	case ExitUsage:
		return CodeInvalid
	case ExitNotFound:
		return CodeNotFound
	default:
		return CodeRuntime
	}
}

// ExitCode returns the CLI exit code from error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if cliErr, ok := err.(*CLIError); ok {
		return cliErr.Code
	}
	return ExitRuntime
}

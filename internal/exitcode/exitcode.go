// Package exitcode maps command failures onto process exit codes.
package exitcode

import "errors"

const (
	Success   = 0
	Error     = 1
	Cancelled = 130 // 128 + SIGINT
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code    int
	Message string
}

func (e ExitError) Error() string {
	return e.Message
}

func Failed(msg string) ExitError { return ExitError{Code: Error, Message: msg} }
func Cancel() ExitError           { return ExitError{Code: Cancelled, Message: "cancelled"} }

// FromError returns the exit code for err, looking through wrapping.
// Errors without a code exit with Error.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return Error
}

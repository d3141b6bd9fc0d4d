package exitcode

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Success            = 0
	GeneralError       = 1
	InteractiveOnly    = 6
	ConfigError        = 8
	PrerequisitesUnmet = 10
	CredentialsMissing = 11
	WriteFailed        = 12
	Cancelled          = 130
)

// ExitError wraps an error with a semantic exit code and machine-readable code string.
type ExitError struct {
	Err      error
	ExitCode int
	Code     string
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// New creates an ExitError with the given code, exit code, and message.
func New(code string, exitCode int, msg string) *ExitError {
	return &ExitError{
		Err:      errors.New(msg),
		ExitCode: exitCode,
		Code:     code,
	}
}

// Wrap creates an ExitError wrapping an existing error.
func Wrap(code string, exitCode int, err error) *ExitError {
	return &ExitError{
		Err:      err,
		ExitCode: exitCode,
		Code:     code,
	}
}

// Classify returns (code, exitCode) for err. An ExitError anywhere in the
// chain wins; otherwise common message patterns are matched.
func Classify(err error) (string, int) {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code, ee.ExitCode
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "cancelled"):
		return "cancelled", Cancelled
	case strings.Contains(msg, "parsing stackup.yaml"), strings.Contains(msg, "parsing template"):
		return "config_error", ConfigError
	case strings.Contains(msg, "requires an interactive terminal"):
		return "interactive_only", InteractiveOnly
	default:
		return "error", GeneralError
	}
}

// Errorf is a convenience for New with a formatted message.
func Errorf(code string, exitCode int, format string, args ...any) *ExitError {
	return &ExitError{
		Err:      fmt.Errorf(format, args...),
		ExitCode: exitCode,
		Code:     code,
	}
}

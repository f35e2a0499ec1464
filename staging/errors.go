package staging

import (
	"fmt"

	"github.com/pkg/errors"
)

const offlineMessage = "Cannot use Staging features in Offline mode, as REST Requests are needed to be made against NXRM"

// ExecutionError reports a goal that could not run: bad parameters, missing files or configuration.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }

// FailureError reports a goal that ran but whose remote work failed.
type FailureError struct {
	Err error
}

func (e *FailureError) Error() string { return e.Err.Error() }
func (e *FailureError) Unwrap() error { return e.Err }

func executionError(format string, args ...interface{}) error {
	return &ExecutionError{Err: fmt.Errorf(format, args...)}
}

func wrapExecution(err error, message string) error {
	return &ExecutionError{Err: errors.Wrap(err, message)}
}

func failure(err error) error {
	return &FailureError{Err: err}
}

func IsFailure(err error) bool {
	var f *FailureError
	return errors.As(err, &f)
}

func IsExecution(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}

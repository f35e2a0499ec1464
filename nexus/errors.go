package nexus

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidArgument = errors.New("invalid argument")

// RepositoryManagerError is returned for every request that reached the transport layer and did not succeed.
type RepositoryManagerError struct {
	Message string
	// StatusCode is zero when no response was received.
	StatusCode int
	// ResponseMessage is the message NXRM put in the response body, if any.
	ResponseMessage string
	Err             error
}

func (e *RepositoryManagerError) Error() string {
	msg := e.Message
	if e.ResponseMessage != "" {
		msg += ": " + e.ResponseMessage
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RepositoryManagerError) Unwrap() error {
	return e.Err
}

func unsuccessful(requestName string, statusCode int, responseMessage string) *RepositoryManagerError {
	return &RepositoryManagerError{
		Message:         fmt.Sprintf("%s was unsuccessful (%d response from server)", requestName, statusCode),
		StatusCode:      statusCode,
		ResponseMessage: responseMessage,
	}
}

func unableToComplete(requestName string, err error) *RepositoryManagerError {
	return &RepositoryManagerError{
		Message: fmt.Sprintf("%s was unable to complete", requestName),
		Err:     err,
	}
}

func checkArgument(expression bool, format string, args ...interface{}) error {
	if expression {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

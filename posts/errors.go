package posts

import (
	"fmt"
	"net/http"
)

// NotFoundError is an error used to encode when the requested post
// (or attachment) no longer exists on the server
type NotFoundError struct {
	Operation string
	ID        int
}

// NewNotFoundError constructs a new NotFoundError
func NewNotFoundError(operation string, id int) *NotFoundError {
	return &NotFoundError{
		Operation: operation,
		ID:        id,
	}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot %s: post with ID '%d' not found", e.Operation, e.ID)
}

// HTTPStatusCode gets the status code the error corresponds to
func (e *NotFoundError) HTTPStatusCode() int {
	return http.StatusNotFound
}

// UnauthorizedError is an error used to encode when the server rejected
// the request because the session lacks (sufficient) credentials
type UnauthorizedError struct {
	Operation  string
	StatusCode int
}

// NewUnauthorizedError constructs a new UnauthorizedError
func NewUnauthorizedError(operation string, statusCode int) *UnauthorizedError {
	return &UnauthorizedError{
		Operation:  operation,
		StatusCode: statusCode,
	}
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("cannot %s: not authorized (status %d)", e.Operation, e.StatusCode)
}

// ValidationError is an error used to encode when the server rejected
// the submitted payload as invalid
type ValidationError struct {
	Operation string
	Message   string
}

// NewValidationError constructs a new ValidationError
func NewValidationError(operation string, message string) *ValidationError {
	return &ValidationError{
		Operation: operation,
		Message:   message,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Operation, e.Message)
}

// StatusError is an error used to encode any other non-2xx response
type StatusError struct {
	Operation  string
	StatusCode int
	Message    string
}

// NewStatusError constructs a new StatusError
func NewStatusError(operation string, statusCode int, message string) *StatusError {
	return &StatusError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
	}
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cannot %s: server responded with status %d: %s",
			e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cannot %s: server responded with status %d",
		e.Operation, e.StatusCode)
}

// InvalidResponseError is an error used to encode when a 2xx response body
// did not match the expected shape and was rejected instead of trusted
type InvalidResponseError struct {
	Operation string
	Reason    string
}

// NewInvalidResponseError constructs a new InvalidResponseError
func NewInvalidResponseError(operation string, reason string) *InvalidResponseError {
	return &InvalidResponseError{
		Operation: operation,
		Reason:    reason,
	}
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("cannot %s: response body is invalid: %s", e.Operation, e.Reason)
}

// FileTooLargeError is an error used to encode when an attachment exceeds
// the upload size limit; it is raised before any network request is made
type FileTooLargeError struct {
	Filename string
	Size     int64
	Limit    int64
}

// NewFileTooLargeError constructs a new FileTooLargeError
func NewFileTooLargeError(filename string, size int64, limit int64) *FileTooLargeError {
	return &FileTooLargeError{
		Filename: filename,
		Size:     size,
		Limit:    limit,
	}
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file '%s' is %d bytes, which exceeds the upload limit of %d bytes",
		e.Filename, e.Size, e.Limit)
}

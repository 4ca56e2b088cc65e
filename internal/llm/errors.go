package llm

import (
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// TransientError is a temporary failure that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }

func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError is a permanent failure that must not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }

func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError marks err as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// classify wraps a GenerateContent error by its HTTP status. Rate limits and
// server errors are transient; everything else, including unknown errors, is
// fatal.
func classify(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusTooManyRequests:
		return NewTransientError(err)
	case code >= http.StatusInternalServerError:
		return NewTransientError(err)
	case code == http.StatusRequestTimeout:
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}

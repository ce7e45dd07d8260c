package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable covers transport failures, 5xx answers and
	// undecodable bodies. The operation may be retried.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrBadQuery is a 4xx answer to a read.
	ErrBadQuery = errors.New("provider rejected query")
	// ErrValidationRejected is a 4xx answer to a limit submission.
	ErrValidationRejected = errors.New("provider rejected limit decision")
	// ErrInvalidBaseURL is returned by NewClient.
	ErrInvalidBaseURL = errors.New("invalid provider base url")
)

// Error describes a failed provider operation. errors.Is matches Kind and
// the underlying cause.
type Error struct {
	Op         string
	Kind       error
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: %v: HTTP %d: %s", e.Op, e.Kind, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %v: HTTP %d", e.Op, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether repeating the same call can succeed.
func (e *Error) Retryable() bool {
	return errors.Is(e.Kind, ErrProviderUnavailable)
}

// IsRetryable reports whether err is a retryable provider failure.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// statusKind maps an HTTP status to an error kind. write selects the
// submission mapping for 4xx answers.
func statusKind(status int, write bool) error {
	switch {
	case status >= 500:
		return ErrProviderUnavailable
	case status >= 400 && write:
		return ErrValidationRejected
	case status >= 400:
		return ErrBadQuery
	default:
		return ErrProviderUnavailable
	}
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidationRejected):
		return "validation_rejected"
	case errors.Is(err, ErrBadQuery):
		return "bad_query"
	default:
		return "unavailable"
	}
}

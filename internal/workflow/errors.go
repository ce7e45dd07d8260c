package workflow

import "errors"

var (
	// ErrInvalidState is returned for a command the current state does not accept.
	ErrInvalidState = errors.New("workflow: command not valid in current state")
	// ErrSubmissionInFlight is returned while a decision is being submitted.
	ErrSubmissionInFlight = errors.New("workflow: a submission is already in flight")
	// ErrNotConfirmed is returned when the operator declines a revocation.
	ErrNotConfirmed = errors.New("workflow: revocation not confirmed")
	// ErrForbidden is returned when the operator may not decide limits.
	ErrForbidden = errors.New("workflow: operator is not allowed to decide limits")
	// ErrEmptyDraft is returned when submitting without a limit value.
	ErrEmptyDraft = errors.New("workflow: draft has no limit value")
)

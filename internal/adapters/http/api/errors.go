package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/creditconsole/internal/adapters/provider"
	service "github.com/okian/creditconsole/internal/app"
	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/internal/workflow"
	"github.com/okian/creditconsole/pkg/logger"
)

// ErrBadRequest marks a malformed or invalid request body or query.
var ErrBadRequest = errors.New("bad request")

// validationError carries per-field messages.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string { return "validation failed" }
func (e *validationError) Unwrap() error { return ErrBadRequest }

// errorKind maps an error to its HTTP status and code.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownTab):
		return http.StatusBadRequest, "unknown_tab"
	case errors.Is(err, model.ErrNoEntitySelected):
		return http.StatusConflict, "no_entity_selected"
	case errors.Is(err, service.ErrDashboardNotLoaded):
		return http.StatusConflict, "dashboard_not_loaded"
	case errors.Is(err, workflow.ErrSubmissionInFlight):
		return http.StatusConflict, "submission_in_flight"
	case errors.Is(err, workflow.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, workflow.ErrNotConfirmed):
		return http.StatusConflict, "not_confirmed"
	case errors.Is(err, workflow.ErrEmptyDraft):
		return http.StatusUnprocessableEntity, "empty_draft"
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, provider.ErrValidationRejected):
		return http.StatusUnprocessableEntity, "validation_rejected"
	case errors.Is(err, provider.ErrBadQuery):
		return http.StatusBadRequest, "bad_query"
	case errors.Is(err, provider.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := errorKind(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed", logger.Error(err))
	}
	resp := errorResponse{Code: code, Message: err.Error()}
	var ve *validationError
	if errors.As(err, &ve) {
		resp.Details = ve.fields
	}
	writeJSON(w, status, resp)
}

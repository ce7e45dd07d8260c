package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type draftRequest struct {
	Limit *float64 `json:"limit"`
	Note  string   `json:"note" validate:"max=500"`
}

type revokeRequest struct {
	// Name, when set, must match the entity name shown to the operator.
	Name    string `json:"name" validate:"max=200"`
	Confirm bool   `json:"confirm"`
}

func (s *Server) handleOpenLimit(w http.ResponseWriter, r *http.Request) {
	if err := s.console.OpenLimit(r.Context()); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.View().Workflow)
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.console.UpdateLimitDraft(req.Limit, req.Note); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.View().Workflow)
}

func (s *Server) handleSubmitLimit(w http.ResponseWriter, r *http.Request) {
	if err := s.console.SubmitLimit(r.Context()); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.View())
}

func (s *Server) handleCloseLimit(w http.ResponseWriter, r *http.Request) {
	if err := s.console.CloseLimit(); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.View().Workflow)
}

// handleRevoke revokes the limit of the entity in the path without changing
// the selection. The request body is the operator's confirmation.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	id := chi.URLParam(r, "id")
	confirm := func(_ context.Context, _, displayName string) bool {
		if !req.Confirm {
			return false
		}
		return req.Name == "" || strings.EqualFold(strings.TrimSpace(req.Name), strings.TrimSpace(displayName))
	}
	if err := s.console.RevokeLimit(r.Context(), id, confirm); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.View())
}

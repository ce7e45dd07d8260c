package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/creditconsole/internal/domain/ranking"
	"github.com/okian/creditconsole/pkg/logger"
)

type filterRequest struct {
	EntityID     string `json:"entity_id" validate:"max=128"`
	WindowMonths int    `json:"window_months" validate:"gte=0,lte=120"`
	Start        string `json:"start" validate:"max=10"`
	End          string `json:"end" validate:"max=10"`
}

type tabRequest struct {
	Tab string `json:"tab" validate:"required,oneof=decision behavior portfolio limits"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.console.View())
}

// Read failures do not fail the request: they are reported in the view
// status and the console stays usable.
func (s *Server) logReadError(ctx context.Context, what string, err error) {
	if err != nil {
		s.logger.Warn(ctx, "read degraded", logger.String("what", what), logger.Error(err))
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.logReadError(r.Context(), "refresh", s.console.Refresh(r.Context()))
	writeJSON(w, http.StatusOK, s.console.View())
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	window := ""
	if req.WindowMonths > 0 {
		window = strconv.Itoa(req.WindowMonths)
	}
	_, err := s.console.SetFilter(r.Context(), req.EntityID, window, req.Start, req.End)
	s.logReadError(r.Context(), "filter", err)
	writeJSON(w, http.StatusOK, s.console.View())
}

func (s *Server) handleSetTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.console.SetTab(req.Tab); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.View())
}

func (s *Server) handleSelectEntity(w http.ResponseWriter, r *http.Request) {
	_, err := s.console.SelectEntity(r.Context(), chi.URLParam(r, "id"))
	s.logReadError(r.Context(), "select", err)
	writeJSON(w, http.StatusOK, s.console.View())
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.console.LoadEntities(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := ranking.Options{
		SortBy:     ranking.ParseSortKey(q.Get("sort")),
		NameFilter: q.Get("name"),
	}
	if raw := strings.TrimSpace(q.Get("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(r.Context(), w, fmt.Errorf("%w: top must be a non-negative integer", ErrBadRequest))
			return
		}
		opts.TopN = n
	}
	writeJSON(w, http.StatusOK, s.console.Ranking(opts))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	text, err := s.console.Summary()
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: text})
}

// Package api exposes the console orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/creditconsole/internal/adapters/http/swagger"
	service "github.com/okian/creditconsole/internal/app"
	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/internal/domain/ranking"
	"github.com/okian/creditconsole/internal/workflow"
	"github.com/okian/creditconsole/pkg/logger"
)

// Console is the command and query surface the handlers drive.
type Console interface {
	View() service.View
	SetFilter(ctx context.Context, rawEntity, rawWindow, rawStart, rawEnd string) (model.QuerySpec, error)
	SelectEntity(ctx context.Context, entityID string) (model.QuerySpec, error)
	Refresh(ctx context.Context) error
	SetTab(tab string) error
	LoadEntities(ctx context.Context, nameFilter string) ([]model.EntityRef, error)
	Ranking(opts ranking.Options) []model.EntityRankingRow
	Summary() (string, error)

	OpenLimit(ctx context.Context) error
	UpdateLimitDraft(limit *float64, note string) error
	SubmitLimit(ctx context.Context) error
	RevokeLimit(ctx context.Context, entityID string, confirm workflow.Confirmer) error
	CloseLimit() error
}

// Server wires HTTP routes for the console.
type Server struct {
	console Console
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the API server.
func NewServer(console Console, opts ...Option) *Server {
	s := &Server{console: console, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the console router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", metricsHandler())
	swagger.Register(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/view", s.handleView)
		r.Post("/refresh", s.handleRefresh)
		r.Put("/filter", s.handleSetFilter)
		r.Put("/tab", s.handleSetTab)
		r.Get("/entities", s.handleEntities)
		r.Post("/entities/{id}/select", s.handleSelectEntity)
		r.Post("/entities/{id}/revoke", s.handleRevoke)
		r.Get("/ranking", s.handleRanking)
		r.Get("/summary", s.handleSummary)

		r.Route("/limit", func(r chi.Router) {
			r.Post("/open", s.handleOpenLimit)
			r.Put("/draft", s.handleUpdateDraft)
			r.Post("/submit", s.handleSubmitLimit)
			r.Post("/close", s.handleCloseLimit)
		})
	})
	return r
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package fake

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/creditconsole/internal/adapters/provider"
	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/pkg/logger"
)

const defaultQueryMonths = 12

// Server serves a Portfolio with an append-only limit history.
type Server struct {
	portfolio Portfolio
	logger    logger.Logger
	latency   time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	history map[string][]model.LimitDecision // newest last
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

// WithLatency delays every dashboard answer, to surface out-of-order
// responses in the console.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithClock overrides the time source used to stamp decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer wraps p.
func NewServer(p Portfolio, opts ...Option) *Server {
	s := &Server{
		portfolio: p,
		logger:    logger.Nop(),
		now:       time.Now,
		history:   make(map[string][]model.LimitDecision),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the provider HTTP surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/dashboard/clinicas", s.listEntities)
	r.Get("/dashboard", s.dashboard)
	r.Get("/clinicas/{id}/limites", s.limitHistory)
	r.Post("/clinicas/{id}/limite_aprovado", s.submitLimit)
	return r
}

// History returns the decisions recorded for id, newest first.
func (s *Server) History(id string) []model.LimitDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.history[id]
	out := make([]model.LimitDecision, len(recs))
	for i, d := range recs {
		out[len(recs)-1-i] = d
	}
	return out
}

func (s *Server) approved() map[string]*float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*float64, len(s.history))
	for id, recs := range s.history {
		if len(recs) > 0 {
			out[id] = recs[len(recs)-1].ApprovedLimit
		}
	}
	return out
}

func (s *Server) listEntities(w http.ResponseWriter, _ *http.Request) {
	out := make([]provider.EntityDTO, 0, len(s.portfolio.Entities))
	for _, e := range s.portfolio.Entities {
		out = append(out, provider.EntityFromModel(e.Ref))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	spec, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}
	payload, err := s.portfolio.Dashboard(spec, s.approved())
	if errors.Is(err, ErrUnknownEntity) {
		writeError(w, http.StatusNotFound, "clinica not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, provider.DashboardFromModel(payload))
}

// parseQuery reads meses, inicio, fim and clinica_id. A range supersedes
// meses; a malformed value is a bad request.
func parseQuery(r *http.Request) (model.QuerySpec, error) {
	q := r.URL.Query()
	spec := model.QuerySpec{EntityID: model.AllEntities}
	if id := q.Get("clinica_id"); id != "" {
		spec.EntityID = id
	}
	if q.Get("inicio") != "" || q.Get("fim") != "" {
		start, okStart := model.ParseYearMonth(q.Get("inicio"))
		end, okEnd := model.ParseYearMonth(q.Get("fim"))
		if !okStart || !okEnd {
			return spec, errors.New("inicio and fim must both be months")
		}
		spec.Window = model.RangeWindow(start, end)
		return spec, spec.Validate()
	}
	months := defaultQueryMonths
	if m := q.Get("meses"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return spec, errors.New("meses must be an integer")
		}
		months = n
	}
	spec.Window = model.RollingWindow(months)
	return spec, spec.Validate()
}

func (s *Server) limitHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.portfolio.Entity(id); !ok {
		writeError(w, http.StatusNotFound, "clinica not found")
		return
	}
	recs := s.History(id)
	out := make([]provider.DecisionDTO, 0, len(recs))
	for _, d := range recs {
		out = append(out, provider.DecisionFromModel(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) submitLimit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.portfolio.Entity(id); !ok {
		writeError(w, http.StatusNotFound, "clinica not found")
		return
	}
	var body provider.DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if v := body.ApprovedLimit.Value; v != nil && *v < 0 {
		writeError(w, http.StatusUnprocessableEntity, "limite_aprovado must not be negative")
		return
	}
	if body.ApprovedBy == "" {
		writeError(w, http.StatusUnprocessableEntity, "aprovado_por is required")
		return
	}

	decision := body.ToModel()
	decision.ApprovedAt = s.now().UTC()
	s.mu.Lock()
	s.history[id] = append(s.history[id], decision)
	s.mu.Unlock()

	s.logger.Info(r.Context(), "limit decision recorded",
		logger.String("entity", id),
		logger.String("approved_by", decision.ApprovedBy),
		logger.Bool("revocation", decision.IsRevocation()))
	writeJSON(w, http.StatusCreated, provider.DecisionFromModel(decision))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// Package service is the console orchestrator. It owns the filter state,
// fetches provider data, discards out-of-order responses and exposes a
// read-only view-model plus the command surface used by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/okian/creditconsole/internal/adapters/provider"
	"github.com/okian/creditconsole/internal/domain/filter"
	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/internal/domain/ranking"
	"github.com/okian/creditconsole/internal/domain/summary"
	"github.com/okian/creditconsole/internal/workflow"
	"github.com/okian/creditconsole/pkg/logger"
	"github.com/okian/creditconsole/pkg/metrics"
)

const (
	defaultTopN     = 5
	entitiesKey     = "entities"
	resourceDash    = "dashboard"
	resourceHistory = "history"
)

// Service coordinates the console. Create one per operator session with New.
type Service struct {
	gateway  provider.Gateway
	resolver *filter.Resolver
	logger   logger.Logger
	identity model.Identity
	topN     int
	now      func() time.Time
	workflow *workflow.Workflow
	loads    singleflight.Group

	mu       sync.RWMutex
	spec     model.QuerySpec
	tab      Tab
	payload  *model.DashboardPayload
	derived  derived
	history  []model.LimitDecision
	entities []model.EntityRef
	dashSeq  uint64
	histSeq  uint64
	status   Statuses
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithResolver sets the filter resolver.
func WithResolver(r *filter.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithIdentity sets the operator.
func WithIdentity(id model.Identity) Option {
	return func(s *Service) {
		s.identity = id
	}
}

// WithTopN sets how many rows the ranking shows.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service reading from gateway. The initial filter is the
// whole portfolio over the resolver's default window; nothing is fetched
// until a command or reload runs.
func New(gateway provider.Gateway, opts ...Option) *Service {
	s := &Service{
		gateway:  gateway,
		resolver: filter.NewResolver(),
		logger:   logger.Nop(),
		identity: model.Identity{Role: model.RoleAdmin},
		topN:     defaultTopN,
		now:      time.Now,
		tab:      TabDecision,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.spec = model.QuerySpec{EntityID: model.AllEntities, Window: model.RollingWindow(s.resolver.DefaultMonths())}
	s.derived = emptyDerived(s.spec.EntityID)
	s.workflow = workflow.New(gateway, s,
		workflow.WithLogger(s.logger.Named("workflow")),
		workflow.WithIdentity(s.identity))
	return s
}

// Spec returns the current filter.
func (s *Service) Spec() model.QuerySpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec
}

// SetFilter resolves raw filter inputs and applies them. The returned error
// is the dashboard or history load failure, if any; it is also recorded in
// the view status.
func (s *Service) SetFilter(ctx context.Context, rawEntity, rawWindow, rawStart, rawEnd string) (model.QuerySpec, error) {
	spec := s.resolver.Resolve(rawEntity, rawWindow, rawStart, rawEnd)
	return spec, s.apply(ctx, spec)
}

// SelectEntity switches entity and keeps the window.
func (s *Service) SelectEntity(ctx context.Context, entityID string) (model.QuerySpec, error) {
	spec := s.Spec()
	spec.EntityID = s.resolver.Resolve(entityID, "", "", "").EntityID
	return spec, s.apply(ctx, spec)
}

// Refresh reloads the dashboard and, for a single entity, its history.
func (s *Service) Refresh(ctx context.Context) error {
	return s.apply(ctx, s.Spec())
}

// apply commits spec and reloads what it affects. An entity change reloads
// the history as well; switching to the portfolio clears it at once.
func (s *Service) apply(ctx context.Context, spec model.QuerySpec) error {
	s.mu.Lock()
	prev := s.spec
	s.spec = spec
	entityChanged := prev.EntityID != spec.EntityID
	if entityChanged && spec.IsAllEntities() {
		s.clearHistoryLocked()
	}
	s.mu.Unlock()

	if entityChanged {
		// A draft belongs to the entity it was opened for.
		_ = s.workflow.Close()
	}

	s.logger.Debug(ctx, "filter applied", logger.String("spec", spec.String()))

	var g errgroup.Group
	g.Go(func() error { return s.ReloadDashboard(ctx) })
	if entityChanged && !spec.IsAllEntities() {
		g.Go(func() error { return s.ReloadHistory(ctx, spec.EntityID) })
	}
	return g.Wait()
}

// ReloadDashboard fetches the payload for the current spec. A response that
// arrives after a newer request was issued is dropped.
func (s *Service) ReloadDashboard(ctx context.Context) error {
	s.mu.Lock()
	s.dashSeq++
	seq := s.dashSeq
	spec := s.spec
	s.status.Dashboard.Loading = true
	s.mu.Unlock()

	payload, err := s.gateway.FetchDashboard(ctx, spec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.dashSeq {
		metrics.RecordStaleResponse(resourceDash)
		metrics.RecordDashboardRefresh("stale")
		s.logger.Debug(ctx, "stale dashboard response dropped", logger.String("spec", spec.String()))
		return nil
	}

	s.status.Dashboard = s.statusFor(err)
	if err != nil {
		metrics.RecordDashboardRefresh("failed")
		s.logger.Warn(ctx, "dashboard load failed", logger.String("spec", spec.String()), logger.Error(err))
		s.payload = nil
		s.derived = emptyDerived(spec.EntityID)
		metrics.UpdateRankingRows(0)
		return err
	}

	metrics.RecordDashboardRefresh("committed")
	s.payload = &payload
	s.derived = derive(payload, s.topN)
	metrics.UpdateRankingRows(len(payload.Ranking))
	return nil
}

// ReloadHistory fetches the limit history of entityID. The portfolio
// sentinel clears the history without a remote call, and an entity that
// is not selected is skipped. A response for an entity that is no longer
// selected, or superseded by a newer request, is dropped.
func (s *Service) ReloadHistory(ctx context.Context, entityID string) error {
	s.mu.Lock()
	if entityID == "" || entityID == model.AllEntities {
		s.clearHistoryLocked()
		s.mu.Unlock()
		return nil
	}
	if s.spec.EntityID != entityID {
		// Nothing on screen shows the history of an unselected entity.
		s.mu.Unlock()
		return nil
	}
	s.histSeq++
	seq := s.histSeq
	s.status.History.Loading = true
	s.mu.Unlock()

	history, err := s.gateway.FetchLimitHistory(ctx, entityID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.histSeq || s.spec.EntityID != entityID {
		metrics.RecordStaleResponse(resourceHistory)
		return nil
	}
	s.status.History = s.statusFor(err)
	if err != nil {
		s.logger.Warn(ctx, "history load failed", logger.String("entity", entityID), logger.Error(err))
		s.history = nil
		return err
	}
	s.history = history
	return nil
}

// clearHistoryLocked empties the history and invalidates any in-flight load.
func (s *Service) clearHistoryLocked() {
	s.histSeq++
	s.history = nil
	s.status.History = Status{UpdatedAt: s.now()}
}

// LoadEntities returns the selectable entities whose name contains
// nameFilter. Concurrent loads share one provider call.
func (s *Service) LoadEntities(ctx context.Context, nameFilter string) ([]model.EntityRef, error) {
	v, err, _ := s.loads.Do(entitiesKey, func() (any, error) {
		s.mu.Lock()
		s.status.Entities.Loading = true
		s.mu.Unlock()

		entities, err := s.gateway.ListEntities(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.status.Entities = s.statusFor(err)
		if err != nil {
			return nil, err
		}
		s.entities = entities
		metrics.UpdateEntities(len(entities))
		return entities, nil
	})
	if err != nil {
		s.logger.Warn(ctx, "entity list load failed", logger.Error(err))
		return nil, err
	}
	entities, _ := v.([]model.EntityRef)
	return ranking.FilterEntities(entities, nameFilter), nil
}

// SetTab switches the visible section.
func (s *Service) SetTab(raw string) error {
	tab, ok := ParseTab(raw)
	if !ok {
		return ErrUnknownTab
	}
	s.mu.Lock()
	s.tab = tab
	s.mu.Unlock()
	return nil
}

// Ranking selects rows from the committed payload.
func (s *Service) Ranking(opts ranking.Options) []model.EntityRankingRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return []model.EntityRankingRow{}
	}
	return ranking.Select(s.payload.Ranking, opts)
}

// Summary renders the credit summary of the selected entity. It fails
// until the dashboard of that entity has been committed.
func (s *Service) Summary() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entityID := s.spec.EntityID
	if s.spec.IsAllEntities() {
		return "", fmt.Errorf("summary: %w", model.ErrNoEntitySelected)
	}
	if s.payload == nil || s.payload.Spec.EntityID != entityID {
		return "", fmt.Errorf("summary of %s: %w", entityID, ErrDashboardNotLoaded)
	}
	return summary.Build(entityID, *s.payload)
}

// OpenLimit opens the decision panel for the selected entity, seeded from
// the committed KPIs.
func (s *Service) OpenLimit(ctx context.Context) error {
	s.mu.RLock()
	entityID := s.spec.EntityID
	var kpis model.KpiSet
	if s.payload != nil && s.payload.Spec.EntityID == entityID {
		kpis = s.payload.Kpis
	}
	s.mu.RUnlock()
	return s.workflow.Open(ctx, entityID, kpis)
}

// UpdateLimitDraft edits the open draft.
func (s *Service) UpdateLimitDraft(limit *float64, note string) error {
	return s.workflow.UpdateDraft(limit, note)
}

// SubmitLimit submits the draft and waits for the dependent reloads.
func (s *Service) SubmitLimit(ctx context.Context) error {
	return s.workflow.Submit(ctx)
}

// RevokeLimit withdraws the limit of entityID once confirm agrees. The
// selection is left untouched, so entityID need not be the selected entity.
func (s *Service) RevokeLimit(ctx context.Context, entityID string, confirm workflow.Confirmer) error {
	entityID = strings.TrimSpace(entityID)
	return s.workflow.Revoke(ctx, entityID, s.entityName(entityID), confirm)
}

// entityName looks up the display name of entityID in the committed
// payload and then in the cached entity list.
func (s *Service) entityName(entityID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload != nil {
		if s.payload.Spec.EntityID == entityID && s.payload.Context.EntityName != "" {
			return s.payload.Context.EntityName
		}
		for _, row := range s.payload.Ranking {
			if row.EntityID == entityID && row.EntityName != "" {
				return row.EntityName
			}
		}
	}
	for _, e := range s.entities {
		if e.ID == entityID {
			return e.Name
		}
	}
	return ""
}

// CloseLimit closes the decision panel.
func (s *Service) CloseLimit() error {
	return s.workflow.Close()
}

// View returns a snapshot of everything the presentation layer renders.
func (s *Service) View() View {
	snap := s.workflow.Snapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{
		Spec:           s.spec,
		Tab:            s.tab,
		Operator:       s.identity,
		Trend:          s.derived.trend,
		TrendArrow:     s.derived.trend.Arrow(),
		Recommendation: s.derived.recommendation,
		Behavior:       s.derived.behavior,
		Timing:         s.derived.timing,
		Volume:         s.derived.volume,
		Ranking:        s.derived.ranking,
		History:        append([]model.LimitDecision(nil), s.history...),
		Workflow:       snap,
		Status:         s.status,
	}
	if s.payload != nil {
		v.Loaded = true
		v.EntityName = s.payload.Context.EntityName
		v.PeriodBounds = s.payload.PeriodBounds
		v.Kpis = s.payload.Kpis
	}
	return v
}

// statusFor builds the status recorded after a load.
func (s *Service) statusFor(err error) Status {
	st := Status{UpdatedAt: s.now()}
	if err != nil {
		st.Error = readError(err)
		st.Retryable = provider.IsRetryable(err)
	}
	return st
}

// readError turns a read failure into the message shown to the operator.
func readError(err error) string {
	switch {
	case errors.Is(err, provider.ErrBadQuery):
		return "no data for this filter"
	case errors.Is(err, provider.ErrProviderUnavailable):
		return "provider unavailable, retry"
	default:
		return err.Error()
	}
}

// Package workflow drives the approve/revoke decision panel: open, edit,
// submit, refresh, close. At most one submission is in flight at a time.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/pkg/logger"
	"github.com/okian/creditconsole/pkg/metrics"
)

// State of the decision panel.
type State string

const (
	StateClosed     State = "closed"
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
)

var allStates = []string{string(StateClosed), string(StateEditing), string(StateSubmitting)} //nolint:gochecknoglobals // metric label set

// RevocationNote is attached to every revocation record.
const RevocationNote = "Limite revogado"

// Decision kinds, used in logs and metrics.
const (
	kindApprove = "approve"
	kindRevoke  = "revoke"
)

// Submitter appends a decision to the provider's audit history.
type Submitter interface {
	SubmitLimitDecision(ctx context.Context, entityID string, decision model.LimitDecision) error
}

// Refresher reloads the data a decision affects.
type Refresher interface {
	ReloadDashboard(ctx context.Context) error
	ReloadHistory(ctx context.Context, entityID string) error
}

// Confirmer asks the operator to confirm revoking the limit of an entity.
type Confirmer func(ctx context.Context, entityID, displayName string) bool

// Draft is the editable proposal.
type Draft struct {
	Limit *float64 `json:"limit"`
	Note  string   `json:"note"`
}

// Snapshot is a read-only copy of the workflow.
type Snapshot struct {
	State        State  `json:"state"`
	EntityID     string `json:"entity_id,omitempty"`
	Draft        Draft  `json:"draft"`
	LastError    string `json:"last_error,omitempty"`
	RefreshError string `json:"refresh_error,omitempty"`
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithIdentity sets the operator deciding limits.
func WithIdentity(id model.Identity) Option {
	return func(w *Workflow) {
		w.identity = id
	}
}

// Workflow is the decision panel state machine. It is safe for concurrent
// use; commands that race a submission are rejected, never queued.
type Workflow struct {
	submitter Submitter
	refresher Refresher
	logger    logger.Logger
	identity  model.Identity

	mu           sync.Mutex
	state        State
	entityID     string
	draft        Draft
	resumeState  State
	lastError    string
	refreshError string
}

// New creates a closed workflow.
func New(submitter Submitter, refresher Refresher, opts ...Option) *Workflow {
	w := &Workflow{
		submitter: submitter,
		refresher: refresher,
		logger:    logger.Nop(),
		identity:  model.Identity{Role: model.RoleAdmin},
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(w)
	}
	metrics.SetWorkflowState(string(w.state), allStates...)
	return w
}

// Identity returns the operator.
func (w *Workflow) Identity() model.Identity {
	return w.identity
}

// Snapshot returns the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		State:        w.state,
		EntityID:     w.entityID,
		Draft:        copyDraft(w.draft),
		LastError:    w.lastError,
		RefreshError: w.refreshError,
	}
}

// SeedLimit picks the initial draft value: the approved limit when finite,
// else the suggested limit, else none. The value is rounded to a whole
// amount.
func SeedLimit(kpis model.KpiSet) *float64 {
	if v, ok := model.Finite(kpis.ApprovedLimit); ok {
		return wholeAmount(v)
	}
	if v, ok := model.Finite(kpis.SuggestedLimit); ok {
		return wholeAmount(v)
	}
	return nil
}

func wholeAmount(v float64) *float64 {
	return model.Float(decimal.NewFromFloat(v).Round(0).InexactFloat64())
}

// Open starts editing a decision for entityID, seeded from kpis.
func (w *Workflow) Open(ctx context.Context, entityID string, kpis model.KpiSet) error {
	if entityID == "" || entityID == model.AllEntities {
		w.reject("open")
		return model.ErrNoEntitySelected
	}
	if !w.identity.IsAdmin() {
		w.reject("open")
		return ErrForbidden
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		w.reject("open")
		return ErrSubmissionInFlight
	}
	w.entityID = entityID
	w.draft = Draft{Limit: SeedLimit(kpis)}
	w.lastError = ""
	w.refreshError = ""
	w.setState(StateEditing)
	w.logger.Debug(ctx, "decision panel opened", logger.String("entity", entityID))
	return nil
}

// UpdateDraft replaces the draft fields.
func (w *Workflow) UpdateDraft(limit *float64, note string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateEditing:
	case StateSubmitting:
		w.reject("update_draft")
		return ErrSubmissionInFlight
	default:
		w.reject("update_draft")
		return ErrInvalidState
	}
	w.draft = copyDraft(Draft{Limit: limit, Note: note})
	return nil
}

// Submit sends the draft. On success it reloads the dashboard and the
// history, waits for both, and closes. On failure it returns to Editing
// with the draft intact.
func (w *Workflow) Submit(ctx context.Context) error {
	if !w.identity.IsAdmin() {
		w.reject("submit")
		return ErrForbidden
	}

	w.mu.Lock()
	switch w.state {
	case StateEditing:
	case StateSubmitting:
		w.mu.Unlock()
		w.reject("submit")
		return ErrSubmissionInFlight
	default:
		w.mu.Unlock()
		w.reject("submit")
		return ErrInvalidState
	}
	if _, ok := model.Finite(w.draft.Limit); !ok {
		w.lastError = ErrEmptyDraft.Error()
		w.mu.Unlock()
		w.reject("submit")
		return ErrEmptyDraft
	}
	entityID := w.entityID
	decision := model.LimitDecision{
		ApprovedLimit: model.Float(*w.draft.Limit),
		ApprovedBy:    w.identity.DisplayName(),
	}
	if w.draft.Note != "" {
		decision.Note = model.Text(w.draft.Note)
	}
	w.resumeState = StateEditing
	w.setState(StateSubmitting)
	w.mu.Unlock()

	return w.run(ctx, kindApprove, entityID, decision)
}

// Revoke withdraws the limit of entityID after confirm agrees. The panel
// does not need to be open, but it must not hold a draft for another
// entity. A failure restores whatever state preceded the call.
func (w *Workflow) Revoke(ctx context.Context, entityID, displayName string, confirm Confirmer) error {
	if entityID == "" || entityID == model.AllEntities {
		w.reject("revoke")
		return model.ErrNoEntitySelected
	}
	if !w.identity.IsAdmin() {
		w.reject("revoke")
		return ErrForbidden
	}

	w.mu.Lock()
	err := w.revocableLocked(entityID)
	w.mu.Unlock()
	if err != nil {
		w.reject("revoke")
		return err
	}

	// Confirmation may block on the operator, so it runs unlocked.
	if confirm == nil || !confirm(ctx, entityID, displayName) {
		return ErrNotConfirmed
	}

	w.mu.Lock()
	if err := w.revocableLocked(entityID); err != nil {
		w.mu.Unlock()
		w.reject("revoke")
		return err
	}
	w.resumeState = w.state
	if w.state == StateClosed {
		w.entityID = entityID
		w.draft = Draft{}
	}
	w.setState(StateSubmitting)
	w.mu.Unlock()

	return w.run(ctx, kindRevoke, entityID, model.LimitDecision{
		Note:       model.Text(RevocationNote),
		ApprovedBy: w.identity.DisplayName(),
	})
}

// revocableLocked rejects a revocation while a submission is in flight or
// while the panel holds a draft for another entity. mu must be held.
func (w *Workflow) revocableLocked(entityID string) error {
	switch {
	case w.state == StateSubmitting:
		return ErrSubmissionInFlight
	case w.state == StateEditing && w.entityID != entityID:
		return fmt.Errorf("revoke %s while editing %s: %w", entityID, w.entityID, ErrInvalidState)
	}
	return nil
}

// Close discards the draft. It is rejected while a submission is in flight.
func (w *Workflow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		w.reject("close")
		return ErrSubmissionInFlight
	}
	w.entityID = ""
	w.draft = Draft{}
	w.lastError = ""
	w.setState(StateClosed)
	return nil
}

// run performs the submission that the caller has already moved into
// StateSubmitting.
func (w *Workflow) run(ctx context.Context, kind, entityID string, decision model.LimitDecision) error {
	log := w.logger
	if err := w.submitter.SubmitLimitDecision(ctx, entityID, decision); err != nil {
		metrics.RecordLimitDecision(kind, "failed")
		log.Warn(ctx, "limit decision failed",
			logger.String("kind", kind),
			logger.String("entity", entityID),
			logger.Error(err))

		w.mu.Lock()
		w.lastError = err.Error()
		w.setState(w.resumeState)
		if w.state == StateClosed {
			w.entityID = ""
		}
		w.mu.Unlock()
		return fmt.Errorf("%s limit: %w", kind, err)
	}
	metrics.RecordLimitDecision(kind, "ok")
	log.Info(ctx, "limit decision recorded",
		logger.String("kind", kind),
		logger.String("entity", entityID),
		logger.String("approved_by", decision.ApprovedBy))

	refreshErr := w.refresh(ctx, entityID)
	if refreshErr != nil {
		log.Warn(ctx, "refresh after decision failed",
			logger.String("entity", entityID),
			logger.Error(refreshErr))
	}

	w.mu.Lock()
	w.entityID = ""
	w.draft = Draft{}
	w.lastError = ""
	w.refreshError = ""
	if refreshErr != nil {
		w.refreshError = refreshErr.Error()
	}
	w.setState(StateClosed)
	w.mu.Unlock()
	return nil
}

// refresh reloads the dashboard and the history and waits for both.
func (w *Workflow) refresh(ctx context.Context, entityID string) error {
	if w.refresher == nil {
		return nil
	}
	var g errgroup.Group
	var dashErr, histErr error
	g.Go(func() error {
		dashErr = w.refresher.ReloadDashboard(ctx)
		return dashErr
	})
	g.Go(func() error {
		histErr = w.refresher.ReloadHistory(ctx, entityID)
		return histErr
	})
	if err := g.Wait(); err == nil {
		return nil
	}
	return errors.Join(dashErr, histErr)
}

// setState must be called with mu held.
func (w *Workflow) setState(s State) {
	w.state = s
	metrics.SetWorkflowState(string(s), allStates...)
}

func (w *Workflow) reject(command string) {
	metrics.RecordRejectedCommand(command)
}

func copyDraft(d Draft) Draft {
	if d.Limit != nil {
		d.Limit = model.Float(*d.Limit)
	}
	return d
}

package workflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/creditconsole/internal/adapters/provider"
	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/internal/workflow"
)

type stubSubmitter struct {
	mu      sync.Mutex
	calls   []model.LimitDecision
	gate    chan struct{}
	entered chan struct{}
	err     error
}

func (s *stubSubmitter) SubmitLimitDecision(_ context.Context, _ string, d model.LimitDecision) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	return s.err
}

func (s *stubSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubRefresher struct {
	dashboards atomic.Int32
	histories  atomic.Int32
	delay      time.Duration
	err        error
	histErr    error
}

func (r *stubRefresher) ReloadDashboard(context.Context) error {
	time.Sleep(r.delay)
	r.dashboards.Add(1)
	return r.err
}

func (r *stubRefresher) ReloadHistory(context.Context, string) error {
	time.Sleep(r.delay)
	r.histories.Add(1)
	return r.histErr
}

func yes(context.Context, string, string) bool { return true }
func no(context.Context, string, string) bool  { return false }

func TestSeedLimit(t *testing.T) {
	Convey("Given KPI sets", t, func() {
		Convey("Then a finite approved limit wins, rounded", func() {
			So(*workflow.SeedLimit(model.KpiSet{ApprovedLimit: model.Float(1234.6), SuggestedLimit: model.Float(9)}), ShouldEqual, 1235)
		})
		Convey("Then the suggestion is used when nothing is approved", func() {
			So(*workflow.SeedLimit(model.KpiSet{SuggestedLimit: model.Float(5000.4)}), ShouldEqual, 5000)
		})
		Convey("Then nothing seeds an empty draft", func() {
			So(workflow.SeedLimit(model.KpiSet{}), ShouldBeNil)
		})
	})
}

func TestOpenAndClose(t *testing.T) {
	Convey("Given a closed workflow", t, func() {
		sub := &stubSubmitter{}
		w := workflow.New(sub, &stubRefresher{})
		ctx := context.Background()

		Convey("When opening for the portfolio", func() {
			err := w.Open(ctx, model.AllEntities, model.KpiSet{})

			Convey("Then no entity is selected and the panel stays closed", func() {
				So(errors.Is(err, model.ErrNoEntitySelected), ShouldBeTrue)
				So(w.Snapshot().State, ShouldEqual, workflow.StateClosed)
			})
		})

		Convey("When a non-admin opens", func() {
			viewer := workflow.New(sub, nil, workflow.WithIdentity(model.Identity{Name: "vic", Role: "viewer"}))
			So(errors.Is(viewer.Open(ctx, "e1", model.KpiSet{}), workflow.ErrForbidden), ShouldBeTrue)
		})

		Convey("When editing a draft before opening", func() {
			So(errors.Is(w.UpdateDraft(model.Float(1), ""), workflow.ErrInvalidState), ShouldBeTrue)
		})

		Convey("When opening, editing and closing", func() {
			So(w.Open(ctx, "e1", model.KpiSet{SuggestedLimit: model.Float(100)}), ShouldBeNil)
			snap := w.Snapshot()
			So(snap.State, ShouldEqual, workflow.StateEditing)
			So(*snap.Draft.Limit, ShouldEqual, 100)

			So(w.UpdateDraft(model.Float(150), "raise"), ShouldBeNil)
			So(*w.Snapshot().Draft.Limit, ShouldEqual, 150)
			So(w.Snapshot().Draft.Note, ShouldEqual, "raise")

			So(w.Close(), ShouldBeNil)

			Convey("Then the draft is discarded without any submission", func() {
				snap := w.Snapshot()
				So(snap.State, ShouldEqual, workflow.StateClosed)
				So(snap.Draft.Limit, ShouldBeNil)
				So(sub.count(), ShouldEqual, 0)
			})
		})
	})
}

func TestSubmit(t *testing.T) {
	Convey("Given an open workflow", t, func() {
		sub := &stubSubmitter{}
		ref := &stubRefresher{delay: 5 * time.Millisecond}
		w := workflow.New(sub, ref, workflow.WithIdentity(model.Identity{Email: "ana@example.com", Role: "Admin"}))
		ctx := context.Background()
		So(w.Open(ctx, "e1", model.KpiSet{ApprovedLimit: model.Float(80)}), ShouldBeNil)
		So(w.UpdateDraft(model.Float(120), "ok"), ShouldBeNil)

		Convey("When the submission succeeds", func() {
			err := w.Submit(ctx)

			Convey("Then one record is appended and both reloads finished before closing", func() {
				So(err, ShouldBeNil)
				So(sub.count(), ShouldEqual, 1)
				So(*sub.calls[0].ApprovedLimit, ShouldEqual, 120)
				So(*sub.calls[0].Note, ShouldEqual, "ok")
				So(sub.calls[0].ApprovedBy, ShouldEqual, "ana@example.com")
				So(ref.dashboards.Load(), ShouldEqual, 1)
				So(ref.histories.Load(), ShouldEqual, 1)
				So(w.Snapshot().State, ShouldEqual, workflow.StateClosed)
			})
		})

		Convey("When the provider rejects the decision", func() {
			sub.err = &provider.Error{Op: provider.OpSubmitDecision, Kind: provider.ErrValidationRejected, StatusCode: 422}
			err := w.Submit(ctx)

			Convey("Then the draft is kept for a retry", func() {
				So(errors.Is(err, provider.ErrValidationRejected), ShouldBeTrue)
				snap := w.Snapshot()
				So(snap.State, ShouldEqual, workflow.StateEditing)
				So(*snap.Draft.Limit, ShouldEqual, 120)
				So(snap.LastError, ShouldNotBeEmpty)
				So(ref.dashboards.Load(), ShouldEqual, 0)

				sub.err = nil
				So(w.Submit(ctx), ShouldBeNil)
				So(sub.count(), ShouldEqual, 2)
				So(w.Snapshot().State, ShouldEqual, workflow.StateClosed)
			})
		})

		Convey("When the refresh fails after a successful submit", func() {
			ref.err = errors.New("provider down")
			err := w.Submit(ctx)

			Convey("Then the panel still closes and reports the refresh error", func() {
				So(err, ShouldBeNil)
				snap := w.Snapshot()
				So(snap.State, ShouldEqual, workflow.StateClosed)
				So(snap.RefreshError, ShouldContainSubstring, "provider down")
			})
		})

		Convey("When both reloads fail after a successful submit", func() {
			ref.err = errors.New("dashboard timeout")
			ref.histErr = errors.New("history timeout")
			So(w.Submit(ctx), ShouldBeNil)

			Convey("Then both failures are reported", func() {
				snap := w.Snapshot()
				So(snap.RefreshError, ShouldContainSubstring, "dashboard timeout")
				So(snap.RefreshError, ShouldContainSubstring, "history timeout")
			})
		})

		Convey("When the draft is empty", func() {
			So(w.UpdateDraft(nil, ""), ShouldBeNil)
			So(errors.Is(w.Submit(ctx), workflow.ErrEmptyDraft), ShouldBeTrue)
			So(sub.count(), ShouldEqual, 0)
			So(w.Snapshot().State, ShouldEqual, workflow.StateEditing)
		})
	})
}

func TestSubmissionExclusivity(t *testing.T) {
	Convey("Given a submission that blocks in the provider", t, func() {
		sub := &stubSubmitter{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
		w := workflow.New(sub, &stubRefresher{})
		ctx := context.Background()
		So(w.Open(ctx, "e1", model.KpiSet{SuggestedLimit: model.Float(10)}), ShouldBeNil)

		done := make(chan error, 1)
		go func() { done <- w.Submit(ctx) }()
		<-sub.entered

		Convey("When commands arrive while it is pending", func() {
			second := w.Submit(ctx)
			closeErr := w.Close()
			draftErr := w.UpdateDraft(model.Float(1), "")
			revokeErr := w.Revoke(ctx, "e1", "Clinic", yes)
			close(sub.gate)
			first := <-done

			Convey("Then they are rejected and only one call reaches the provider", func() {
				So(errors.Is(second, workflow.ErrSubmissionInFlight), ShouldBeTrue)
				So(errors.Is(closeErr, workflow.ErrSubmissionInFlight), ShouldBeTrue)
				So(errors.Is(draftErr, workflow.ErrSubmissionInFlight), ShouldBeTrue)
				So(errors.Is(revokeErr, workflow.ErrSubmissionInFlight), ShouldBeTrue)
				So(first, ShouldBeNil)
				So(sub.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestRevoke(t *testing.T) {
	Convey("Given a closed workflow", t, func() {
		sub := &stubSubmitter{}
		ref := &stubRefresher{}
		w := workflow.New(sub, ref, workflow.WithIdentity(model.Identity{Name: "Bia", Role: model.RoleAdmin}))
		ctx := context.Background()

		Convey("When the operator confirms", func() {
			err := w.Revoke(ctx, "e1", "Clinica 01", yes)

			Convey("Then exactly one null-limit record is appended", func() {
				So(err, ShouldBeNil)
				So(sub.count(), ShouldEqual, 1)
				So(sub.calls[0].IsRevocation(), ShouldBeTrue)
				So(*sub.calls[0].Note, ShouldEqual, workflow.RevocationNote)
				So(sub.calls[0].ApprovedBy, ShouldEqual, "Bia")
				So(ref.histories.Load(), ShouldEqual, 1)
				So(w.Snapshot().State, ShouldEqual, workflow.StateClosed)
			})
		})

		Convey("When the operator declines", func() {
			err := w.Revoke(ctx, "e1", "Clinica 01", no)

			Convey("Then nothing is sent", func() {
				So(errors.Is(err, workflow.ErrNotConfirmed), ShouldBeTrue)
				So(sub.count(), ShouldEqual, 0)
			})
		})

		Convey("When revoking the portfolio", func() {
			So(errors.Is(w.Revoke(ctx, model.AllEntities, "", yes), model.ErrNoEntitySelected), ShouldBeTrue)
		})

		Convey("When the revocation fails with the panel open", func() {
			So(w.Open(ctx, "e1", model.KpiSet{ApprovedLimit: model.Float(50)}), ShouldBeNil)
			sub.err = provider.ErrProviderUnavailable
			err := w.Revoke(ctx, "e1", "Clinica 01", yes)

			Convey("Then the panel returns to editing with its draft", func() {
				So(errors.Is(err, provider.ErrProviderUnavailable), ShouldBeTrue)
				snap := w.Snapshot()
				So(snap.State, ShouldEqual, workflow.StateEditing)
				So(*snap.Draft.Limit, ShouldEqual, 50)
			})
		})

		Convey("When another entity is revoked while the panel is open", func() {
			So(w.Open(ctx, "e1", model.KpiSet{ApprovedLimit: model.Float(50)}), ShouldBeNil)
			So(w.UpdateDraft(model.Float(75), "pending"), ShouldBeNil)
			asked := false
			err := w.Revoke(ctx, "e2", "Clinica 02", func(context.Context, string, string) bool {
				asked = true
				return true
			})

			Convey("Then it is rejected and the open draft is kept", func() {
				So(errors.Is(err, workflow.ErrInvalidState), ShouldBeTrue)
				So(asked, ShouldBeFalse)
				So(sub.count(), ShouldEqual, 0)
				snap := w.Snapshot()
				So(snap.State, ShouldEqual, workflow.StateEditing)
				So(snap.EntityID, ShouldEqual, "e1")
				So(*snap.Draft.Limit, ShouldEqual, 75)
				So(snap.Draft.Note, ShouldEqual, "pending")
			})
		})

		Convey("When the revocation fails with the panel closed", func() {
			sub.err = provider.ErrProviderUnavailable
			_ = w.Revoke(ctx, "e1", "Clinica 01", yes)
			So(w.Snapshot().State, ShouldEqual, workflow.StateClosed)
		})
	})
}

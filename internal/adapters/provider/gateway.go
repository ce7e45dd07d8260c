// Package provider is the data gateway to the remote analytics provider.
// It turns QuerySpecs into HTTP calls and decodes the answers into domain
// payloads without interpreting them.
package provider

import (
	"context"

	"github.com/okian/creditconsole/internal/domain/model"
)

// Operation names, used in errors, logs and metrics.
const (
	OpListEntities   = "list_entities"
	OpFetchDashboard = "fetch_dashboard"
	OpFetchHistory   = "fetch_limit_history"
	OpSubmitDecision = "submit_limit_decision"
)

// Gateway is the set of provider operations the console relies on. All
// methods are safe for concurrent use.
type Gateway interface {
	ListEntities(ctx context.Context) ([]model.EntityRef, error)
	FetchDashboard(ctx context.Context, spec model.QuerySpec) (model.DashboardPayload, error)
	// FetchLimitHistory returns decisions newest first. The portfolio
	// sentinel yields an empty history without a remote call.
	FetchLimitHistory(ctx context.Context, entityID string) ([]model.LimitDecision, error)
	SubmitLimitDecision(ctx context.Context, entityID string, decision model.LimitDecision) error
}

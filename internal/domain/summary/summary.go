// Package summary builds the plain-text credit committee summary for one
// entity.
package summary

import (
	"fmt"
	"strings"

	"github.com/okian/creditconsole/internal/domain/classify"
	"github.com/okian/creditconsole/internal/domain/model"
)

const defaultEntityName = "Clinic"

// Build renders the summary of payload for entityID. It fails with
// model.ErrNoEntitySelected for the portfolio sentinel.
func Build(entityID string, payload model.DashboardPayload) (string, error) {
	if entityID == "" || entityID == model.AllEntities {
		return "", fmt.Errorf("summary: %w", model.ErrNoEntitySelected)
	}

	k := payload.Kpis
	name := strings.TrimSpace(payload.Context.EntityName)
	if name == "" {
		name = defaultEntityName
	}
	category := missing
	if k.RiskCategory != nil && strings.TrimSpace(*k.RiskCategory) != "" {
		category = *k.RiskCategory
	}
	rec := classify.Recommend(entityID, k.SuggestedLimit, k.ApprovedLimit)

	lines := []string{
		"Credit summary: " + name,
		"",
		fmt.Sprintf("Adjusted score: %s (category %s).", Fixed(k.Score, 3), category),
		fmt.Sprintf("Delinquency 12M: %s. Paid on due date 12M: %s.", Percent(k.Delinquency12m), Percent(k.OnTimeRate12m)),
		fmt.Sprintf("Volume emitted 12M: %s.", Currency(k.EmittedVolume12m)),
		fmt.Sprintf("Current approved limit: %s.", Currency(k.ApprovedLimit)),
		fmt.Sprintf("Model suggested limit (conservative): %s.", Currency(k.SuggestedLimit)),
		"",
		"Credit engine note: " + rec.Label,
	}
	return strings.Join(lines, "\n"), nil
}

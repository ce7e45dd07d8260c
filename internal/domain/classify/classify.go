// Package classify derives operator-facing labels from scalar KPIs using a
// fixed threshold policy.
package classify

import (
	"math"

	"github.com/okian/creditconsole/internal/domain/model"
)

// Trend describes the month-over-month score movement.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
	TrendUnknown   Trend = "unknown"
)

// Arrow returns the glyph shown next to the score.
func (t Trend) Arrow() string {
	switch t {
	case TrendImproving:
		return "↑"
	case TrendWorsening:
		return "↓"
	case TrendStable:
		return "→"
	default:
		return ""
	}
}

// ClassifyTrend labels a score delta. Nil, NaN and infinities are Unknown.
func ClassifyTrend(delta *float64) Trend {
	v, ok := model.Finite(delta)
	switch {
	case !ok:
		return TrendUnknown
	case v > 0:
		return TrendImproving
	case v < 0:
		return TrendWorsening
	default:
		return TrendStable
	}
}

// Tier is the limit recommendation bucket.
type Tier string

const (
	TierNoEntitySelected    Tier = "no_entity_selected"
	TierInsufficientHistory Tier = "insufficient_history"
	TierNoBaseline          Tier = "no_baseline"
	TierStronglyIncrease    Tier = "strongly_increase"
	TierModestIncrease      Tier = "modest_increase"
	TierAligned             Tier = "aligned"
	TierModestDecrease      Tier = "modest_decrease"
	TierStronglyDecrease    Tier = "strongly_decrease"
)

// Policy thresholds on the relative gap (suggested-approved)/approved.
// Comparisons are strict at every boundary.
const (
	strongThreshold = 0.25
	modestThreshold = 0.05
)

var tierLabels = map[Tier]string{
	TierNoEntitySelected:    "Select a clinic to see the suggested limit.",
	TierInsufficientHistory: "Not enough history to suggest a limit safely.",
	TierNoBaseline:          "No approved limit yet; use the suggestion as the initial reference.",
	TierStronglyIncrease:    "Suggested limit well above the current one; consider a gradual increase.",
	TierModestIncrease:      "Room for a controlled limit increase.",
	TierAligned:             "Current limit aligned with the model suggestion.",
	TierModestDecrease:      "Current limit slightly above the suggestion; monitor.",
	TierStronglyDecrease:    "Current limit may be aggressive for the risk; review.",
}

// Label returns the recommendation sentence for t.
func (t Tier) Label() string {
	if l, ok := tierLabels[t]; ok {
		return l
	}
	return ""
}

// Recommendation is the classified limit position of an entity.
type Recommendation struct {
	Tier  Tier     `json:"tier"`
	Label string   `json:"label"`
	Delta *float64 `json:"delta,omitempty"`
}

// Recommend classifies the suggested limit against the approved one.
func Recommend(entityID string, suggested, approved *float64) Recommendation {
	if entityID == "" || entityID == model.AllEntities {
		return recommendation(TierNoEntitySelected, nil)
	}
	sug, ok := model.Finite(suggested)
	if !ok {
		return recommendation(TierInsufficientHistory, nil)
	}
	cur, ok := model.Finite(approved)
	if !ok || cur <= 0 {
		return recommendation(TierNoBaseline, nil)
	}

	delta := (sug - cur) / cur
	return recommendation(TierFor(delta), &delta)
}

// TierFor maps a relative gap to a tier.
func TierFor(delta float64) Tier {
	switch {
	case math.IsNaN(delta):
		return TierInsufficientHistory
	case delta > strongThreshold:
		return TierStronglyIncrease
	case delta > modestThreshold:
		return TierModestIncrease
	case delta < -strongThreshold:
		return TierStronglyDecrease
	case delta < -modestThreshold:
		return TierModestDecrease
	default:
		return TierAligned
	}
}

func recommendation(t Tier, delta *float64) Recommendation {
	return Recommendation{Tier: t, Label: t.Label(), Delta: delta}
}

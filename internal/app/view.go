package service

import (
	"time"

	"github.com/okian/creditconsole/internal/domain/classify"
	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/internal/domain/ranking"
	"github.com/okian/creditconsole/internal/domain/series"
	"github.com/okian/creditconsole/internal/workflow"
)

// Tab selects the console section being shown.
type Tab string

const (
	TabDecision  Tab = "decision"
	TabBehavior  Tab = "behavior"
	TabPortfolio Tab = "portfolio"
	TabLimits    Tab = "limits"
)

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, bool) {
	switch t := Tab(s); t {
	case TabDecision, TabBehavior, TabPortfolio, TabLimits:
		return t, true
	}
	return "", false
}

// Status reports the last load of one resource.
type Status struct {
	Loading   bool      `json:"loading"`
	Error     string    `json:"error,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Statuses groups the load status of every resource the console reads.
type Statuses struct {
	Dashboard Status `json:"dashboard"`
	History   Status `json:"history"`
	Entities  Status `json:"entities"`
}

// derived holds everything computed from one committed payload.
type derived struct {
	trend          classify.Trend
	recommendation classify.Recommendation
	behavior       []series.Row
	timing         []series.Row
	volume         []series.Row
	ranking        []model.EntityRankingRow
}

// View is the read-only view-model handed to the presentation layer.
type View struct {
	Spec           model.QuerySpec          `json:"spec"`
	Tab            Tab                      `json:"tab"`
	Operator       model.Identity           `json:"operator"`
	Loaded         bool                     `json:"loaded"`
	EntityName     string                   `json:"entity_name"`
	PeriodBounds   model.PeriodBounds       `json:"period_bounds"`
	Kpis           model.KpiSet             `json:"kpis"`
	Trend          classify.Trend           `json:"trend"`
	TrendArrow     string                   `json:"trend_arrow"`
	Recommendation classify.Recommendation  `json:"recommendation"`
	Behavior       []series.Row             `json:"behavior"`
	Timing         []series.Row             `json:"timing"`
	Volume         []series.Row             `json:"volume"`
	Ranking        []model.EntityRankingRow `json:"ranking"`
	History        []model.LimitDecision    `json:"history"`
	Workflow       workflow.Snapshot        `json:"workflow"`
	Status         Statuses                 `json:"status"`
}

func derive(p model.DashboardPayload, topN int) derived {
	s := p.Series
	return derived{
		trend:          classify.ClassifyTrend(p.Kpis.ScoreDelta),
		recommendation: classify.Recommend(p.Spec.EntityID, p.Kpis.SuggestedLimit, p.Kpis.ApprovedLimit),
		behavior: series.Merge(
			series.Named{Name: series.FieldScore, Points: s.ScoreByMonth},
			series.Named{Name: series.FieldDelinquency, Points: s.DelinquencyByMonth},
			series.Named{Name: series.FieldOnTimeRate, Points: s.OnTimeRateByMonth},
		),
		timing: series.Merge(
			series.Named{Name: series.FieldAvgPaymentDays, Points: s.AvgPaymentDaysByMonth},
			series.Named{Name: series.FieldInstallments, Points: s.InstallmentCountByMonth},
		),
		volume: series.Merge(
			series.Named{Name: series.FieldVolume, Points: s.VolumeByMonth},
		),
		ranking: ranking.Select(p.Ranking, ranking.Options{SortBy: ranking.SortByScore, TopN: topN}),
	}
}

// emptyDerived is what the console shows before any payload, or after a
// failed read, for the given entity.
func emptyDerived(entityID string) derived {
	return derived{
		trend:          classify.ClassifyTrend(nil),
		recommendation: classify.Recommend(entityID, nil, nil),
	}
}

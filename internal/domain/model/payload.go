package model

import "math"

// Float returns a pointer to v, for building nullable KPI fields.
func Float(v float64) *float64 { return &v }

// Text returns a pointer to s.
func Text(s string) *string { return &s }

// Finite unwraps a nullable number, treating nil, NaN and ±Inf as absent.
func Finite(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

// KpiSet holds the scalar indicators of a dashboard payload. Every field is
// independently nullable: nil means insufficient history, not zero.
type KpiSet struct {
	Score        *float64 `json:"score"`
	RiskCategory *string  `json:"risk_category"`
	ScoreDelta   *float64 `json:"score_delta"`

	EmittedVolume12m        *float64 `json:"emitted_volume_12m"`
	EmittedVolumeLastMonth  *float64 `json:"emitted_volume_last_month"`
	Delinquency12m          *float64 `json:"delinquency_12m"`
	DelinquencyLastMonth    *float64 `json:"delinquency_last_month"`
	OnTimeRate12m           *float64 `json:"on_time_rate_12m"`
	OnTimeRateLastMonth     *float64 `json:"on_time_rate_last_month"`
	AvgTicket12m            *float64 `json:"avg_ticket_12m"`
	AvgTicketLastMonth      *float64 `json:"avg_ticket_last_month"`
	AvgPaymentDays12m       *float64 `json:"avg_payment_days_12m"`
	AvgPaymentDaysLastMonth *float64 `json:"avg_payment_days_last_month"`

	SuggestedLimit         *float64 `json:"suggested_limit"`
	SuggestedBase12m       *float64 `json:"suggested_base_12m"`
	SuggestedBase3m        *float64 `json:"suggested_base_3m"`
	SuggestedBaseLastMonth *float64 `json:"suggested_base_last_month"`
	SuggestedBaseBlended   *float64 `json:"suggested_base_blended"`
	RiskMultiplier         *float64 `json:"risk_multiplier"`
	GlobalCap              *float64 `json:"global_cap"`
	ApprovedLimit          *float64 `json:"approved_limit"`
	PortfolioShare         *float64 `json:"portfolio_share"`
}

// SeriesPoint is one monthly observation. A nil Value is a month the
// provider reported without a number.
type SeriesPoint struct {
	Month YearMonth `json:"month"`
	Value *float64  `json:"value"`
}

// SeriesSet groups the monthly series of a payload. Entries are unordered.
type SeriesSet struct {
	ScoreByMonth            []SeriesPoint `json:"score_by_month"`
	VolumeByMonth           []SeriesPoint `json:"volume_by_month"`
	DelinquencyByMonth      []SeriesPoint `json:"delinquency_by_month"`
	OnTimeRateByMonth       []SeriesPoint `json:"on_time_rate_by_month"`
	AvgPaymentDaysByMonth   []SeriesPoint `json:"avg_payment_days_by_month"`
	InstallmentCountByMonth []SeriesPoint `json:"installment_count_by_month"`
}

// PayloadContext carries descriptive data about the queried scope.
type PayloadContext struct {
	EntityName string `json:"entity_name"`
}

// PeriodBounds is the month interval the provider actually covered.
type PeriodBounds struct {
	Min YearMonth `json:"min"`
	Max YearMonth `json:"max"`
}

// EntityRankingRow is one entity of the cross-portfolio comparison, valid
// for the last closed month.
type EntityRankingRow struct {
	EntityID         string   `json:"entity_id"`
	EntityName       string   `json:"entity_name"`
	TaxID            string   `json:"tax_id"`
	Score            *float64 `json:"score"`
	RiskCategory     *string  `json:"risk_category"`
	ApprovedLimit    *float64 `json:"approved_limit"`
	SuggestedLimit   *float64 `json:"suggested_limit"`
	EmittedVolume12m *float64 `json:"emitted_volume_12m"`
	Delinquency12m   *float64 `json:"delinquency_12m"`
}

// DashboardPayload is the provider response for one QuerySpec. It is
// replaced wholesale on refetch and never patched.
type DashboardPayload struct {
	Spec         QuerySpec          `json:"spec"`
	Kpis         KpiSet             `json:"kpis"`
	Context      PayloadContext     `json:"context"`
	PeriodBounds PeriodBounds       `json:"period_bounds"`
	Series       SeriesSet          `json:"series"`
	Ranking      []EntityRankingRow `json:"ranking"`
}

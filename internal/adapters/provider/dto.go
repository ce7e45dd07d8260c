package provider

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/creditconsole/internal/domain/model"
)

// Number is a nullable wire number. It accepts JSON numbers, numeric
// strings and null; anything else decodes as absent.
type Number struct {
	Value *float64
}

// Num wraps a domain value for encoding.
func Num(p *float64) Number {
	if v, ok := model.Finite(p); ok {
		return Number{Value: &v}
	}
	return Number{}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	n.Value = parseNumber(b)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func parseNumber(raw []byte) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return model.Float(v)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// timestampLayouts are tried in order when decoding provider timestamps.
var timestampLayouts = []string{ //nolint:gochecknoglobals // fixed layout table
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is a wire time. It accepts RFC3339 and zone-less timestamps
// (read as UTC); anything else decodes as the zero time.
type Timestamp struct {
	Time time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// EntityDTO is one row of GET /dashboard/clinicas.
type EntityDTO struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"nome"`
	TaxID string          `json:"cnpj"`
}

func (e EntityDTO) toModel() model.EntityRef {
	return model.EntityRef{ID: rawID(e.ID), Name: e.Name, TaxID: e.TaxID}
}

// rawID accepts numeric and string identifiers.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// KpisDTO is the kpis object of the dashboard answer.
type KpisDTO struct {
	Score                   Number  `json:"score_atual"`
	RiskCategory            *string `json:"categoria_risco"`
	ScoreDelta              Number  `json:"score_variacao_vs_m1"`
	EmittedVolume12m        Number  `json:"valor_total_emitido_12m"`
	EmittedVolumeLastMonth  Number  `json:"valor_total_emitido_ultimo_mes"`
	Delinquency12m          Number  `json:"inadimplencia_media_12m"`
	DelinquencyLastMonth    Number  `json:"inadimplencia_ultimo_mes"`
	OnTimeRate12m           Number  `json:"taxa_pago_no_vencimento_media_12m"`
	OnTimeRateLastMonth     Number  `json:"taxa_pago_no_vencimento_ultimo_mes"`
	AvgTicket12m            Number  `json:"ticket_medio_12m"`
	AvgTicketLastMonth      Number  `json:"ticket_medio_ultimo_mes"`
	AvgPaymentDays12m       Number  `json:"tempo_medio_pagamento_media_12m"`
	AvgPaymentDaysLastMonth Number  `json:"tempo_medio_pagamento_ultimo_mes"`
	SuggestedLimit          Number  `json:"limite_sugerido"`
	SuggestedBase12m        Number  `json:"limite_sugerido_base_media12m"`
	SuggestedBase3m         Number  `json:"limite_sugerido_base_media3m"`
	SuggestedBaseLastMonth  Number  `json:"limite_sugerido_base_ultimo_mes"`
	SuggestedBaseBlended    Number  `json:"limite_sugerido_base_mensal_mix"`
	RiskMultiplier          Number  `json:"limite_sugerido_fator"`
	GlobalCap               Number  `json:"limite_sugerido_teto_global"`
	ApprovedLimit           Number  `json:"limite_aprovado"`
	PortfolioShare          Number  `json:"limite_sugerido_share_portfolio_12m"`
}

func (k KpisDTO) toModel() model.KpiSet {
	return model.KpiSet{
		Score:                   k.Score.Value,
		RiskCategory:            k.RiskCategory,
		ScoreDelta:              k.ScoreDelta.Value,
		EmittedVolume12m:        k.EmittedVolume12m.Value,
		EmittedVolumeLastMonth:  k.EmittedVolumeLastMonth.Value,
		Delinquency12m:          k.Delinquency12m.Value,
		DelinquencyLastMonth:    k.DelinquencyLastMonth.Value,
		OnTimeRate12m:           k.OnTimeRate12m.Value,
		OnTimeRateLastMonth:     k.OnTimeRateLastMonth.Value,
		AvgTicket12m:            k.AvgTicket12m.Value,
		AvgTicketLastMonth:      k.AvgTicketLastMonth.Value,
		AvgPaymentDays12m:       k.AvgPaymentDays12m.Value,
		AvgPaymentDaysLastMonth: k.AvgPaymentDaysLastMonth.Value,
		SuggestedLimit:          k.SuggestedLimit.Value,
		SuggestedBase12m:        k.SuggestedBase12m.Value,
		SuggestedBase3m:         k.SuggestedBase3m.Value,
		SuggestedBaseLastMonth:  k.SuggestedBaseLastMonth.Value,
		SuggestedBaseBlended:    k.SuggestedBaseBlended.Value,
		RiskMultiplier:          k.RiskMultiplier.Value,
		GlobalCap:               k.GlobalCap.Value,
		ApprovedLimit:           k.ApprovedLimit.Value,
		PortfolioShare:          k.PortfolioShare.Value,
	}
}

func kpisFromModel(k model.KpiSet) KpisDTO {
	return KpisDTO{
		Score:                   Num(k.Score),
		RiskCategory:            k.RiskCategory,
		ScoreDelta:              Num(k.ScoreDelta),
		EmittedVolume12m:        Num(k.EmittedVolume12m),
		EmittedVolumeLastMonth:  Num(k.EmittedVolumeLastMonth),
		Delinquency12m:          Num(k.Delinquency12m),
		DelinquencyLastMonth:    Num(k.DelinquencyLastMonth),
		OnTimeRate12m:           Num(k.OnTimeRate12m),
		OnTimeRateLastMonth:     Num(k.OnTimeRateLastMonth),
		AvgTicket12m:            Num(k.AvgTicket12m),
		AvgTicketLastMonth:      Num(k.AvgTicketLastMonth),
		AvgPaymentDays12m:       Num(k.AvgPaymentDays12m),
		AvgPaymentDaysLastMonth: Num(k.AvgPaymentDaysLastMonth),
		SuggestedLimit:          Num(k.SuggestedLimit),
		SuggestedBase12m:        Num(k.SuggestedBase12m),
		SuggestedBase3m:         Num(k.SuggestedBase3m),
		SuggestedBaseLastMonth:  Num(k.SuggestedBaseLastMonth),
		SuggestedBaseBlended:    Num(k.SuggestedBaseBlended),
		RiskMultiplier:          Num(k.RiskMultiplier),
		GlobalCap:               Num(k.GlobalCap),
		ApprovedLimit:           Num(k.ApprovedLimit),
		PortfolioShare:          Num(k.PortfolioShare),
	}
}

// PointDTO is one monthly series entry. Keys vary per series, so entries
// are kept raw and read by name.
type PointDTO map[string]json.RawMessage

const monthKey = "mes_ref"

// seriesKeys maps wire series names to the key holding their value.
var seriesKeys = []struct { //nolint:gochecknoglobals // static wire layout
	series string
	value  string
	pick   func(*model.SeriesSet) *[]model.SeriesPoint
}{
	{"score_por_mes", "score_credito", func(s *model.SeriesSet) *[]model.SeriesPoint { return &s.ScoreByMonth }},
	{"valor_emitido_por_mes", "valor_total_emitido", func(s *model.SeriesSet) *[]model.SeriesPoint { return &s.VolumeByMonth }},
	{"inadimplencia_por_mes", "taxa_inadimplencia", func(s *model.SeriesSet) *[]model.SeriesPoint { return &s.DelinquencyByMonth }},
	{"taxa_pago_no_vencimento_por_mes", "taxa_pago_no_vencimento", func(s *model.SeriesSet) *[]model.SeriesPoint { return &s.OnTimeRateByMonth }},
	{"tempo_medio_pagamento_por_mes", "tempo_medio_pagamento_dias", func(s *model.SeriesSet) *[]model.SeriesPoint { return &s.AvgPaymentDaysByMonth }},
	{"parcelas_media_por_mes", "media_parcelas_pond", func(s *model.SeriesSet) *[]model.SeriesPoint { return &s.InstallmentCountByMonth }},
}

// SeriesDTO is the series object of the dashboard answer.
type SeriesDTO map[string][]PointDTO

func (s SeriesDTO) toModel() model.SeriesSet {
	var out model.SeriesSet
	for _, k := range seriesKeys {
		points := s[k.series]
		if len(points) == 0 {
			continue
		}
		dst := k.pick(&out)
		for _, p := range points {
			var month string
			if err := json.Unmarshal(p[monthKey], &month); err != nil {
				continue
			}
			ym, ok := model.ParseYearMonth(month)
			if !ok {
				continue
			}
			*dst = append(*dst, model.SeriesPoint{Month: ym, Value: parseNumber(p[k.value])})
		}
	}
	return out
}

func seriesFromModel(s model.SeriesSet) SeriesDTO {
	out := SeriesDTO{}
	for _, k := range seriesKeys {
		src := *k.pick(&s)
		points := make([]PointDTO, 0, len(src))
		for _, p := range src {
			month, _ := json.Marshal(p.Month.String())
			value, _ := Num(p.Value).MarshalJSON()
			points = append(points, PointDTO{monthKey: month, k.value: value})
		}
		out[k.series] = points
	}
	return out
}

// RankingRowDTO is one row of ranking_clinicas.
type RankingRowDTO struct {
	EntityID         json.RawMessage `json:"clinica_id"`
	EntityName       string          `json:"clinica_nome"`
	TaxID            string          `json:"cnpj"`
	Score            Number          `json:"score_credito"`
	RiskCategory     *string         `json:"categoria_risco"`
	ApprovedLimit    Number          `json:"limite_aprovado"`
	SuggestedLimit   Number          `json:"limite_sugerido"`
	EmittedVolume12m Number          `json:"valor_total_emitido_12m"`
	Delinquency12m   Number          `json:"inadimplencia_media_12m"`
}

// PeriodDTO is the month interval the provider covered.
type PeriodDTO struct {
	Min string `json:"min_mes_ref"`
	Max string `json:"max_mes_ref"`
}

// FiltersDTO echoes the applied filters.
type FiltersDTO struct {
	Period PeriodDTO `json:"periodo"`
}

// ContextDTO describes the queried scope.
type ContextDTO struct {
	EntityName string `json:"clinica_nome"`
}

// DashboardDTO is the wire shape of GET /dashboard.
type DashboardDTO struct {
	Filters FiltersDTO      `json:"filtros"`
	Kpis    KpisDTO         `json:"kpis"`
	Context ContextDTO      `json:"contexto"`
	Series  SeriesDTO       `json:"series"`
	Ranking []RankingRowDTO `json:"ranking_clinicas"`
}

// ToModel converts the wire answer for spec into a domain payload.
func (d DashboardDTO) ToModel(spec model.QuerySpec) model.DashboardPayload {
	out := model.DashboardPayload{
		Spec:    spec,
		Kpis:    d.Kpis.toModel(),
		Context: model.PayloadContext{EntityName: d.Context.EntityName},
		Series:  d.Series.toModel(),
		Ranking: make([]model.EntityRankingRow, 0, len(d.Ranking)),
	}
	if ym, ok := model.ParseYearMonth(d.Filters.Period.Min); ok {
		out.PeriodBounds.Min = ym
	}
	if ym, ok := model.ParseYearMonth(d.Filters.Period.Max); ok {
		out.PeriodBounds.Max = ym
	}
	for _, r := range d.Ranking {
		out.Ranking = append(out.Ranking, model.EntityRankingRow{
			EntityID:         rawID(r.EntityID),
			EntityName:       r.EntityName,
			TaxID:            r.TaxID,
			Score:            r.Score.Value,
			RiskCategory:     r.RiskCategory,
			ApprovedLimit:    r.ApprovedLimit.Value,
			SuggestedLimit:   r.SuggestedLimit.Value,
			EmittedVolume12m: r.EmittedVolume12m.Value,
			Delinquency12m:   r.Delinquency12m.Value,
		})
	}
	return out
}

// DashboardFromModel encodes a domain payload in the provider wire shape.
func DashboardFromModel(p model.DashboardPayload) DashboardDTO {
	var d DashboardDTO
	d.Filters.Period.Min = p.PeriodBounds.Min.String()
	d.Filters.Period.Max = p.PeriodBounds.Max.String()
	d.Kpis = kpisFromModel(p.Kpis)
	d.Context.EntityName = p.Context.EntityName
	d.Series = seriesFromModel(p.Series)
	d.Ranking = make([]RankingRowDTO, 0, len(p.Ranking))
	for _, r := range p.Ranking {
		id, _ := json.Marshal(r.EntityID)
		d.Ranking = append(d.Ranking, RankingRowDTO{
			EntityID:         id,
			EntityName:       r.EntityName,
			TaxID:            r.TaxID,
			Score:            Num(r.Score),
			RiskCategory:     r.RiskCategory,
			ApprovedLimit:    Num(r.ApprovedLimit),
			SuggestedLimit:   Num(r.SuggestedLimit),
			EmittedVolume12m: Num(r.EmittedVolume12m),
			Delinquency12m:   Num(r.Delinquency12m),
		})
	}
	return d
}

// EntityFromModel encodes an entity reference.
func EntityFromModel(e model.EntityRef) EntityDTO {
	id, _ := json.Marshal(e.ID)
	return EntityDTO{ID: id, Name: e.Name, TaxID: e.TaxID}
}

// DecisionDTO is one history record and also the submission body.
type DecisionDTO struct {
	ApprovedLimit Number     `json:"limite_aprovado"`
	Note          *string    `json:"observacao"`
	ApprovedBy    string     `json:"aprovado_por"`
	ApprovedAt    *Timestamp `json:"aprovado_em,omitempty"`
}

// ToModel converts the record.
func (d DecisionDTO) ToModel() model.LimitDecision {
	out := model.LimitDecision{
		ApprovedLimit: d.ApprovedLimit.Value,
		Note:          d.Note,
		ApprovedBy:    d.ApprovedBy,
	}
	if d.ApprovedAt != nil {
		out.ApprovedAt = d.ApprovedAt.Time
	}
	return out
}

// DecisionFromModel encodes a decision. A zero ApprovedAt is omitted so
// the provider stamps the record itself.
func DecisionFromModel(d model.LimitDecision) DecisionDTO {
	out := DecisionDTO{ApprovedLimit: Num(d.ApprovedLimit), Note: d.Note, ApprovedBy: d.ApprovedBy}
	if !d.ApprovedAt.IsZero() {
		out.ApprovedAt = &Timestamp{Time: d.ApprovedAt}
	}
	return out
}

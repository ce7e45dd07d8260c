package fake

import (
	"errors"
	"math"

	"github.com/okian/creditconsole/internal/domain/model"
)

// ErrUnknownEntity is returned for ids outside the portfolio.
var ErrUnknownEntity = errors.New("unknown entity")

const (
	kpiMonths       = 12
	shortBaseMonths = 3
	portfolioName   = "All clinics"
)

// monthAgg is one month of a scope, volume weighted across entities.
type monthAgg struct {
	month        model.YearMonth
	volume       float64
	sales        int
	score        *float64
	delinquency  *float64
	onTime       *float64
	paymentDays  *float64
	installments *float64
}

// weighted accumulates a volume-weighted mean over non-nil values.
type weighted struct{ sum, weight float64 }

func (w *weighted) add(v *float64, weight float64) {
	if v == nil {
		return
	}
	if weight <= 0 {
		weight = 1
	}
	w.sum += *v * weight
	w.weight += weight
}

func (w weighted) value(digits float64) *float64 {
	if w.weight == 0 {
		return nil
	}
	return model.Float(math.Round(w.sum/w.weight*digits) / digits)
}

// Entity looks an entity up by id.
func (p Portfolio) Entity(id string) (Entity, bool) {
	for _, e := range p.Entities {
		if e.Ref.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// window returns the indices of p.Months selected by w.
func (p Portfolio) window(w model.Window) (from, to int) {
	switch w.Mode {
	case model.WindowRange:
		from, to = -1, -1
		for i, m := range p.Months {
			if m.Compare(w.Start) >= 0 && m.Compare(w.End) <= 0 {
				if from < 0 {
					from = i
				}
				to = i + 1
			}
		}
		if from < 0 {
			return 0, 0
		}
		return from, to
	default:
		n := min(max(w.Months, 0), len(p.Months))
		return len(p.Months) - n, len(p.Months)
	}
}

func (p Portfolio) aggregate(entities []Entity, from, to int) []monthAgg {
	out := make([]monthAgg, 0, to-from)
	for i := from; i < to; i++ {
		var score, delinquency, onTime, days, inst weighted
		agg := monthAgg{month: p.Months[i]}
		for _, e := range entities {
			rec := e.Months[i]
			agg.volume += rec.Volume
			agg.sales += rec.Sales
			score.add(rec.Score, rec.Volume)
			delinquency.add(rec.Delinquency, rec.Volume)
			onTime.add(rec.OnTimeRate, rec.Volume)
			days.add(rec.PaymentDays, rec.Volume)
			inst.add(rec.Installments, rec.Volume)
		}
		agg.volume = round2(agg.volume)
		agg.score = score.value(100)
		agg.delinquency = delinquency.value(10000)
		agg.onTime = onTime.value(10000)
		agg.paymentDays = days.value(100)
		agg.installments = inst.value(100)
		out = append(out, agg)
	}
	return out
}

func mean(months []monthAgg, pick func(monthAgg) *float64, digits float64) *float64 {
	var w weighted
	for _, m := range months {
		w.add(pick(m), 1)
	}
	return w.value(digits)
}

func tail(months []monthAgg, n int) []monthAgg {
	if len(months) > n {
		return months[len(months)-n:]
	}
	return months
}

func volumeOf(months []monthAgg) float64 {
	var total float64
	for _, m := range months {
		total += m.volume
	}
	return round2(total)
}

// suggestion is the output of the limit model for one scope.
type suggestion struct {
	limit, base12m, base3m, baseLast, blended, factor, cap *float64
}

func suggest(months []monthAgg, score *float64, portfolioVolume float64) suggestion {
	if len(months) == 0 || score == nil {
		return suggestion{}
	}
	last12 := tail(months, kpiMonths)
	b12 := volumeOf(last12) / float64(len(last12))
	last3 := tail(months, shortBaseMonths)
	b3 := volumeOf(last3) / float64(len(last3))
	bl := months[len(months)-1].volume
	blended := weight12m*b12 + weight3m*b3 + weightLast*bl
	factor := riskFactor(Category(*score))
	capValue := globalCapShare * portfolioVolume
	limit := math.Min(blended*factor, capValue)
	return suggestion{
		limit:    model.Float(round2(limit)),
		base12m:  model.Float(round2(b12)),
		base3m:   model.Float(round2(b3)),
		baseLast: model.Float(round2(bl)),
		blended:  model.Float(round2(blended)),
		factor:   model.Float(factor),
		cap:      model.Float(round2(capValue)),
	}
}

func lastScore(months []monthAgg) (score, delta *float64) {
	if len(months) == 0 {
		return nil, nil
	}
	score = months[len(months)-1].score
	if len(months) > 1 && score != nil && months[len(months)-2].score != nil {
		delta = model.Float(round2(*score - *months[len(months)-2].score))
	}
	return score, delta
}

// Dashboard computes the payload for spec. approved holds the current
// approved limit per entity id.
func (p Portfolio) Dashboard(spec model.QuerySpec, approved map[string]*float64) (model.DashboardPayload, error) {
	scope := p.Entities
	name := portfolioName
	if !spec.IsAllEntities() {
		e, ok := p.Entity(spec.EntityID)
		if !ok {
			return model.DashboardPayload{}, ErrUnknownEntity
		}
		scope = []Entity{e}
		name = e.Ref.Name
	}

	from, to := p.window(spec.Window)
	months := p.aggregate(scope, from, to)
	portfolioMonths := p.aggregate(p.Entities, from, to)
	portfolioVolume := volumeOf(tail(portfolioMonths, kpiMonths))

	out := model.DashboardPayload{
		Spec:    spec,
		Context: model.PayloadContext{EntityName: name},
		Ranking: p.Ranking(approved),
	}
	if len(months) == 0 {
		return out, nil
	}
	out.PeriodBounds = model.PeriodBounds{Min: months[0].month, Max: months[len(months)-1].month}
	out.Series = seriesOf(months)
	out.Kpis = kpisOf(months, portfolioVolume)
	out.Kpis.ApprovedLimit = approvedFor(scope, approved)
	return out, nil
}

func kpisOf(months []monthAgg, portfolioVolume float64) model.KpiSet {
	last12 := tail(months, kpiMonths)
	last := months[len(months)-1]
	score, delta := lastScore(months)
	vol12 := volumeOf(last12)
	sales12 := 0
	for _, m := range last12 {
		sales12 += m.sales
	}

	k := model.KpiSet{
		Score:                   score,
		ScoreDelta:              delta,
		EmittedVolume12m:        model.Float(vol12),
		EmittedVolumeLastMonth:  model.Float(last.volume),
		Delinquency12m:          mean(last12, func(m monthAgg) *float64 { return m.delinquency }, 10000),
		DelinquencyLastMonth:    last.delinquency,
		OnTimeRate12m:           mean(last12, func(m monthAgg) *float64 { return m.onTime }, 10000),
		OnTimeRateLastMonth:     last.onTime,
		AvgPaymentDays12m:       mean(last12, func(m monthAgg) *float64 { return m.paymentDays }, 100),
		AvgPaymentDaysLastMonth: last.paymentDays,
	}
	if score != nil {
		k.RiskCategory = model.Text(Category(*score))
	}
	if sales12 > 0 {
		k.AvgTicket12m = model.Float(round2(vol12 / float64(sales12)))
	}
	if last.sales > 0 {
		k.AvgTicketLastMonth = model.Float(round2(last.volume / float64(last.sales)))
	}
	if portfolioVolume > 0 {
		k.PortfolioShare = model.Float(round4(vol12 / portfolioVolume))
	}

	s := suggest(months, score, portfolioVolume)
	k.SuggestedLimit = s.limit
	k.SuggestedBase12m = s.base12m
	k.SuggestedBase3m = s.base3m
	k.SuggestedBaseLastMonth = s.baseLast
	k.SuggestedBaseBlended = s.blended
	k.RiskMultiplier = s.factor
	k.GlobalCap = s.cap
	return k
}

func seriesOf(months []monthAgg) model.SeriesSet {
	var s model.SeriesSet
	for _, m := range months {
		s.ScoreByMonth = append(s.ScoreByMonth, model.SeriesPoint{Month: m.month, Value: m.score})
		s.VolumeByMonth = append(s.VolumeByMonth, model.SeriesPoint{Month: m.month, Value: model.Float(m.volume)})
		s.DelinquencyByMonth = append(s.DelinquencyByMonth, model.SeriesPoint{Month: m.month, Value: m.delinquency})
		s.OnTimeRateByMonth = append(s.OnTimeRateByMonth, model.SeriesPoint{Month: m.month, Value: m.onTime})
		s.AvgPaymentDaysByMonth = append(s.AvgPaymentDaysByMonth, model.SeriesPoint{Month: m.month, Value: m.paymentDays})
		s.InstallmentCountByMonth = append(s.InstallmentCountByMonth, model.SeriesPoint{Month: m.month, Value: m.installments})
	}
	return s
}

func approvedFor(scope []Entity, approved map[string]*float64) *float64 {
	var total float64
	found := false
	for _, e := range scope {
		if v, ok := model.Finite(approved[e.Ref.ID]); ok {
			total += v
			found = true
		}
	}
	if !found {
		return nil
	}
	return model.Float(total)
}

// Ranking is the cross-portfolio comparison for the last closed month,
// in portfolio order.
func (p Portfolio) Ranking(approved map[string]*float64) []model.EntityRankingRow {
	from, to := p.window(model.RollingWindow(kpiMonths))
	portfolioVolume := volumeOf(p.aggregate(p.Entities, from, to))
	rows := make([]model.EntityRankingRow, 0, len(p.Entities))
	for _, e := range p.Entities {
		months := p.aggregate([]Entity{e}, from, to)
		row := model.EntityRankingRow{
			EntityID:      e.Ref.ID,
			EntityName:    e.Ref.Name,
			TaxID:         e.Ref.TaxID,
			ApprovedLimit: approved[e.Ref.ID],
		}
		if len(months) > 0 {
			score, _ := lastScore(months)
			row.Score = score
			if score != nil {
				row.RiskCategory = model.Text(Category(*score))
			}
			row.EmittedVolume12m = model.Float(volumeOf(months))
			row.Delinquency12m = mean(months, func(m monthAgg) *float64 { return m.delinquency }, 10000)
			row.SuggestedLimit = suggest(months, score, portfolioVolume).limit
		}
		rows = append(rows, row)
	}
	return rows
}

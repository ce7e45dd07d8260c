// Package fake is an in-memory analytics provider. It generates a
// synthetic clinic portfolio and serves it over the same HTTP surface as
// the real provider, for local runs and tests.
package fake

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/creditconsole/internal/domain/model"
)

// Generation ranges.
const (
	scoreMin        = 380.0
	scoreRange      = 520.0
	scoreDrift      = 25.0
	volumeMin       = 20_000.0
	volumeRange     = 380_000.0
	volumeDrift     = 0.18
	delinquencyMax  = 0.12
	paymentDaysMin  = 18.0
	paymentDaysSpan = 40.0
	installmentsMin = 2.0
	installmentsMax = 12.0
	gapProbability  = 0.04
	ticketMin       = 800.0
	ticketRange     = 1_200.0
)

// Suggested-limit model.
const (
	weight12m      = 0.5
	weight3m       = 0.3
	weightLast     = 0.2
	globalCapShare = 0.10
)

var entityNamespace = uuid.MustParse("6f1b3c0e-5d1a-4e59-9a57-3c5d2a1f0b11") //nolint:gochecknoglobals // stable id namespace

// MonthRecord is one entity-month of portfolio activity. Nil fields are
// months the entity reported nothing for.
type MonthRecord struct {
	Month        model.YearMonth
	Score        *float64
	Volume       float64
	Delinquency  *float64
	OnTimeRate   *float64
	PaymentDays  *float64
	Installments *float64
	Sales        int
}

// Entity is a generated clinic with its monthly history, oldest first.
type Entity struct {
	Ref    model.EntityRef
	Months []MonthRecord
}

// Portfolio is the full synthetic dataset.
type Portfolio struct {
	Entities []Entity
	// Months lists the closed months covered, oldest first.
	Months []model.YearMonth
}

// Generate builds a deterministic portfolio of n entities over the given
// number of closed months ending the month before now.
func Generate(n, months int, seed uint64, now time.Time) Portfolio {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	p := Portfolio{Months: closedMonths(now, months)}
	for i := range n {
		name := fmt.Sprintf("Clinica %02d", i+1)
		ref := model.EntityRef{
			ID:    uuid.NewSHA1(entityNamespace, []byte(name)).String(),
			Name:  name,
			TaxID: taxID(r),
		}
		p.Entities = append(p.Entities, Entity{Ref: ref, Months: generateMonths(r, p.Months)})
	}
	return p
}

func generateMonths(r *rand.Rand, months []model.YearMonth) []MonthRecord {
	score := scoreMin + r.Float64()*scoreRange
	volume := volumeMin + r.Float64()*volumeRange
	out := make([]MonthRecord, 0, len(months))
	for _, m := range months {
		score = clamp(score+(r.Float64()*2-1)*scoreDrift, 0, 1000)
		volume = math.Max(0, volume*(1+(r.Float64()*2-1)*volumeDrift))
		quality := score / 1000
		rec := MonthRecord{
			Month:        m,
			Volume:       round2(volume),
			Score:        model.Float(round2(score)),
			Delinquency:  model.Float(round4(delinquencyMax * (1 - quality) * r.Float64() * 2)),
			OnTimeRate:   model.Float(round4(clamp(quality+r.Float64()*0.15, 0, 1))),
			PaymentDays:  model.Float(round2(paymentDaysMin + paymentDaysSpan*(1-quality)*r.Float64())),
			Installments: model.Float(round2(installmentsMin + r.Float64()*(installmentsMax-installmentsMin))),
			Sales:        int(volume / (ticketMin + r.Float64()*ticketRange)),
		}
		if r.Float64() < gapProbability {
			rec.Score = nil
			rec.OnTimeRate = nil
		}
		out = append(out, rec)
	}
	return out
}

func closedMonths(now time.Time, n int) []model.YearMonth {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.YearMonth, n)
	for i := range n {
		t := first.AddDate(0, -(n - i), 0)
		out[i] = model.YearMonth(t.Format("2006-01"))
	}
	return out
}

func taxID(r *rand.Rand) string {
	return fmt.Sprintf("%02d.%03d.%03d/0001-%02d", r.IntN(100), r.IntN(1000), r.IntN(1000), r.IntN(100))
}

// Category buckets a score into a risk letter.
func Category(score float64) string {
	switch {
	case score >= 800:
		return "A"
	case score >= 650:
		return "B"
	case score >= 500:
		return "C"
	default:
		return "D"
	}
}

func riskFactor(category string) float64 {
	switch category {
	case "A":
		return 1.2
	case "B":
		return 1.0
	case "C":
		return 0.7
	default:
		return 0.4
	}
}

func clamp(v, lo, hi float64) float64 { return math.Min(hi, math.Max(lo, v)) }
func round2(v float64) float64        { return math.Round(v*100) / 100 }
func round4(v float64) float64        { return math.Round(v*10000) / 10000 }

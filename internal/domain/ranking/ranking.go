// Package ranking orders and filters the cross-entity comparison table.
package ranking

import (
	"sort"
	"strings"

	"github.com/okian/creditconsole/internal/domain/model"
)

// SortKey selects the ordering column. All keys sort descending; rows with
// no value sort after rows with one.
type SortKey string

const (
	SortByScore         SortKey = "score"
	SortByVolume        SortKey = "volume"
	SortByDelinquency   SortKey = "delinquency"
	SortByApprovedLimit SortKey = "approved_limit"
)

// Options controls Select. The zero value sorts by score with no cut and no
// name filter.
type Options struct {
	SortBy     SortKey
	TopN       int
	NameFilter string
}

// Select returns a new slice: rows matching NameFilter (case-insensitive
// substring of EntityName), stably sorted descending by SortBy, cut to TopN
// when TopN > 0. The input is never modified; ties keep provider order.
func Select(rows []model.EntityRankingRow, opts Options) []model.EntityRankingRow {
	needle := strings.ToLower(strings.TrimSpace(opts.NameFilter))
	out := make([]model.EntityRankingRow, 0, len(rows))
	for _, r := range rows {
		if needle != "" && !strings.Contains(strings.ToLower(r.EntityName), needle) {
			continue
		}
		out = append(out, r)
	}

	key := keyFunc(opts.SortBy)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := key(out[i])
		b, bok := key(out[j])
		if aok != bok {
			return aok
		}
		return a > b
	})

	if opts.TopN > 0 && len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out
}

// FilterEntities applies the same case-insensitive name match to the
// entity list, preserving order.
func FilterEntities(entities []model.EntityRef, name string) []model.EntityRef {
	needle := strings.ToLower(strings.TrimSpace(name))
	out := make([]model.EntityRef, 0, len(entities))
	for _, e := range entities {
		if needle == "" || strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}

func keyFunc(k SortKey) func(model.EntityRankingRow) (float64, bool) {
	switch k {
	case SortByVolume:
		return func(r model.EntityRankingRow) (float64, bool) { return model.Finite(r.EmittedVolume12m) }
	case SortByDelinquency:
		return func(r model.EntityRankingRow) (float64, bool) { return model.Finite(r.Delinquency12m) }
	case SortByApprovedLimit:
		return func(r model.EntityRankingRow) (float64, bool) { return model.Finite(r.ApprovedLimit) }
	default:
		return func(r model.EntityRankingRow) (float64, bool) { return model.Finite(r.Score) }
	}
}

// ParseSortKey maps user input to a key, defaulting to score.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByVolume:
		return SortByVolume
	case SortByDelinquency:
		return SortByDelinquency
	case SortByApprovedLimit:
		return SortByApprovedLimit
	default:
		return SortByScore
	}
}

// Package series merges independently keyed monthly series into one table
// ordered by month.
package series

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/okian/creditconsole/internal/domain/model"
)

// Field names used by the dashboard tables.
const (
	FieldScore          = "score"
	FieldDelinquency    = "delinquency"
	FieldOnTimeRate     = "on_time_rate"
	FieldVolume         = "volume"
	FieldAvgPaymentDays = "avg_payment_days"
	FieldInstallments   = "installments"
)

// Named pairs a field name with its source observations.
type Named struct {
	Name   string
	Points []model.SeriesPoint
}

// Row is one month of the merged table. A field is present only when some
// source reported a non-null value for that month; absence means no data
// and is distinct from a present zero.
type Row struct {
	Month  model.YearMonth
	values map[string]float64
}

// Value returns the field value and whether it is present.
func (r Row) Value(field string) (float64, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Has reports whether field is present.
func (r Row) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Fields lists present field names in sorted order.
func (r Row) Fields() []string {
	names := make([]string, 0, len(r.values))
	for k := range r.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON flattens the row into {"month": ..., <field>: <value>, ...},
// omitting absent fields.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"month":`)
	month, err := json.Marshal(r.Month)
	if err != nil {
		return nil, err
	}
	buf.Write(month)
	for _, name := range r.Fields() {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Merge folds sources into rows keyed by month and sorted ascending. The
// month set is the union of all source months. Within a source, a repeated
// month overwrites the earlier value, but a null never erases a value
// already seen.
func Merge(sources ...Named) []Row {
	acc := make(map[model.YearMonth]map[string]float64)
	for _, src := range sources {
		for _, p := range src.Points {
			row, ok := acc[p.Month]
			if !ok {
				row = make(map[string]float64)
				acc[p.Month] = row
			}
			if v, present := model.Finite(p.Value); present {
				row[src.Name] = v
			}
		}
	}

	rows := make([]Row, 0, len(acc))
	for month, values := range acc {
		rows = append(rows, Row{Month: month, values: values})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Month < rows[j].Month
	})
	return rows
}

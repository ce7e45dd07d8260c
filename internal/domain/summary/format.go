package summary

import (
	"strings"

	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/shopspring/decimal"
)

const missing = "-"

// Currency renders v as Brazilian reais, e.g. "R$ 1.234,50".
func Currency(v *float64) string {
	f, ok := model.Finite(v)
	if !ok {
		return missing
	}
	d := decimal.NewFromFloat(f).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + "R$ " + groupThousands(intPart, ".") + "," + frac
}

// Percent renders a rate. Values within [-1, 1] are fractions and are
// scaled by 100; larger magnitudes are already percentages.
func Percent(v *float64) string {
	f, ok := model.Finite(v)
	if !ok {
		return missing
	}
	d := decimal.NewFromFloat(f)
	if f <= 1 && f >= -1 {
		d = d.Shift(2)
	}
	return d.StringFixed(2) + "%"
}

// Fixed renders v with the given number of decimals.
func Fixed(v *float64, places int32) string {
	f, ok := model.Finite(v)
	if !ok {
		return missing
	}
	return decimal.NewFromFloat(f).StringFixed(places)
}

// Days renders an average day count with one decimal.
func Days(v *float64) string {
	s := Fixed(v, 1)
	if s == missing {
		return s
	}
	return s + " days"
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

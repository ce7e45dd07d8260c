// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
)

// YearMonth identifies a calendar month serialized as YYYY-MM. The lexical
// order of valid values matches calendar order, so plain string comparison
// is used wherever months are sorted or compared.
type YearMonth string

const yearMonthLen = len("2006-01")

// ParseYearMonth normalizes s to YYYY-MM. Day-qualified dates (YYYY-MM-DD)
// are truncated to their month. Returns false when s is not a month.
func ParseYearMonth(s string) (YearMonth, bool) {
	s = strings.TrimSpace(s)
	if len(s) > yearMonthLen && s[yearMonthLen] == '-' {
		s = s[:yearMonthLen]
	}
	if len(s) != yearMonthLen || s[4] != '-' {
		return "", false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1 {
		return "", false
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	return YearMonth(s), true
}

// MustYearMonth is ParseYearMonth for literals; it panics on invalid input.
func MustYearMonth(s string) YearMonth {
	ym, ok := ParseYearMonth(s)
	if !ok {
		panic("model: invalid year-month " + strconv.Quote(s))
	}
	return ym
}

// Valid reports whether ym is a well-formed month.
func (ym YearMonth) Valid() bool {
	_, ok := ParseYearMonth(string(ym))
	return ok && len(ym) == yearMonthLen
}

// Compare returns -1, 0 or +1 following calendar order.
func (ym YearMonth) Compare(other YearMonth) int {
	return strings.Compare(string(ym), string(other))
}

// String implements fmt.Stringer.
func (ym YearMonth) String() string { return string(ym) }

// Label renders the month as MM/YYYY for display.
func (ym YearMonth) Label() string {
	if !ym.Valid() {
		if ym == "" {
			return "-"
		}
		return string(ym)
	}
	return string(ym[5:]) + "/" + string(ym[:4])
}

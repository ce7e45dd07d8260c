// Package filter resolves raw dashboard filter inputs into a QuerySpec.
//
// Inputs come from a UI, not from a validated boundary: nothing here fails.
// Unparseable values fall back to defaults.
package filter

import (
	"strconv"
	"strings"

	"github.com/okian/creditconsole/internal/domain/model"
)

// DefaultWindowMonths is used when the rolling window is absent or invalid.
const DefaultWindowMonths = 12

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithDefaultWindow sets the fallback rolling window. Ignored unless it is
// one of the allowed windows.
func WithDefaultWindow(months int) Option {
	return func(r *Resolver) {
		if r.allowed[months] {
			r.defaultMonths = months
		}
	}
}

// WithAllowedWindows replaces the set of accepted rolling windows.
func WithAllowedWindows(months ...int) Option {
	return func(r *Resolver) {
		allowed := make(map[int]bool, len(months))
		for _, m := range months {
			if m > 0 {
				allowed[m] = true
			}
		}
		if len(allowed) > 0 {
			r.allowed = allowed
		}
	}
}

// Resolver turns raw filter inputs into a canonical QuerySpec.
type Resolver struct {
	allowed       map[int]bool
	defaultMonths int
}

// NewResolver creates a resolver accepting 6, 12 and 24 month windows.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		allowed:       map[int]bool{6: true, 12: true, 24: true},
		defaultMonths: DefaultWindowMonths,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.allowed[r.defaultMonths] {
		r.defaultMonths = smallestAllowed(r.allowed)
	}
	return r
}

// Resolve builds the QuerySpec. When both start and end are present and
// form a valid range, the range wins and rawWindow is ignored; otherwise
// a rolling window is produced.
func (r *Resolver) Resolve(rawEntity, rawWindow, rawStart, rawEnd string) model.QuerySpec {
	spec := model.QuerySpec{EntityID: resolveEntity(rawEntity)}

	if strings.TrimSpace(rawStart) != "" && strings.TrimSpace(rawEnd) != "" {
		start, okStart := model.ParseYearMonth(rawStart)
		end, okEnd := model.ParseYearMonth(rawEnd)
		if okStart && okEnd && start.Compare(end) <= 0 {
			spec.Window = model.RangeWindow(start, end)
			return spec
		}
	}

	spec.Window = model.RollingWindow(r.months(rawWindow))
	return spec
}

// DefaultMonths returns the fallback rolling window.
func (r *Resolver) DefaultMonths() int { return r.defaultMonths }

func (r *Resolver) months(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !r.allowed[n] {
		return r.defaultMonths
	}
	return n
}

func resolveEntity(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || strings.EqualFold(id, model.AllEntities) {
		return model.AllEntities
	}
	return id
}

func smallestAllowed(allowed map[int]bool) int {
	best := 0
	for m := range allowed {
		if best == 0 || m < best {
			best = m
		}
	}
	return best
}

var defaultResolver = NewResolver()

// Resolve uses the default resolver.
func Resolve(rawEntity, rawWindow, rawStart, rawEnd string) model.QuerySpec {
	return defaultResolver.Resolve(rawEntity, rawWindow, rawStart, rawEnd)
}

package model

import "fmt"

// AllEntities is the sentinel entity id selecting the whole portfolio.
const AllEntities = "all"

// WindowMode selects how the reporting period is expressed.
type WindowMode string

const (
	WindowRolling WindowMode = "rolling"
	WindowRange   WindowMode = "range"
)

// Window is either a trailing number of closed months or an inclusive
// start/end month range. Exactly one of the two shapes is meaningful,
// selected by Mode.
type Window struct {
	Mode   WindowMode `json:"mode"`
	Months int        `json:"months,omitempty"`
	Start  YearMonth  `json:"start,omitempty"`
	End    YearMonth  `json:"end,omitempty"`
}

// RollingWindow builds a rolling window of n months.
func RollingWindow(n int) Window {
	return Window{Mode: WindowRolling, Months: n}
}

// RangeWindow builds an inclusive month range.
func RangeWindow(start, end YearMonth) Window {
	return Window{Mode: WindowRange, Start: start, End: end}
}

// QuerySpec is the canonical filter context for one dashboard request. It is
// a value: a new filter produces a new QuerySpec, never a mutation.
type QuerySpec struct {
	EntityID string `json:"entity_id"`
	Window   Window `json:"window"`
}

// IsAllEntities reports whether the query targets the whole portfolio.
func (q QuerySpec) IsAllEntities() bool {
	return q.EntityID == "" || q.EntityID == AllEntities
}

// Validate checks the window invariants.
func (q QuerySpec) Validate() error {
	switch q.Window.Mode {
	case WindowRolling:
		if q.Window.Months <= 0 {
			return fmt.Errorf("rolling window needs a positive month count, got %d", q.Window.Months)
		}
	case WindowRange:
		if !q.Window.Start.Valid() || !q.Window.End.Valid() {
			return fmt.Errorf("range window needs start and end months, got %q..%q", q.Window.Start, q.Window.End)
		}
		if q.Window.Start.Compare(q.Window.End) > 0 {
			return fmt.Errorf("range window start %s is after end %s", q.Window.Start, q.Window.End)
		}
	default:
		return fmt.Errorf("unknown window mode %q", q.Window.Mode)
	}
	return nil
}

// String renders the query for logs.
func (q QuerySpec) String() string {
	if q.Window.Mode == WindowRange {
		return fmt.Sprintf("entity=%s range=%s..%s", q.EntityID, q.Window.Start, q.Window.End)
	}
	return fmt.Sprintf("entity=%s months=%d", q.EntityID, q.Window.Months)
}

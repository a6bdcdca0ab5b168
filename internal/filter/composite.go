package filter

import (
	"fmt"
	"strings"
)

// Predicate decides whether a row is kept.
type Predicate interface {
	// Match reports whether the row passes.
	Match(row map[string]any) bool

	// Description returns a human readable form of the predicate.
	Description() string
}

// LogicOp represents a logical operator for combining filters.
type LogicOp int

const (
	// LogicAND requires all filters to pass.
	LogicAND LogicOp = iota
	// LogicOR requires at least one filter to pass.
	LogicOR
)

// String returns the string representation of a LogicOp.
func (op LogicOp) String() string {
	switch op {
	case LogicAND:
		return "AND"
	case LogicOR:
		return "OR"
	default:
		return fmt.Sprintf("unknown(%d)", op)
	}
}

// CompositeFilter combines multiple predicates with AND or OR logic.
type CompositeFilter struct {
	// Filters is the list of predicates to combine.
	Filters []Predicate

	// Logic specifies how to combine the filters (AND or OR).
	Logic LogicOp
}

// And returns a composite requiring every non-nil predicate to pass.
func And(preds ...Predicate) *CompositeFilter {
	c := &CompositeFilter{Logic: LogicAND}
	for _, p := range preds {
		if p != nil {
			c.Filters = append(c.Filters, p)
		}
	}
	return c
}

// Match implements Predicate.
func (f *CompositeFilter) Match(row map[string]any) bool {
	if len(f.Filters) == 0 {
		return true // Empty filter passes all rows
	}

	switch f.Logic {
	case LogicOR:
		for _, p := range f.Filters {
			if p.Match(row) {
				return true
			}
		}
		return false
	default:
		for _, p := range f.Filters {
			if !p.Match(row) {
				return false
			}
		}
		return true
	}
}

// Description implements Predicate.
func (f *CompositeFilter) Description() string {
	if len(f.Filters) == 0 {
		return "empty filter"
	}

	descriptions := make([]string, len(f.Filters))
	for i, p := range f.Filters {
		descriptions[i] = p.Description()
	}

	return "(" + strings.Join(descriptions, " "+f.Logic.String()+" ") + ")"
}

// Apply returns the rows of src that pass p, preserving order.
func Apply[R ~map[string]any](src []R, p Predicate) []R {
	out := make([]R, 0, len(src))
	for _, row := range src {
		if p == nil || p.Match(row) {
			out = append(out, row)
		}
	}
	return out
}

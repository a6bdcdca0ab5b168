package filter

import (
	"strings"

	"datagrid/internal/cell"
)

// FieldFilter keeps rows whose formatted value for Key equals any of Values,
// ignoring case.
type FieldFilter struct {
	Key    string
	Values []string
}

// NewFieldFilter builds a FieldFilter from a filter value. Strings holding a
// comma separated set are split into their members.
func NewFieldFilter(key string, value any) *FieldFilter {
	var values []string
	switch v := value.(type) {
	case []string:
		values = v
	case string:
		values = strings.Split(v, ",")
	default:
		values = []string{cell.Format(v)}
	}

	f := &FieldFilter{Key: key}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			f.Values = append(f.Values, v)
		}
	}
	return f
}

// Match implements Predicate.
func (f *FieldFilter) Match(row map[string]any) bool {
	if len(f.Values) == 0 {
		return true
	}
	got := strings.TrimSpace(cell.Format(row[f.Key]))
	for _, want := range f.Values {
		if strings.EqualFold(got, want) {
			return true
		}
	}
	return false
}

// Description implements Predicate.
func (f *FieldFilter) Description() string {
	return f.Key + " in [" + strings.Join(f.Values, ", ") + "]"
}

// ContainsFilter keeps rows where any of Keys contains Term, ignoring case.
// An empty Keys searches every value in the row.
type ContainsFilter struct {
	Keys []string
	Term string
}

// Match implements Predicate.
func (f *ContainsFilter) Match(row map[string]any) bool {
	term := strings.ToLower(f.Term)
	if term == "" {
		return true
	}
	if len(f.Keys) == 0 {
		for _, v := range row {
			if strings.Contains(strings.ToLower(cell.Format(v)), term) {
				return true
			}
		}
		return false
	}
	for _, k := range f.Keys {
		if strings.Contains(strings.ToLower(cell.Format(row[k])), term) {
			return true
		}
	}
	return false
}

// Description implements Predicate.
func (f *ContainsFilter) Description() string {
	if len(f.Keys) == 0 {
		return "* ~ " + f.Term
	}
	return strings.Join(f.Keys, "|") + " ~ " + f.Term
}

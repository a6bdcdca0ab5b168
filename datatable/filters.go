package datatable

import (
	"sort"
	"strings"

	"datagrid/internal/cell"
)

// Filters maps filter keys to applied values. Only non-empty values are
// ever stored.
type Filters map[string]any

// Clone returns a copy of the filters.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the filter keys in sorted order.
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text returns the display form of the value stored under key.
func (f Filters) Text(key string) string {
	return cell.Format(f[key])
}

// set stores value under key, or removes the key when the value is empty.
func (f Filters) set(key string, value any) {
	if cell.Empty(value) {
		delete(f, key)
		return
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	f[key] = value
}

// filterValue builds the stored value for a selection on field.
func filterValue(field FilterField, values []string) any {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	switch {
	case len(kept) == 0:
		return nil
	case field.IsSingle:
		return kept[len(kept)-1]
	default:
		return strings.Join(kept, ",")
	}
}

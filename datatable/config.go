package datatable

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"datagrid/internal/cell"
)

// DefaultPageSize is used when Config.PageSize is zero.
const DefaultPageSize = 10

// StickySide pins a column to one edge of the table.
type StickySide int

const (
	StickyNone StickySide = iota
	StickyLeft
	StickyRight
)

// RenderFunc maps a row to the text shown in a cell. It must be a pure
// function of the row.
type RenderFunc func(row Row) string

// ColumnSpec describes one displayed column.
type ColumnSpec struct {
	// Key identifies the column and is the row key read by default.
	Key string
	// Label is the header text. Defaults to Key.
	Label string
	// Render overrides the default formatting of Row[Key].
	Render RenderFunc
	// Width is a preferred width in display units; zero lets the view decide.
	Width float32
	// Sortable enables the none/ascending/descending toggle.
	Sortable bool
	// Sticky pins the column.
	Sticky StickySide
	// Type is used for default formatting and alignment.
	Type DataType
}

// RowAction is a per-row button.
type RowAction struct {
	Label   string
	Icon    string
	OnClick func(row Row)
}

// HeaderAction is a table-level button that receives the displayed rows and
// the current selection.
type HeaderAction struct {
	Label   string
	OnClick func(rows []Row, selected []int)
}

// FilterOption is one selectable value of a FilterField.
type FilterOption struct {
	Label string
	Value string
}

// FilterField declares a column filter.
type FilterField struct {
	Key     string
	Label   string
	Options []FilterOption
	// IsSingle stores one value; otherwise selected values are comma-joined.
	IsSingle bool
	// MultiSelectChips renders selected values as chips. Presentation only.
	MultiSelectChips bool
}

// Config is the immutable configuration of a Table.
type Config struct {
	// Columns are the displayed columns. Keys must be unique.
	Columns []ColumnSpec

	// Data switches the table to static mode when non-nil; no fetch function
	// is ever called and paging, filtering, search and sort run in memory.
	Data []Row

	// API supplies the remote fetch functions.
	API API

	// PageSize defaults to DefaultPageSize.
	PageSize int

	// InitialPage defaults to 1.
	InitialPage int

	// InitialFilters are applied before the first fetch. Empty values are dropped.
	InitialFilters Filters

	// RowSelection enables checkbox selection.
	RowSelection bool

	// PreserveSelectionOnRefresh keeps the selection across a pure refresh
	// when the refreshed page has the same number of rows.
	PreserveSelectionOnRefresh bool

	RowActions    []RowAction
	HeaderActions []HeaderAction
	FilterFields  []FilterField

	// OnSelectionChange fires whenever the selection set changes. It
	// requires RowSelection.
	OnSelectionChange func(rows []Row, selected []int)

	// OnChange fires after every applied state change.
	OnChange func(State)

	// OnLoadingChange fires when a fetch starts or settles.
	OnLoadingChange func(loading bool)

	// OnError receives fetch failures. The table itself only shows an empty page.
	OnError func(err error)

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:                   DefaultPageSize,
		InitialPage:                1,
		PreserveSelectionOnRefresh: true,
	}
}

// withDefaults validates the configuration and returns a defensive copy with
// defaults applied.
func (c Config) withDefaults() (Config, error) {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize < 0 {
		return c, fmt.Errorf("%w: %d", ErrInvalidPageSize, c.PageSize)
	}
	if c.InitialPage < 1 {
		c.InitialPage = 1
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.OnSelectionChange != nil && !c.RowSelection {
		return c, fmt.Errorf("%w: selection callback requires row selection", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Columns))
	cols := make([]ColumnSpec, len(c.Columns))
	for i, col := range c.Columns {
		if strings.TrimSpace(col.Key) == "" {
			return c, fmt.Errorf("%w: column %d has no key", ErrInvalidConfig, i)
		}
		if seen[col.Key] {
			return c, fmt.Errorf("%w: %s", ErrDuplicateColumn, col.Key)
		}
		seen[col.Key] = true
		if col.Label == "" {
			col.Label = col.Key
		}
		cols[i] = col
	}
	c.Columns = cols

	fields := make(map[string]bool, len(c.FilterFields))
	for _, f := range c.FilterFields {
		if strings.TrimSpace(f.Key) == "" || fields[f.Key] {
			return c, fmt.Errorf("%w: filter field %q", ErrInvalidConfig, f.Key)
		}
		fields[f.Key] = true
	}

	if c.Data != nil {
		data := make([]Row, len(c.Data))
		copy(data, c.Data)
		c.Data = data
	}

	filters := Filters{}
	for k, v := range c.InitialFilters {
		if k != "" && !cell.Empty(v) {
			filters[k] = v
		}
	}
	c.InitialFilters = filters

	return c, nil
}

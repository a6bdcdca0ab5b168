package datatable

import "errors"

// Common errors returned by the datatable package.
var (
	// ErrInvalidRow is returned when a row index is outside the displayed page.
	ErrInvalidRow = errors.New("invalid row index")

	// ErrInvalidFilter is returned when a filter key is empty or not declared.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrColumnNotFound is returned when a column key is not found.
	ErrColumnNotFound = errors.New("column not found")

	// ErrDuplicateColumn is returned when two columns share a key.
	ErrDuplicateColumn = errors.New("duplicate column key")

	// ErrInvalidSortColumn is returned when trying to sort by an unsortable column.
	ErrInvalidSortColumn = errors.New("invalid sort column")

	// ErrInvalidPageSize is returned for page sizes below one.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrInvalidConfig is returned when a configuration combination is not allowed.
	ErrInvalidConfig = errors.New("invalid table configuration")

	// ErrSelectionDisabled is returned by selection calls when row selection is off.
	ErrSelectionDisabled = errors.New("row selection is disabled")

	// ErrInvalidAction is returned when an action index is out of range.
	ErrInvalidAction = errors.New("invalid action index")

	// ErrSuperseded is reported by a Pending whose result was discarded
	// because a newer request was issued.
	ErrSuperseded = errors.New("request superseded")

	// ErrClosed is returned by operations on a closed table.
	ErrClosed = errors.New("table is closed")

	// ErrFetchPanic wraps a panic raised inside a fetch function.
	ErrFetchPanic = errors.New("fetch function panicked")
)

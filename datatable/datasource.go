package datatable

import (
	"context"
	"fmt"
)

// FetchResult is the normalized page returned by a fetch function.
// Collaborators should populate both totals; when only one is present the
// other is derived.
type FetchResult struct {
	Data         []Row
	TotalPages   int
	TotalRecords int
	CurrentPage  int
	PageSize     int
}

// EmptyResult is the page shown after a failed fetch.
func EmptyResult(page, pageSize int) *FetchResult {
	return &FetchResult{CurrentPage: page, PageSize: pageSize}
}

// FilterPayload carries the state sent to a FilterFunc.
type FilterPayload struct {
	Page    int
	Filters Filters
	Sort    SortState
}

// SearchQuery carries the state sent to a SearchFunc.
type SearchQuery struct {
	Text   string
	Column string
	Page   int
}

// ListFunc fetches one page of an offset-paginated source.
type ListFunc func(ctx context.Context, page, pageSize int, filters Filters) (*FetchResult, error)

// FilterFunc fetches one page of rows matching the active column filters and sort.
type FilterFunc func(ctx context.Context, payload FilterPayload, pageSize int) (*FetchResult, error)

// SearchFunc fetches one page of free-text search results.
type SearchFunc func(ctx context.Context, query SearchQuery, pageSize int) (*FetchResult, error)

// API groups the remote fetch functions of a table. Any of them may be nil.
type API struct {
	List     ListFunc
	FilterBy FilterFunc
	Search   SearchFunc
}

// IsZero reports whether no fetch function is configured.
func (a API) IsZero() bool {
	return a.List == nil && a.FilterBy == nil && a.Search == nil
}

// Mode identifies which source serves a request.
type Mode int

const (
	// ModeNone means there is nothing to fetch from; the table stays empty.
	ModeNone Mode = iota
	// ModeStatic pages over the configured in-memory rows.
	ModeStatic
	// ModeList uses API.List.
	ModeList
	// ModeFilter uses API.FilterBy.
	ModeFilter
	// ModeSearch uses API.Search.
	ModeSearch
)

// String returns the string representation of a Mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeStatic:
		return "static"
	case ModeList:
		return "list"
	case ModeFilter:
		return "filter"
	case ModeSearch:
		return "search"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// normalize fills derived totals and enforces len(Data) <= pageSize.
func (r *FetchResult) normalize(page, pageSize int) FetchResult {
	if r == nil {
		return *EmptyResult(page, pageSize)
	}

	out := *r
	if out.CurrentPage < 1 {
		out.CurrentPage = page
	}
	if out.PageSize < 1 || out.PageSize > pageSize {
		out.PageSize = pageSize
	}

	if len(out.Data) > out.PageSize {
		out.Data = out.Data[:out.PageSize]
	}
	rows := make([]Row, len(out.Data))
	copy(rows, out.Data)
	out.Data = rows

	if out.TotalPages < 0 {
		out.TotalPages = 0
	}
	if out.TotalRecords < 0 {
		out.TotalRecords = 0
	}
	switch {
	case out.TotalPages == 0 && out.TotalRecords > 0:
		out.TotalPages = (out.TotalRecords + out.PageSize - 1) / out.PageSize
	case out.TotalRecords == 0 && out.TotalPages > 1:
		out.TotalRecords = out.TotalPages * out.PageSize
	case out.TotalRecords == 0 && out.TotalPages <= 1:
		out.TotalRecords = len(out.Data)
	}
	if out.TotalPages == 0 && len(out.Data) > 0 {
		out.TotalPages = 1
	}
	return out
}

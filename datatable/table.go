// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datatable

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"datagrid/internal/cell"
)

// errUnchanged short-circuits a state change that would not alter anything.
var errUnchanged = errors.New("unchanged")

type changeKind int

const (
	// changeNavigate covers page and page size changes.
	changeNavigate changeKind = iota
	// changeQuery covers filter, sort and search changes.
	changeQuery
	// changeRefresh refetches the current state.
	changeRefresh
)

func (k changeKind) String() string {
	switch k {
	case changeNavigate:
		return "navigate"
	case changeQuery:
		return "query"
	default:
		return "refresh"
	}
}

// request is the frozen state a fetch runs against.
type request struct {
	mode         Mode
	page         int
	pageSize     int
	filters      Filters
	sort         SortState
	search       string
	searchColumn string
}

// State is a point-in-time snapshot of a table.
// Rows are shared with the table and must be treated as read-only.
type State struct {
	Rows         []Row
	CurrentPage  int
	PageSize     int
	TotalPages   int
	TotalRecords int
	Filters      Filters
	Sort         SortState
	Search       string
	SearchColumn string
	Selected     []int
	RefreshKey   any
	Loading      bool
	Mode         Mode
	// Version increases with every change notified to observers. Snapshots
	// with a lower version are older.
	Version uint64
}

type tableState struct {
	rows           []Row
	page           int
	pageSize       int
	totalPages     int
	totalRecords   int
	filters        Filters
	sort           SortState
	search         string
	searchColumn   string
	selected       map[int]struct{}
	selectionReset bool
	refreshKey     any
	loading        bool
	mode           Mode
}

// notice is one queued state change. Notices are delivered in version
// order, after the lock is released.
type notice struct {
	state       *State
	loadingOnly bool
	selection   bool
	err         error
}

// Table owns the state of one data table and keeps the displayed page in
// sync with its data source. Every state-changing call returns a Pending;
// when calls overlap only the most recently issued request is applied.
//
// Callbacks may run on any goroutine but never while the table lock is held.
// They are delivered one at a time in the order the changes were made.
type Table struct {
	cfg    Config
	colIdx map[string]int
	fields map[string]FilterField
	static *staticSource
	log    *zap.Logger

	mu        sync.Mutex
	st        tableState
	seq       uint64
	cancel    context.CancelFunc
	closed    bool
	observers map[int]func(State)
	nextObs   int
	wg        sync.WaitGroup

	version    uint64
	queue      []notice
	delivering bool
	// loadingShown is the loading flag last reported to OnLoadingChange.
	// Only the delivering goroutine touches it.
	loadingShown bool
}

// New validates cfg and creates a table. No fetch is issued until Load.
func New(cfg Config) (*Table, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	t := &Table{
		cfg:       cfg,
		colIdx:    make(map[string]int, len(cfg.Columns)),
		fields:    make(map[string]FilterField, len(cfg.FilterFields)),
		log:       cfg.Logger,
		observers: make(map[int]func(State)),
		st: tableState{
			page:     cfg.InitialPage,
			pageSize: cfg.PageSize,
			filters:  cfg.InitialFilters.Clone(),
			selected: make(map[int]struct{}),
		},
	}
	for i, c := range cfg.Columns {
		t.colIdx[c.Key] = i
	}
	for _, f := range cfg.FilterFields {
		t.fields[f.Key] = f
	}
	if cfg.Data != nil {
		t.static = newStaticSource(cfg.Data, cfg.Columns, cfg.FilterFields, t.log)
	} else if cfg.API.IsZero() {
		t.log.Warn("table has neither static data nor fetch functions; it will stay empty")
	}
	t.st.mode = t.modeLocked()
	return t, nil
}

// Load issues the initial fetch.
func (t *Table) Load(ctx context.Context) *Pending {
	return t.issue(ctx, changeNavigate, nil)
}

// GoToPage shows page. Pages below one are treated as one; pages past the
// end are clamped to the last page once the totals are known.
func (t *Table) GoToPage(ctx context.Context, page int) *Pending {
	return t.issue(ctx, changeNavigate, func(s *tableState) error {
		s.page = max(page, 1)
		return nil
	})
}

// NextPage advances one page.
func (t *Table) NextPage(ctx context.Context) *Pending {
	return t.issue(ctx, changeNavigate, func(s *tableState) error {
		s.page++
		return nil
	})
}

// PrevPage goes back one page, stopping at the first.
func (t *Table) PrevPage(ctx context.Context) *Pending {
	return t.issue(ctx, changeNavigate, func(s *tableState) error {
		if s.page <= 1 {
			return errUnchanged
		}
		s.page--
		return nil
	})
}

// SetPageSize changes the page size and returns to the first page.
func (t *Table) SetPageSize(ctx context.Context, size int) *Pending {
	return t.issue(ctx, changeNavigate, func(s *tableState) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
		}
		s.pageSize = size
		s.page = 1
		return nil
	})
}

// SetFilter applies value under key. An empty value removes the key.
func (t *Table) SetFilter(ctx context.Context, key string, value any) *Pending {
	return t.issue(ctx, changeQuery, func(s *tableState) error {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidFilter)
		}
		s.filters.set(key, value)
		s.page = 1
		return nil
	})
}

// SelectFilter applies the selected values of a declared filter field: the
// last value for single-select fields, the comma-joined set otherwise.
// Selecting nothing removes the filter.
func (t *Table) SelectFilter(ctx context.Context, key string, values ...string) *Pending {
	field, ok := t.fields[key]
	if !ok {
		return settled(fmt.Errorf("%w: %s", ErrInvalidFilter, key))
	}
	return t.issue(ctx, changeQuery, func(s *tableState) error {
		s.filters.set(key, filterValue(field, values))
		s.page = 1
		return nil
	})
}

// ClearFilter removes the filter stored under key.
func (t *Table) ClearFilter(ctx context.Context, key string) *Pending {
	return t.SetFilter(ctx, key, nil)
}

// ClearFilters removes every applied filter.
func (t *Table) ClearFilters(ctx context.Context) *Pending {
	return t.issue(ctx, changeQuery, func(s *tableState) error {
		s.filters = Filters{}
		s.page = 1
		return nil
	})
}

// Search sets the free-text query, optionally restricted to one column.
// A blank query clears the search.
func (t *Table) Search(ctx context.Context, query, column string) *Pending {
	if column != "" {
		if _, ok := t.colIdx[column]; !ok {
			return settled(fmt.Errorf("%w: %s", ErrColumnNotFound, column))
		}
	}
	return t.issue(ctx, changeQuery, func(s *tableState) error {
		s.search = strings.TrimSpace(query)
		s.searchColumn = ""
		if s.search != "" {
			s.searchColumn = column
		}
		s.page = 1
		return nil
	})
}

// ToggleSort cycles the sort of a sortable column through ascending,
// descending and unsorted.
func (t *Table) ToggleSort(ctx context.Context, key string) *Pending {
	if err := t.checkSortable(key); err != nil {
		return settled(err)
	}
	return t.issue(ctx, changeQuery, func(s *tableState) error {
		dir := SortAscending
		if s.sort.Column == key {
			dir = s.sort.Direction.Next()
		}
		s.sort = SortState{}
		if dir != SortNone {
			s.sort = SortState{Column: key, Direction: dir}
		}
		s.page = 1
		return nil
	})
}

// SetSort sets the sort explicitly. SortNone clears it.
func (t *Table) SetSort(ctx context.Context, key string, dir SortDirection) *Pending {
	if dir != SortNone {
		if err := t.checkSortable(key); err != nil {
			return settled(err)
		}
	}
	return t.issue(ctx, changeQuery, func(s *tableState) error {
		s.sort = SortState{}
		if dir != SortNone {
			s.sort = SortState{Column: key, Direction: dir}
		}
		s.page = 1
		return nil
	})
}

func (t *Table) checkSortable(key string) error {
	i, ok := t.colIdx[key]
	if !ok || !t.cfg.Columns[i].Sortable {
		return fmt.Errorf("%w: %s", ErrInvalidSortColumn, key)
	}
	return nil
}

// SetRefreshKey refetches when key differs from the previous refresh key.
func (t *Table) SetRefreshKey(ctx context.Context, key any) *Pending {
	return t.issue(ctx, changeRefresh, func(s *tableState) error {
		if reflect.DeepEqual(s.refreshKey, key) {
			return errUnchanged
		}
		s.refreshKey = key
		return nil
	})
}

// Refresh refetches the current state unconditionally.
func (t *Table) Refresh(ctx context.Context) *Pending {
	return t.issue(ctx, changeRefresh, nil)
}

// issue applies mutate, supersedes any in-flight request and starts a new fetch.
func (t *Table) issue(ctx context.Context, kind changeKind, mutate func(s *tableState) error) *Pending {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return settled(ErrClosed)
	}
	if mutate != nil {
		if err := mutate(&t.st); err != nil {
			t.mu.Unlock()
			if errors.Is(err, errUnchanged) {
				return settled(nil)
			}
			return settled(err)
		}
	}

	if kind != changeRefresh && len(t.st.selected) > 0 {
		t.st.selected = make(map[int]struct{})
		t.st.selectionReset = true
	}

	t.seq++
	p := newPending(t.seq)
	if t.cancel != nil {
		t.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	req := t.requestLocked()
	prevLen := len(t.st.rows)
	if !t.st.loading {
		t.st.loading = true
		t.noticeLocked(notice{loadingOnly: true})
	}
	t.wg.Add(1)
	t.mu.Unlock()

	t.log.Debug("fetch issued",
		zap.Uint64("seq", p.seq),
		zap.Stringer("change", kind),
		zap.Stringer("mode", req.mode),
		zap.Int("page", req.page),
		zap.Int("page_size", req.pageSize))

	t.deliver()
	go t.run(fctx, cancel, p, kind, req, prevLen)
	return p
}

// run performs the fetch for p and applies the result if p is still the
// latest request. A page past the end is clamped and refetched once.
func (t *Table) run(ctx context.Context, cancel context.CancelFunc, p *Pending, kind changeKind, req request, prevLen int) {
	defer t.wg.Done()
	defer cancel()

	for attempt := 0; ; attempt++ {
		res, err := t.fetch(ctx, req)
		if err != nil {
			t.log.Warn("fetch failed, showing empty page",
				zap.Uint64("seq", p.seq),
				zap.Stringer("mode", req.mode),
				zap.Int("page", req.page),
				zap.Error(err))
			res = EmptyResult(req.page, req.pageSize)
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			p.settle(ErrClosed)
			return
		}
		if p.seq != t.seq {
			t.mu.Unlock()
			t.log.Debug("discarding superseded result", zap.Uint64("seq", p.seq))
			p.settle(ErrSuperseded)
			return
		}

		page := res.normalize(req.page, req.pageSize)
		if last := max(page.TotalPages, 1); err == nil && attempt == 0 && req.page > last {
			requested := req.page
			t.st.page = last
			t.st.totalPages, t.st.totalRecords = page.TotalPages, page.TotalRecords
			req = t.requestLocked()
			t.mu.Unlock()
			t.log.Debug("page out of range, clamping",
				zap.Uint64("seq", p.seq),
				zap.Int("requested", requested),
				zap.Int("last", last))
			continue
		}

		n := t.applyLocked(kind, req.mode, page, prevLen)
		n.err = err
		t.noticeLocked(n)
		t.mu.Unlock()

		t.deliver()
		p.settle(err)
		return
	}
}

// fetch calls the source for req. Panics in fetch functions are turned into errors.
func (t *Table) fetch(ctx context.Context, req request) (res *FetchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrFetchPanic, r)
		}
	}()

	api := t.cfg.API
	switch req.mode {
	case ModeStatic:
		return t.static.fetch(req), nil
	case ModeList:
		return api.List(ctx, req.page, req.pageSize, req.filters)
	case ModeFilter:
		return api.FilterBy(ctx, FilterPayload{Page: req.page, Filters: req.filters, Sort: req.sort}, req.pageSize)
	case ModeSearch:
		return api.Search(ctx, SearchQuery{Text: req.search, Column: req.searchColumn, Page: req.page}, req.pageSize)
	default:
		return EmptyResult(req.page, req.pageSize), nil
	}
}

// applyLocked replaces the displayed page atomically.
func (t *Table) applyLocked(kind changeKind, mode Mode, res FetchResult, prevLen int) notice {
	s := &t.st
	s.rows = res.Data
	s.page = res.CurrentPage
	s.pageSize = res.PageSize
	s.totalPages = res.TotalPages
	s.totalRecords = res.TotalRecords
	s.mode = mode
	s.loading = false

	keep := kind == changeRefresh && t.cfg.PreserveSelectionOnRefresh && len(s.rows) == prevLen
	if !keep && len(s.selected) > 0 {
		s.selected = make(map[int]struct{})
		s.selectionReset = true
	}

	var n notice
	if s.selectionReset {
		n.selection = true
		s.selectionReset = false
	}
	return n
}

// modeLocked picks the source by precedence: static data, then search,
// filterBy and list.
func (t *Table) modeLocked() Mode {
	if t.static != nil {
		return ModeStatic
	}
	s, api := &t.st, t.cfg.API
	switch {
	case s.search != "" && api.Search != nil:
		return ModeSearch
	case (len(s.filters) > 0 || s.sort.IsSorted()) && api.FilterBy != nil:
		return ModeFilter
	case api.List != nil:
		return ModeList
	case api.FilterBy != nil:
		return ModeFilter
	}
	return ModeNone
}

func (t *Table) requestLocked() request {
	s := &t.st
	return request{
		mode:         t.modeLocked(),
		page:         s.page,
		pageSize:     s.pageSize,
		filters:      s.filters.Clone(),
		sort:         s.sort,
		search:       s.search,
		searchColumn: s.searchColumn,
	}
}

func (t *Table) snapshotLocked() *State {
	s := &t.st
	rows := make([]Row, len(s.rows))
	copy(rows, s.rows)
	return &State{
		Rows:         rows,
		CurrentPage:  s.page,
		PageSize:     s.pageSize,
		TotalPages:   s.totalPages,
		TotalRecords: s.totalRecords,
		Filters:      s.filters.Clone(),
		Sort:         s.sort,
		Search:       s.search,
		SearchColumn: s.searchColumn,
		Selected:     sortedIndices(s.selected),
		RefreshKey:   s.refreshKey,
		Loading:      s.loading,
		Mode:         s.mode,
		Version:      t.version,
	}
}

// noticeLocked stamps the current state with a new version and queues it
// for delivery.
func (t *Table) noticeLocked(n notice) {
	t.version++
	n.state = t.snapshotLocked()
	t.queue = append(t.queue, n)
}

// deliver drains the notice queue unless another goroutine already is, in
// which case that goroutine delivers the queued notices after its current
// one. Notices therefore reach callbacks in version order, and a callback
// that changes the table sees its own change delivered after it returns.
func (t *Table) deliver() {
	t.mu.Lock()
	if t.delivering {
		t.mu.Unlock()
		return
	}
	t.delivering = true
	defer func() {
		if r := recover(); r != nil {
			t.mu.Lock()
			t.delivering = false
			t.mu.Unlock()
			panic(r)
		}
	}()

	for len(t.queue) > 0 {
		n := t.queue[0]
		t.queue[0] = notice{}
		t.queue = t.queue[1:]
		observers := make([]func(State), 0, len(t.observers))
		for _, id := range sortedObserverIDs(t.observers) {
			observers = append(observers, t.observers[id])
		}
		t.mu.Unlock()

		t.fire(n, observers)

		t.mu.Lock()
	}
	t.queue = nil
	t.delivering = false
	t.mu.Unlock()
}

// fire runs the callbacks for one notice.
func (t *Table) fire(n notice, observers []func(State)) {
	st := *n.state
	if st.Loading != t.loadingShown {
		t.loadingShown = st.Loading
		if t.cfg.OnLoadingChange != nil {
			t.cfg.OnLoadingChange(st.Loading)
		}
	}
	if n.selection && t.cfg.OnSelectionChange != nil {
		t.cfg.OnSelectionChange(st.Rows, st.Selected)
	}
	if n.err != nil && t.cfg.OnError != nil {
		t.cfg.OnError(n.err)
	}
	if !n.loadingOnly && t.cfg.OnChange != nil {
		t.cfg.OnChange(st)
	}
	for _, fn := range observers {
		fn(st)
	}
}

// Observe registers fn to receive a snapshot after every state change,
// including loading transitions and selection changes. The returned
// function unregisters it.
func (t *Table) Observe(fn func(State)) (cancel func()) {
	t.mu.Lock()
	id := t.nextObs
	t.nextObs++
	t.observers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.observers, id)
		t.mu.Unlock()
	}
}

// State returns a snapshot of the current state.
func (t *Table) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.snapshotLocked()
}

// Columns returns the column specs.
func (t *Table) Columns() []ColumnSpec {
	out := make([]ColumnSpec, len(t.cfg.Columns))
	copy(out, t.cfg.Columns)
	return out
}

// Column returns the spec for key.
func (t *Table) Column(key string) (ColumnSpec, bool) {
	i, ok := t.colIdx[key]
	if !ok {
		return ColumnSpec{}, false
	}
	return t.cfg.Columns[i], true
}

// FilterFields returns the declared filter fields.
func (t *Table) FilterFields() []FilterField {
	out := make([]FilterField, len(t.cfg.FilterFields))
	copy(out, t.cfg.FilterFields)
	return out
}

// RowActions returns the configured per-row actions.
func (t *Table) RowActions() []RowAction {
	return t.cfg.RowActions
}

// HeaderActions returns the configured table-level actions.
func (t *Table) HeaderActions() []HeaderAction {
	return t.cfg.HeaderActions
}

// RowSelection reports whether checkbox selection is enabled.
func (t *Table) RowSelection() bool {
	return t.cfg.RowSelection
}

// RenderCell returns the display text of column key for row.
func (t *Table) RenderCell(row Row, key string) string {
	col, ok := t.Column(key)
	if !ok {
		return cell.Format(row[key])
	}
	if col.Render != nil {
		return col.Render(row)
	}
	return row.Value(key, col.Type).Formatted
}

// InvokeRowAction runs action on the displayed row at index row.
func (t *Table) InvokeRowAction(action, row int) error {
	t.mu.Lock()
	if action < 0 || action >= len(t.cfg.RowActions) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidAction, action)
	}
	if row < 0 || row >= len(t.st.rows) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidRow, row)
	}
	a, r := t.cfg.RowActions[action], t.st.rows[row].clone()
	t.mu.Unlock()

	if a.OnClick != nil {
		a.OnClick(r)
	}
	return nil
}

// InvokeHeaderAction runs action with the displayed rows and the selection.
func (t *Table) InvokeHeaderAction(action int) error {
	if action < 0 || action >= len(t.cfg.HeaderActions) {
		return fmt.Errorf("%w: %d", ErrInvalidAction, action)
	}
	st := t.State()
	if a := t.cfg.HeaderActions[action]; a.OnClick != nil {
		a.OnClick(st.Rows, st.Selected)
	}
	return nil
}

// Close cancels the in-flight fetch and waits for it to return. Later calls
// are rejected with ErrClosed.
func (t *Table) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func sortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func sortedObserverIDs(observers map[int]func(State)) []int {
	ids := make([]int, 0, len(observers))
	for id := range observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

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

// Package widget renders a datatable.Table with Fyne: a header with sort
// toggles, checkbox selection, row actions, filter selects, a search entry,
// a pager and a status line.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	fwidget "fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"datagrid/datatable"
)

// Config controls which parts of the widget are shown.
type Config struct {
	ShowFilterBar  bool
	ShowSearch     bool
	ShowStatusBar  bool
	ShowPager      bool
	MinColumnWidth float32
	// PageSizes are offered in the page size select. The table's own page
	// size is added when missing.
	PageSizes []int
	Logger    *zap.Logger
}

// DefaultConfig enables every part of the widget.
func DefaultConfig() Config {
	return Config{
		ShowFilterBar:  true,
		ShowSearch:     true,
		ShowStatusBar:  true,
		ShowPager:      true,
		MinColumnWidth: 80,
		PageSizes:      []int{10, 25, 50, 100},
	}
}

const (
	selectColumnWidth = 40
	actionWidth       = 44
	allOption         = "(all)"
	allColumns        = "All columns"
)

type columnKind int

const (
	kindSelect columnKind = iota
	kindData
	kindActions
)

type gridColumn struct {
	kind columnKind
	spec datatable.ColumnSpec
}

// DataTable is a Fyne widget bound to a datatable.Table. All changes go
// through the table; the widget redraws from the snapshots the table
// publishes.
type DataTable struct {
	fwidget.BaseWidget

	table  *datatable.Table
	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	window fyne.Window

	mu      sync.Mutex
	state   datatable.State
	syncing bool
	last    *datatable.Pending

	columns []gridColumn

	grid          *fwidget.Table
	status        *fwidget.Label
	pageLabel     *fwidget.Label
	prev, next    *fwidget.Button
	pageSize      *fwidget.Select
	search        *fwidget.Entry
	searchColumn  *fwidget.Select
	singleFilters map[string]*fwidget.Select
	multiFilters  map[string]*fwidget.CheckGroup
	loading       *fwidget.ProgressBarInfinite
	content       fyne.CanvasObject

	unobserve func()
}

// NewDataTable returns a widget showing table with the default configuration.
func NewDataTable(table *datatable.Table) *DataTable {
	return NewDataTableWithConfig(table, DefaultConfig())
}

// NewDataTableWithConfig returns a widget showing table. Call Load on the
// table, or on the widget, to fetch the first page.
func NewDataTableWithConfig(table *datatable.Table, cfg Config) *DataTable {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	d := &DataTable{
		table:         table,
		cfg:           cfg,
		log:           log,
		ctx:           context.Background(),
		state:         table.State(),
		singleFilters: map[string]*fwidget.Select{},
		multiFilters:  map[string]*fwidget.CheckGroup{},
	}
	d.columns = layoutColumns(table)
	d.content = d.build()
	d.ExtendBaseWidget(d)

	d.unobserve = table.Observe(func(st datatable.State) {
		fyne.Do(func() { d.apply(st) })
	})
	d.apply(d.state)
	return d
}

// layoutColumns orders the grid: selection, left-pinned, unpinned,
// right-pinned, actions.
func layoutColumns(table *datatable.Table) []gridColumn {
	var out []gridColumn
	if table.RowSelection() {
		out = append(out, gridColumn{kind: kindSelect})
	}
	for _, side := range []datatable.StickySide{datatable.StickyLeft, datatable.StickyNone, datatable.StickyRight} {
		for _, c := range table.Columns() {
			if c.Sticky == side {
				out = append(out, gridColumn{kind: kindData, spec: c})
			}
		}
	}
	if len(table.RowActions()) > 0 {
		out = append(out, gridColumn{kind: kindActions})
	}
	return out
}

// SetWindow sets the window used for error dialogs.
func (d *DataTable) SetWindow(w fyne.Window) {
	d.window = w
}

// SetContext sets the context passed to table operations started by the widget.
func (d *DataTable) SetContext(ctx context.Context) {
	d.ctx = ctx
}

// Table returns the bound table.
func (d *DataTable) Table() *datatable.Table {
	return d.table
}

// Load fetches the current page.
func (d *DataTable) Load() *datatable.Pending {
	return d.track("load", d.table.Load(d.ctx))
}

// Unbind stops the widget from following the table.
func (d *DataTable) Unbind() {
	if d.unobserve != nil {
		d.unobserve()
		d.unobserve = nil
	}
}

// CreateRenderer implements fyne.Widget.
func (d *DataTable) CreateRenderer() fyne.WidgetRenderer {
	return fwidget.NewSimpleRenderer(d.content)
}

// StatusText returns the text of the status line.
func (d *DataTable) StatusText() string {
	return d.status.Text
}

func (d *DataTable) build() fyne.CanvasObject {
	d.grid = fwidget.NewTableWithHeaders(d.length, d.createCell, d.updateCell)
	d.grid.ShowHeaderColumn = false
	d.grid.CreateHeader = d.createHeader
	d.grid.UpdateHeader = d.updateHeader
	d.grid.StickyColumnCount = d.stickyCount()
	for i, c := range d.columns {
		d.grid.SetColumnWidth(i, d.columnWidth(c))
	}

	d.status = fwidget.NewLabel("")
	d.pageLabel = fwidget.NewLabel("")
	d.prev = fwidget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() {
		d.track("previous page", d.table.PrevPage(d.ctx))
	})
	d.next = fwidget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() {
		d.track("next page", d.table.NextPage(d.ctx))
	})
	d.pageSize = fwidget.NewSelect(d.pageSizeOptions(), func(s string) {
		if d.isSyncing() {
			return
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return
		}
		d.track("page size", d.table.SetPageSize(d.ctx, n))
	})
	d.loading = fwidget.NewProgressBarInfinite()
	d.loading.Hide()

	var top []fyne.CanvasObject
	if d.cfg.ShowFilterBar {
		if bar := d.buildFilterBar(); bar != nil {
			top = append(top, bar)
		}
	}
	if d.cfg.ShowSearch {
		top = append(top, d.buildSearch())
	}
	if actions := d.buildHeaderActions(); actions != nil {
		top = append(top, actions)
	}
	top = append(top, d.loading)

	var bottom []fyne.CanvasObject
	if d.cfg.ShowPager {
		bottom = append(bottom, container.NewHBox(d.prev, d.pageLabel, d.next, fwidget.NewLabel("Rows per page"), d.pageSize))
	}
	if d.cfg.ShowStatusBar {
		bottom = append(bottom, d.status)
	}

	return container.NewBorder(
		container.NewVBox(top...),
		container.NewVBox(bottom...),
		nil, nil,
		d.grid,
	)
}

func (d *DataTable) buildFilterBar() fyne.CanvasObject {
	fields := d.table.FilterFields()
	if len(fields) == 0 {
		return nil
	}
	current := d.table.State().Filters

	items := make([]fyne.CanvasObject, 0, len(fields))
	for _, f := range fields {
		field := f
		labels := make([]string, len(field.Options))
		for i, o := range field.Options {
			labels[i] = optionLabel(o)
		}

		if field.IsSingle {
			sel := fwidget.NewSelect(append([]string{allOption}, labels...), func(label string) {
				if d.isSyncing() {
					return
				}
				if label == allOption {
					d.track("clear filter", d.table.ClearFilter(d.ctx, field.Key))
					return
				}
				d.track("filter", d.table.SelectFilter(d.ctx, field.Key, optionValues(field, []string{label})...))
			})
			sel.PlaceHolder = fieldLabel(field)
			d.singleFilters[field.Key] = sel
			d.setSilently(func() { syncSelect(sel, field, current.Text(field.Key)) })
			items = append(items, container.NewHBox(fwidget.NewLabel(fieldLabel(field)), sel))
			continue
		}

		group := fwidget.NewCheckGroup(labels, func(selected []string) {
			if d.isSyncing() {
				return
			}
			d.track("filter", d.table.SelectFilter(d.ctx, field.Key, optionValues(field, selected)...))
		})
		group.Horizontal = field.MultiSelectChips
		d.multiFilters[field.Key] = group
		d.setSilently(func() { syncGroup(group, field, current.Text(field.Key)) })
		items = append(items, container.NewHBox(fwidget.NewLabel(fieldLabel(field)), group))
	}

	clear := fwidget.NewButtonWithIcon("Clear filters", theme.ContentClearIcon(), func() {
		d.track("clear filters", d.table.ClearFilters(d.ctx))
	})
	return container.NewHBox(append(items, clear)...)
}

func (d *DataTable) buildSearch() fyne.CanvasObject {
	d.search = fwidget.NewEntry()
	d.search.SetPlaceHolder("Search...")

	opts := []string{allColumns}
	for _, c := range d.table.Columns() {
		opts = append(opts, columnLabel(c))
	}
	d.searchColumn = fwidget.NewSelect(opts, nil)
	d.searchColumn.SetSelected(allColumns)

	d.search.OnSubmitted = func(string) { d.submitSearch() }
	find := fwidget.NewButtonWithIcon("", theme.SearchIcon(), d.submitSearch)
	clear := fwidget.NewButtonWithIcon("", theme.ContentClearIcon(), func() {
		d.search.SetText("")
		d.submitSearch()
	})
	return container.NewBorder(nil, nil, nil, container.NewHBox(d.searchColumn, find, clear), d.search)
}

func (d *DataTable) submitSearch() {
	d.track("search", d.table.Search(d.ctx, d.search.Text, d.searchKey()))
}

// searchKey maps the selected column label back to its key.
func (d *DataTable) searchKey() string {
	label := d.searchColumn.Selected
	if label == "" || label == allColumns {
		return ""
	}
	for _, c := range d.table.Columns() {
		if columnLabel(c) == label {
			return c.Key
		}
	}
	return ""
}

func (d *DataTable) buildHeaderActions() fyne.CanvasObject {
	actions := d.table.HeaderActions()
	if len(actions) == 0 {
		return nil
	}
	buttons := make([]fyne.CanvasObject, len(actions))
	for i, a := range actions {
		i := i
		buttons[i] = fwidget.NewButton(a.Label, func() {
			if err := d.table.InvokeHeaderAction(i); err != nil {
				d.showError(err)
			}
		})
	}
	return container.NewHBox(buttons...)
}

func (d *DataTable) pageSizeOptions() []string {
	size := d.table.State().PageSize
	sizes := append([]int(nil), d.cfg.PageSizes...)
	found := false
	for _, s := range sizes {
		if s == size {
			found = true
		}
	}
	if !found {
		sizes = append(sizes, size)
	}
	out := make([]string, len(sizes))
	for i, s := range sizes {
		out[i] = strconv.Itoa(s)
	}
	return out
}

func (d *DataTable) stickyCount() int {
	n := 0
	for _, c := range d.columns {
		if c.kind == kindSelect || (c.kind == kindData && c.spec.Sticky == datatable.StickyLeft) {
			n++
			continue
		}
		break
	}
	return n
}

func (d *DataTable) columnWidth(c gridColumn) float32 {
	switch c.kind {
	case kindSelect:
		return selectColumnWidth
	case kindActions:
		return float32(len(d.table.RowActions())) * actionWidth
	}
	return max(c.spec.Width, d.cfg.MinColumnWidth)
}

func (d *DataTable) length() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.state.Rows), len(d.columns)
}

func (d *DataTable) rowAt(i int) (datatable.Row, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.state.Rows) {
		return nil, false
	}
	return d.state.Rows[i], true
}

// cellTemplate holds one object per column kind; update shows one of them.
type cellTemplate struct {
	label   *fwidget.Label
	check   *fwidget.Check
	actions *fyne.Container
}

func (d *DataTable) createCell() fyne.CanvasObject {
	label := fwidget.NewLabel("")
	label.Truncation = fyne.TextTruncateEllipsis
	check := fwidget.NewCheck("", nil)

	acts := d.table.RowActions()
	buttons := make([]fyne.CanvasObject, len(acts))
	for i, a := range acts {
		buttons[i] = fwidget.NewButtonWithIcon(actionText(a), actionIcon(a.Icon), nil)
	}
	return container.NewStack(label, check, container.NewHBox(buttons...))
}

func templateOf(o fyne.CanvasObject) cellTemplate {
	c := o.(*fyne.Container)
	return cellTemplate{
		label:   c.Objects[0].(*fwidget.Label),
		check:   c.Objects[1].(*fwidget.Check),
		actions: c.Objects[2].(*fyne.Container),
	}
}

func (d *DataTable) updateCell(id fwidget.TableCellID, o fyne.CanvasObject) {
	tpl := templateOf(o)
	tpl.label.Hide()
	tpl.check.Hide()
	tpl.actions.Hide()

	if id.Col < 0 || id.Col >= len(d.columns) {
		return
	}
	row, ok := d.rowAt(id.Row)
	if !ok {
		return
	}

	switch col := d.columns[id.Col]; col.kind {
	case kindSelect:
		i := id.Row
		tpl.check.OnChanged = nil
		tpl.check.SetChecked(d.table.IsSelected(i))
		tpl.check.OnChanged = func(b bool) {
			if err := d.table.SetRowSelected(i, b); err != nil {
				d.log.Debug("selection rejected", zap.Int("row", i), zap.Error(err))
			}
		}
		tpl.check.Show()

	case kindActions:
		i := id.Row
		for a, obj := range tpl.actions.Objects {
			a := a
			obj.(*fwidget.Button).OnTapped = func() {
				if err := d.table.InvokeRowAction(a, i); err != nil {
					d.showError(err)
				}
			}
		}
		tpl.actions.Show()

	default:
		tpl.label.Alignment = fyne.TextAlignLeading
		if isNumeric(col.spec.Type) {
			tpl.label.Alignment = fyne.TextAlignTrailing
		}
		tpl.label.SetText(d.table.RenderCell(row, col.spec.Key))
		tpl.label.Show()
	}
}

func (d *DataTable) createHeader() fyne.CanvasObject {
	return container.NewStack(fwidget.NewButton("", nil), fwidget.NewCheck("", nil))
}

func (d *DataTable) updateHeader(id fwidget.TableCellID, o fyne.CanvasObject) {
	c := o.(*fyne.Container)
	button := c.Objects[0].(*fwidget.Button)
	check := c.Objects[1].(*fwidget.Check)
	button.Hide()
	check.Hide()

	if id.Col < 0 || id.Col >= len(d.columns) {
		return
	}
	switch col := d.columns[id.Col]; col.kind {
	case kindSelect:
		check.OnChanged = nil
		check.SetChecked(d.table.AllSelected())
		check.OnChanged = func(b bool) {
			if b == d.table.AllSelected() {
				return
			}
			if err := d.table.ToggleAllOnPage(); err != nil {
				d.log.Debug("select all rejected", zap.Error(err))
			}
		}
		check.Show()

	case kindActions:
		button.SetText("")
		button.OnTapped = nil
		button.Disable()
		button.Show()

	default:
		spec := col.spec
		button.SetText(d.headerText(spec))
		button.OnTapped = nil
		if spec.Sortable {
			button.Enable()
			button.OnTapped = func() {
				d.track("sort", d.table.ToggleSort(d.ctx, spec.Key))
			}
		} else {
			button.Disable()
		}
		button.Show()
	}
}

// headerText is the column label followed by the sort indicator.
func (d *DataTable) headerText(spec datatable.ColumnSpec) string {
	d.mu.Lock()
	sort := d.state.Sort
	d.mu.Unlock()
	return columnLabel(spec) + sortIndicator(sort, spec.Key)
}

// apply redraws from st. It runs on the Fyne thread. Snapshots older than
// the one already shown are dropped.
func (d *DataTable) apply(st datatable.State) {
	d.mu.Lock()
	if st.Version < d.state.Version {
		d.mu.Unlock()
		return
	}
	d.state = st
	d.mu.Unlock()

	d.status.SetText(FormatStatus(d.table, st))
	d.pageLabel.SetText(fmt.Sprintf("Page %d of %d", st.CurrentPage, max(st.TotalPages, 1)))
	if st.CurrentPage <= 1 {
		d.prev.Disable()
	} else {
		d.prev.Enable()
	}
	if st.CurrentPage >= st.TotalPages {
		d.next.Disable()
	} else {
		d.next.Enable()
	}
	if st.Loading {
		d.loading.Show()
		d.loading.Start()
	} else {
		d.loading.Stop()
		d.loading.Hide()
	}

	d.setSilently(func() {
		d.pageSize.SetSelected(strconv.Itoa(st.PageSize))
		for _, f := range d.table.FilterFields() {
			if sel, ok := d.singleFilters[f.Key]; ok {
				syncSelect(sel, f, st.Filters.Text(f.Key))
			}
			if group, ok := d.multiFilters[f.Key]; ok {
				syncGroup(group, f, st.Filters.Text(f.Key))
			}
		}
	})
	d.grid.Refresh()
}

func (d *DataTable) setSilently(fn func()) {
	d.mu.Lock()
	d.syncing = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.syncing = false
		d.mu.Unlock()
	}()
	fn()
}

func (d *DataTable) isSyncing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncing
}

// track logs requests rejected up front; fetch failures reach the table's
// OnError instead.
func (d *DataTable) track(op string, p *datatable.Pending) *datatable.Pending {
	d.mu.Lock()
	d.last = p
	d.mu.Unlock()

	select {
	case <-p.Done():
		if err := p.Err(); err != nil && !errors.Is(err, datatable.ErrSuperseded) {
			d.log.Warn("table operation rejected", zap.String("op", op), zap.Error(err))
		}
	default:
	}
	return p
}

// Pending returns the request started by the most recent widget interaction.
func (d *DataTable) Pending() *datatable.Pending {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *DataTable) showError(err error) {
	d.log.Warn("table action failed", zap.Error(err))
	if d.window != nil {
		dialog.ShowError(err, d.window)
	}
}

// FormatStatus renders the status line for st: paging, sort and selection.
func FormatStatus(table *datatable.Table, st datatable.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d of %d (%d records)", st.CurrentPage, max(st.TotalPages, 1), st.TotalRecords)

	if st.Sort.IsSorted() {
		name := st.Sort.Column
		if c, ok := table.Column(name); ok {
			name = columnLabel(c)
		}
		direction := "↑"
		if st.Sort.Direction == datatable.SortDescending {
			direction = "↓"
		}
		fmt.Fprintf(&b, " | Sorted: %s %s", name, direction)
	}
	if st.Search != "" {
		fmt.Fprintf(&b, " | Search: %q", st.Search)
	}
	if n := len(st.Filters); n > 0 {
		fmt.Fprintf(&b, " | %d filter(s)", n)
	}
	if n := len(st.Selected); n > 0 {
		fmt.Fprintf(&b, " | %d selected", n)
	}
	if st.Loading {
		b.WriteString(" | Loading...")
	}
	return b.String()
}

func sortIndicator(s datatable.SortState, key string) string {
	if !s.IsSorted() || s.Column != key {
		return ""
	}
	if s.Direction == datatable.SortDescending {
		return " ↓"
	}
	return " ↑"
}

func columnLabel(c datatable.ColumnSpec) string {
	if c.Label != "" {
		return c.Label
	}
	return c.Key
}

func fieldLabel(f datatable.FilterField) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Key
}

func optionLabel(o datatable.FilterOption) string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

// optionValues maps selected option labels to their values.
func optionValues(f datatable.FilterField, labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		for _, o := range f.Options {
			if optionLabel(o) == l {
				out = append(out, o.Value)
				break
			}
		}
	}
	return out
}

// optionLabels maps a stored filter value (comma-joined for multi) to labels.
func optionLabels(f datatable.FilterField, value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		for _, o := range f.Options {
			if o.Value == v {
				out = append(out, optionLabel(o))
				break
			}
		}
	}
	return out
}

func syncSelect(sel *fwidget.Select, f datatable.FilterField, value string) {
	labels := optionLabels(f, value)
	if len(labels) == 0 {
		sel.ClearSelected()
		return
	}
	if sel.Selected != labels[0] {
		sel.SetSelected(labels[0])
	}
}

func syncGroup(group *fwidget.CheckGroup, f datatable.FilterField, value string) {
	labels := optionLabels(f, value)
	if strings.Join(labels, ",") != strings.Join(group.Selected, ",") {
		group.SetSelected(labels)
	}
}

func isNumeric(t datatable.DataType) bool {
	switch t {
	case datatable.TypeInt, datatable.TypeFloat, datatable.TypeDecimal:
		return true
	}
	return false
}

func actionText(a datatable.RowAction) string {
	if actionIcon(a.Icon) != nil {
		return ""
	}
	return a.Label
}

func actionIcon(name string) fyne.Resource {
	switch strings.ToLower(name) {
	case "delete":
		return theme.DeleteIcon()
	case "edit":
		return theme.DocumentCreateIcon()
	case "view", "open":
		return theme.VisibilityIcon()
	case "copy":
		return theme.ContentCopyIcon()
	case "info":
		return theme.InfoIcon()
	}
	return nil
}

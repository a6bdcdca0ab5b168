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

package windows

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"datagrid/datatable"
	dtwidget "datagrid/widget"
)

// Data is one open table tab.
type Data struct {
	name  string
	base  datatable.Config
	table *datatable.Table
	view  *dtwidget.DataTable
	tab   *container.TabItem
}

// Name returns the tab title.
func (d *Data) Name() string { return d.name }

// Table returns the table shown in the tab.
func (d *Data) Table() *datatable.Table { return d.table }

func (d *Data) statusText(st datatable.State) string {
	return fmt.Sprintf("Table %s | %s", d.name, dtwidget.FormatStatus(d.table, st))
}

// DataBrowser shows each open table in its own tab and keeps the status
// bar in sync with the selected one.
type DataBrowser struct {
	w              fyne.Window
	log            *zap.Logger
	tabs           *container.DocTabs
	tabData        map[*container.TabItem]*Data
	statusCallback func(string)
}

// NewDataBrowser returns an empty browser. statusCallback receives the
// status line of the selected tab.
func NewDataBrowser(w fyne.Window, log *zap.Logger, statusCallback func(string)) *DataBrowser {
	if log == nil {
		log = zap.NewNop()
	}
	b := &DataBrowser{
		w:              w,
		log:            log,
		tabs:           container.NewDocTabs(),
		tabData:        map[*container.TabItem]*Data{},
		statusCallback: statusCallback,
	}
	b.tabs.SetTabLocation(container.TabLocationBottom)
	b.tabs.CloseIntercept = b.closeTab
	b.tabs.OnSelected = b.updateStatusForTab
	return b
}

// Container returns the tab container.
func (b *DataBrowser) Container() fyne.CanvasObject {
	return b.tabs
}

// AddTable opens a tab for a table built from cfg and starts loading it.
func (b *DataBrowser) AddTable(name string, cfg datatable.Config) (*Data, error) {
	d := &Data{name: name, base: cfg}
	if err := b.bind(d, cfg); err != nil {
		return nil, err
	}
	d.tab = container.NewTabItem(name, d.view)
	b.tabData[d.tab] = d
	b.tabs.Append(d.tab)
	b.tabs.Select(d.tab)
	d.view.Load()
	b.log.Info("opened table", zap.String("table", name), zap.Stringer("mode", d.table.State().Mode))
	return d, nil
}

// bind creates the table and widget for d from cfg, wrapping the error
// callback so failures reach the status bar.
func (b *DataBrowser) bind(d *Data, cfg datatable.Config) error {
	log := b.log.With(zap.String("table", d.name))
	onError := cfg.OnError
	cfg.Logger = log
	cfg.OnError = func(err error) {
		fyne.Do(func() { b.setStatus(fmt.Sprintf("Table %s: %v", d.name, err)) })
		if onError != nil {
			onError(err)
		}
	}

	tbl, err := datatable.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	wcfg := dtwidget.DefaultConfig()
	wcfg.MinColumnWidth = 100
	wcfg.Logger = log
	view := dtwidget.NewDataTableWithConfig(tbl, wcfg)
	view.SetWindow(b.w)

	tbl.Observe(func(st datatable.State) {
		fyne.Do(func() {
			if d.tab != nil && b.tabs.Selected() == d.tab {
				b.setStatus(d.statusText(st))
			}
		})
	})

	d.table, d.view = tbl, view
	return nil
}

// AddColumn rebuilds d with spec appended, keeping filters, search,
// sort, page size and page.
func (b *DataBrowser) AddColumn(d *Data, spec datatable.ColumnSpec) error {
	st := d.table.State()
	cfg := d.base
	cfg.Columns = append(append([]datatable.ColumnSpec(nil), cfg.Columns...), spec)
	cfg.InitialFilters = st.Filters
	cfg.InitialPage = st.CurrentPage
	cfg.PageSize = st.PageSize

	old := *d
	if err := b.bind(d, cfg); err != nil {
		*d = old
		return err
	}
	old.view.Unbind()
	old.table.Close()

	d.base = cfg
	d.tab.Content = d.view
	b.tabs.Refresh()

	ctx := context.Background()
	if st.Search != "" {
		d.table.Search(ctx, st.Search, st.SearchColumn)
	}
	if st.Sort.IsSorted() {
		d.table.SetSort(ctx, st.Sort.Column, st.Sort.Direction)
	}
	d.view.Load()
	return nil
}

// Current returns the selected tab's data, or nil.
func (b *DataBrowser) Current() *Data {
	if ti := b.tabs.Selected(); ti != nil {
		return b.tabData[ti]
	}
	return nil
}

// Len returns the number of open tabs.
func (b *DataBrowser) Len() int {
	return len(b.tabData)
}

// CloseAll closes every tab.
func (b *DataBrowser) CloseAll() {
	for ti := range b.tabData {
		b.closeTab(ti)
	}
}

func (b *DataBrowser) closeTab(ti *container.TabItem) {
	if d, ok := b.tabData[ti]; ok {
		d.view.Unbind()
		d.table.Close()
		delete(b.tabData, ti)
		b.log.Debug("closed table", zap.String("table", d.name))
	}
	b.tabs.Remove(ti)

	if sel := b.tabs.Selected(); sel != nil {
		b.updateStatusForTab(sel)
	} else {
		b.setStatus("Ready")
	}
}

func (b *DataBrowser) updateStatusForTab(ti *container.TabItem) {
	if d, ok := b.tabData[ti]; ok {
		b.setStatus(d.statusText(d.table.State()))
	}
}

func (b *DataBrowser) setStatus(s string) {
	if b.statusCallback != nil {
		b.statusCallback(s)
	}
}

// loadAsync runs build off the UI thread behind a progress dialog and
// opens the result as a tab named name.
func (b *DataBrowser) loadAsync(ctx context.Context, name string, build func(context.Context) (datatable.Config, error)) {
	pbi := widget.NewProgressBarInfinite()
	di := dialog.NewCustomWithoutButtons(fmt.Sprintf("Loading %s...", name), pbi, b.w)
	di.Resize(fyne.NewSize(300, 100))
	di.Show()
	b.setStatus("Loading " + name + "...")

	go func() {
		cfg, err := build(ctx)
		fyne.Do(func() {
			di.Hide()
			if err == nil {
				_, err = b.AddTable(name, cfg)
			}
			if err != nil {
				b.log.Warn("load failed", zap.String("table", name), zap.Error(err))
				b.setStatus(fmt.Sprintf("Error loading %s: %v", name, err))
				dialog.ShowError(err, b.w)
			}
		})
	}()
}

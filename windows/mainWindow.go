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
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	delta_sharing "github.com/magpierre/go_delta_sharing_client"
	"go.uber.org/zap"

	"datagrid/adapters/delta"
	"datagrid/datatable"
)

var errNoTable = errors.New("open a table first")

// Options configures the main window.
type Options struct {
	Log *zap.Logger
	// APITimeout bounds remote calls, in seconds.
	APITimeout int
}

// MainWindow is the viewer: a Delta Sharing navigation tree on the left,
// table tabs in the middle and a status bar below.
type MainWindow struct {
	a          fyne.App
	w          fyne.Window
	log        *zap.Logger
	apiTimeout int
	ctx        context.Context
	cancel     context.CancelFunc
	browser    *DataBrowser
	nav        *NavigationTree
	left       fyne.CanvasObject
	source     *delta.Source
	statusBar  *widget.Label
}

// NewMainWindow builds the viewer window of a.
func NewMainWindow(a fyne.App, opts Options) *MainWindow {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.APITimeout <= 0 {
		opts.APITimeout = defaultTimeoutSeconds
	}
	t := &MainWindow{a: a, log: opts.Log, apiTimeout: opts.APITimeout}
	t.ctx, t.cancel = context.WithCancel(context.Background())

	a.Settings().SetTheme(&gridTheme{})
	t.w = a.NewWindow("Data Grid")
	t.w.Resize(fyne.NewSize(1100, 700))
	t.w.SetOnClosed(func() {
		t.browser.CloseAll()
		t.cancel()
	})

	t.statusBar = widget.NewLabel("Ready")
	t.statusBar.TextStyle = fyne.TextStyle{Italic: true}
	t.statusBar.Truncation = fyne.TextTruncateEllipsis

	t.browser = NewDataBrowser(t.w, t.log, t.SetStatus)

	t.nav = NewNavigationTree()
	t.nav.OnTableSelected = t.openSharedTable
	t.left = container.NewGridWrap(fyne.NewSize(220, 600),
		widget.NewCard("", "Shared tables", t.nav.Widget()))
	t.left.Hide()

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.MenuIcon(), func() {
			if t.left.Visible() {
				t.left.Hide()
			} else {
				t.left.Show()
			}
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.FolderOpenIcon(), func() { t.openDialog("Open data file", dataExtensions) }),
		widget.NewToolbarAction(theme.DocumentIcon(), func() { t.openDialog("Open table definition", definitionExtensions) }),
		widget.NewToolbarAction(theme.StorageIcon(), func() { t.openDialog("Open sharing profile", profileExtensions) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), t.refreshCurrent),
		widget.NewToolbarAction(theme.ContentAddIcon(), t.addComputedColumn),
		widget.NewToolbarSpacer(),
	)

	t.w.SetMainMenu(t.mainMenu())
	t.w.SetContent(container.NewBorder(toolbar, t.statusBar, t.left, nil, t.browser.Container()))
	return t
}

func (t *MainWindow) mainMenu() *fyne.MainMenu {
	file := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Data File...", func() { t.openDialog("Open data file", dataExtensions) }),
		fyne.NewMenuItem("Open Table Definition...", func() { t.openDialog("Open table definition", definitionExtensions) }),
		fyne.NewMenuItem("Open Sharing Profile...", func() { t.openDialog("Open sharing profile", profileExtensions) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Close All Tabs", t.browser.CloseAll),
	)
	table := fyne.NewMenu("Table",
		fyne.NewMenuItem("Add Computed Column...", t.addComputedColumn),
		fyne.NewMenuItem("Clear Filters", func() {
			t.withCurrent(func(d *Data) { d.table.ClearFilters(t.ctx) })
		}),
		fyne.NewMenuItem("Clear Selection", func() {
			t.withCurrent(func(d *Data) {
				if err := d.table.ClearSelection(); err != nil {
					t.showError(err)
				}
			})
		}),
		fyne.NewMenuItem("Refresh", t.refreshCurrent),
	)
	return fyne.NewMainMenu(file, t.browser.exportMenu(), table)
}

// SetStatus updates the status bar message.
func (t *MainWindow) SetStatus(message string) {
	if t.statusBar != nil {
		t.statusBar.SetText(message)
	}
}

func (t *MainWindow) showError(err error) {
	t.log.Warn("operation failed", zap.Error(err))
	t.SetStatus("Error: " + err.Error())
	dialog.ShowError(err, t.w)
}

// Window returns the viewer window.
func (t *MainWindow) Window() fyne.Window {
	return t.w
}

// Run opens every path and shows the window until it is closed.
func (t *MainWindow) Run(paths ...string) {
	for _, p := range paths {
		t.LoadPath(p)
	}
	t.w.ShowAndRun()
}

func (t *MainWindow) withCurrent(fn func(*Data)) {
	d := t.browser.Current()
	if d == nil {
		t.showError(errNoTable)
		return
	}
	fn(d)
}

func (t *MainWindow) refreshCurrent() {
	t.withCurrent(func(d *Data) { d.table.Refresh(t.ctx) })
}

func (t *MainWindow) addComputedColumn() {
	t.withCurrent(func(d *Data) {
		NewScriptEditor(t.w, d.table, t.log, func(spec datatable.ColumnSpec) error {
			if err := t.browser.AddColumn(d, spec); err != nil {
				return err
			}
			t.SetStatus(fmt.Sprintf("Added column %s to %s", spec.Key, d.name))
			return nil
		}).Show()
	})
}

// OpenProfile connects to the sharing server of a profile and lists its
// tables in the navigation tree.
func (t *MainWindow) OpenProfile(content string) {
	src, err := delta.Open(content, t.apiTimeout, t.log)
	if err != nil {
		t.showError(err)
		return
	}
	t.source = src
	t.SetStatus("Loading shared tables...")
	t.left.Show()

	go func() {
		tables, err := src.Tables(t.ctx)
		fyne.Do(func() {
			if err != nil {
				t.showError(err)
				return
			}
			t.nav.SetTables(tables)
			t.nav.Widget().OpenAllBranches()
			t.log.Info("profile loaded", zap.Int("tables", len(tables)))
			t.SetStatus(fmt.Sprintf("Profile loaded: %d tables", len(tables)))
		})
	}()
}

// openSharedTable reads the schema of table, asks which columns and rows
// to load and opens the result as a tab.
func (t *MainWindow) openSharedTable(table delta_sharing.Table) {
	src := t.source
	if src == nil {
		return
	}
	name := delta.TableName(table)
	t.SetStatus("Loading schema for " + name + "...")

	go func() {
		schema, err := src.Load(t.ctx, table, "", delta.Options{Limit: 1})
		fyne.Do(func() {
			if err != nil {
				t.showError(err)
				return
			}
			t.SetStatus("Choose options for " + name)
			NewQueryOptionsDialog(t.w, schema.Columns, func(opts delta.Options) {
				t.browser.loadAsync(t.ctx, name, func(ctx context.Context) (datatable.Config, error) {
					ds, err := src.Load(ctx, table, "", opts)
					if err != nil {
						return datatable.DefaultConfig(), err
					}
					return datasetConfig(ds), nil
				})
			}).Show()
		})
	}()
}

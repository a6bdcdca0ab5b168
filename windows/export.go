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
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"go.uber.org/zap"

	arrowadapter "datagrid/adapters/arrow"
	"datagrid/datatable"
)

// exportScope selects the rows that are exported.
type exportScope int

const (
	scopePage exportScope = iota
	scopeSelection
)

func (s exportScope) String() string {
	if s == scopeSelection {
		return "Selection"
	}
	return "Page"
}

var (
	errNothingSelected = errors.New("no rows are selected")
	errNoData          = errors.New("no data to export")
)

var exportFormats = []arrowadapter.ExportFormat{
	arrowadapter.FormatCSV,
	arrowadapter.FormatJSON,
	arrowadapter.FormatParquet,
}

// exportRows returns the displayed page or the selected rows of t.
func exportRows(t *datatable.Table, scope exportScope) ([]datatable.Row, error) {
	if scope == scopeSelection {
		rows := t.SelectedRows()
		if len(rows) == 0 {
			return nil, errNothingSelected
		}
		return rows, nil
	}
	rows := t.State().Rows
	if len(rows) == 0 {
		return nil, errNoData
	}
	return rows, nil
}

// exportMenu lists every scope and format for the selected tab.
func (b *DataBrowser) exportMenu() *fyne.Menu {
	var items []*fyne.MenuItem
	for _, scope := range []exportScope{scopePage, scopeSelection} {
		for _, format := range exportFormats {
			scope, format := scope, format
			label := fmt.Sprintf("%s as %s", scope, format)
			items = append(items, fyne.NewMenuItem(label, func() {
				d := b.Current()
				if d == nil {
					dialog.ShowInformation("Export", "Open a table first", b.w)
					return
				}
				b.exportData(d, format, scope)
			}))
		}
		items = append(items, fyne.NewMenuItemSeparator())
	}
	return fyne.NewMenu("Export", items[:len(items)-1]...)
}

// exportData asks for a destination and writes the rows of d in format.
func (b *DataBrowser) exportData(d *Data, format arrowadapter.ExportFormat, scope exportScope) {
	rows, err := exportRows(d.table, scope)
	if err != nil {
		dialog.ShowError(err, b.w)
		return
	}

	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, b.w)
			return
		}
		if writer == nil {
			return
		}

		exportErr := arrowadapter.Export(writer, d.table, rows, format)
		if cerr := writer.Close(); exportErr == nil {
			exportErr = cerr
		}
		if exportErr != nil {
			b.log.Warn("export failed", zap.String("table", d.name), zap.Stringer("format", format), zap.Error(exportErr))
			dialog.ShowError(fmt.Errorf("export failed: %w", exportErr), b.w)
			return
		}

		b.log.Info("exported rows",
			zap.String("table", d.name),
			zap.Stringer("format", format),
			zap.Int("rows", len(rows)),
			zap.String("uri", writer.URI().String()))
		b.setStatus(fmt.Sprintf("Exported %d rows to %s", len(rows), writer.URI().Name()))
	}, b.w)

	save.SetFileName(cleanFilename(d.name) + format.Extension())
	save.Show()
}

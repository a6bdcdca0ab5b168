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
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"datagrid/adapters/delta"
	"datagrid/datatable"
)

// defaultRowLimit is prefilled in the row limit entry.
const defaultRowLimit = "1000"

var (
	errNoColumns    = errors.New("please select at least one column")
	errInvalidLimit = errors.New("invalid limit: must be a positive number")
)

// QueryOptionsDialog asks for the columns, predicate and row limit used
// to load a shared table.
type QueryOptionsDialog struct {
	dialog         dialog.Dialog
	window         fyne.Window
	columns        []datatable.ColumnSpec
	columnChecks   []*widget.Check
	predicateEntry *widget.Entry
	limitEntry     *widget.Entry
	callback       func(delta.Options)
}

// NewQueryOptionsDialog builds the dialog for columns.
func NewQueryOptionsDialog(w fyne.Window, columns []datatable.ColumnSpec, callback func(delta.Options)) *QueryOptionsDialog {
	qod := &QueryOptionsDialog{
		window:   w,
		columns:  columns,
		callback: callback,
	}
	qod.createDialog()
	return qod
}

func (qod *QueryOptionsDialog) createDialog() {
	columnSelectLabel := widget.NewLabel("Select Columns:")
	columnSelectLabel.TextStyle = fyne.TextStyle{Bold: true}

	columnCheckboxes := container.NewVBox()
	for _, c := range qod.columns {
		check := widget.NewCheck(fmt.Sprintf("%s (%s)", c.Key, c.Type), nil)
		check.SetChecked(true)
		qod.columnChecks = append(qod.columnChecks, check)
		columnCheckboxes.Add(check)
	}
	setAll := func(on bool) {
		for _, check := range qod.columnChecks {
			check.SetChecked(on)
		}
	}
	selectButtons := container.NewHBox(
		widget.NewButton("Select All", func() { setAll(true) }),
		widget.NewButton("Deselect All", func() { setAll(false) }),
	)

	columnScroll := container.NewVScroll(columnCheckboxes)
	columnScroll.SetMinSize(fyne.NewSize(400, 200))

	predicateLabel := widget.NewLabel("Filter Predicate:")
	predicateLabel.TextStyle = fyne.TextStyle{Bold: true}
	qod.predicateEntry = widget.NewMultiLineEntry()
	qod.predicateEntry.SetPlaceHolder("e.g. age > 25 AND status = active")
	qod.predicateEntry.SetMinRowsVisible(3)
	predicateHelp := widget.NewLabel("Operators: = != > < >= <= ~ (contains), joined by AND / OR.")
	predicateHelp.TextStyle = fyne.TextStyle{Italic: true}

	limitLabel := widget.NewLabel("Row Limit:")
	limitLabel.TextStyle = fyne.TextStyle{Bold: true}
	qod.limitEntry = widget.NewEntry()
	qod.limitEntry.SetText(defaultRowLimit)
	qod.limitEntry.SetPlaceHolder("Leave empty for all rows")

	content := container.NewVBox(
		columnSelectLabel,
		selectButtons,
		columnScroll,
		widget.NewSeparator(),
		predicateLabel,
		qod.predicateEntry,
		predicateHelp,
		widget.NewSeparator(),
		limitLabel,
		qod.limitEntry,
	)

	qod.dialog = dialog.NewCustomConfirm("Query Options", "Load Data", "Cancel", content,
		func(confirmed bool) {
			if confirmed {
				qod.handleConfirm()
			}
		},
		qod.window,
	)
	qod.dialog.Resize(fyne.NewSize(500, 600))
}

// selectedColumns returns the checked column keys in schema order.
func (qod *QueryOptionsDialog) selectedColumns() []string {
	var out []string
	for i, check := range qod.columnChecks {
		if check.Checked {
			out = append(out, qod.columns[i].Key)
		}
	}
	return out
}

func (qod *QueryOptionsDialog) handleConfirm() {
	opts, err := parseQueryOptions(qod.selectedColumns(), len(qod.columns), qod.predicateEntry.Text, qod.limitEntry.Text)
	if err != nil {
		dialog.ShowError(err, qod.window)
		return
	}
	if qod.callback != nil {
		qod.callback(opts)
	}
}

// Show displays the dialog.
func (qod *QueryOptionsDialog) Show() {
	qod.dialog.Show()
}

// parseQueryOptions validates the dialog input. Selecting every column
// is the same as selecting none of them explicitly.
func parseQueryOptions(selected []string, total int, predicate, limit string) (delta.Options, error) {
	var opts delta.Options
	if len(selected) == 0 {
		return opts, errNoColumns
	}
	if len(selected) < total {
		opts.Columns = selected
	}
	opts.Predicate = strings.TrimSpace(predicate)

	if limit = strings.TrimSpace(limit); limit != "" {
		n, err := strconv.ParseInt(limit, 10, 64)
		if err != nil || n <= 0 {
			return opts, errInvalidLimit
		}
		opts.Limit = n
	}
	return opts, nil
}

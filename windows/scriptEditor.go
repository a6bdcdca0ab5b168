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
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"datagrid/adapters/script"
	"datagrid/datatable"
)

// previewRows is how many rows of the current page the preview renders.
const previewRows = 5

const scriptPlaceholder = `// Body of func Render(row map[string]interface{}) string
// fmt, math, strconv, strings and time are available.
return strings.ToUpper(fmt.Sprint(row["name"]))`

var errNoColumnKey = errors.New("the column needs a key")

// ScriptEditor edits a render script for a computed column, previews it
// against the current page and adds it to the table.
type ScriptEditor struct {
	w          fyne.Window
	log        *zap.Logger
	table      *datatable.Table
	onAdd      func(datatable.ColumnSpec) error
	keyEntry   *widget.Entry
	codeEditor *widget.Entry
	highlight  *widget.TextGrid
	output     *widget.RichText
	runButton  *widget.Button
	dialog     dialog.Dialog
}

// NewScriptEditor returns an editor for a column of table. onAdd receives
// the compiled column when the user confirms.
func NewScriptEditor(w fyne.Window, table *datatable.Table, log *zap.Logger, onAdd func(datatable.ColumnSpec) error) *ScriptEditor {
	if log == nil {
		log = zap.NewNop()
	}
	se := &ScriptEditor{w: w, log: log, table: table, onAdd: onAdd}
	se.createUI()
	return se
}

func (se *ScriptEditor) createUI() {
	se.keyEntry = widget.NewEntry()
	se.keyEntry.SetPlaceHolder("column key")

	se.codeEditor = widget.NewMultiLineEntry()
	se.codeEditor.SetPlaceHolder(scriptPlaceholder)
	se.codeEditor.Wrapping = fyne.TextWrapOff
	se.codeEditor.SetMinRowsVisible(8)

	se.highlight = widget.NewTextGrid()
	se.codeEditor.OnChanged = func(text string) {
		se.highlight.Rows = highlightRows(text)
		se.highlight.Refresh()
	}

	se.output = widget.NewRichText()
	se.output.Wrapping = fyne.TextWrapWord
	se.setOutput("Preview will appear here...", false)

	se.runButton = widget.NewButtonWithIcon("Preview", theme.MediaPlayIcon(), se.executeCode)

	editor := container.NewVSplit(
		container.NewBorder(widget.NewLabel("Script:"), nil, nil, nil, container.NewScroll(se.codeEditor)),
		container.NewBorder(widget.NewLabel("Highlighted:"), nil, nil, nil, container.NewScroll(se.highlight)),
	)
	outputCard := widget.NewCard("", "Rendered cells:", container.NewScroll(se.output))
	split := container.NewHSplit(editor, outputCard)
	split.SetOffset(0.6)

	content := container.NewBorder(
		container.NewBorder(nil, nil, widget.NewLabel("Key:"), se.runButton, se.keyEntry),
		nil, nil, nil,
		split,
	)

	se.dialog = dialog.NewCustomConfirm("Computed Column", "Add Column", "Cancel", content,
		func(confirmed bool) {
			if confirmed {
				se.addColumn()
			}
		}, se.w)
	se.dialog.Resize(fyne.NewSize(900, 600))
}

// Show displays the editor.
func (se *ScriptEditor) Show() {
	se.dialog.Show()
}

// executeCode compiles the script off the UI thread and renders the first
// rows of the current page.
func (se *ScriptEditor) executeCode() {
	body := se.codeEditor.Text
	if strings.TrimSpace(body) == "" {
		se.setOutput("Error: no script to run", false)
		return
	}
	se.setOutput("Compiling...", false)
	se.runButton.Disable()

	rows := se.table.State().Rows
	go func() {
		ctx, cancel := createTimeoutContext(context.Background(), 10)
		defer cancel()

		render, err := script.Compile(ctx, body, se.log)
		fyne.Do(func() {
			se.runButton.Enable()
			if err != nil {
				se.setOutput(err.Error(), false)
				return
			}
			se.setOutput(renderPreview(render, rows, previewRows), true)
		})
	}()
}

// addColumn compiles the script and hands the new column to onAdd.
func (se *ScriptEditor) addColumn() {
	spec, err := compileColumn(context.Background(), se.keyEntry.Text, se.codeEditor.Text, se.log)
	if err == nil && se.onAdd != nil {
		err = se.onAdd(spec)
	}
	if err != nil {
		dialog.ShowError(err, se.w)
	}
}

// compileColumn builds a non-sortable computed column from a script.
func compileColumn(ctx context.Context, key, body string, log *zap.Logger) (datatable.ColumnSpec, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return datatable.ColumnSpec{}, errNoColumnKey
	}
	render, err := script.Compile(ctx, body, log)
	if err != nil {
		return datatable.ColumnSpec{}, err
	}
	return datatable.ColumnSpec{Key: key, Label: key, Render: render}, nil
}

// renderPreview renders up to n rows, one per line.
func renderPreview(render datatable.RenderFunc, rows []datatable.Row, n int) string {
	if len(rows) == 0 {
		return "(no rows on this page)"
	}
	var b strings.Builder
	for i, r := range rows[:min(n, len(rows))] {
		fmt.Fprintf(&b, "%d: %s\n", i+1, render(r))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (se *ScriptEditor) setOutput(text string, bold bool) {
	se.output.Segments = []widget.RichTextSegment{&widget.TextSegment{
		Text:  text,
		Style: widget.RichTextStyle{TextStyle: fyne.TextStyle{Bold: bold, Monospace: true}},
	}}
	se.output.Refresh()
}

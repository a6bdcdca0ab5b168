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

package arrow

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"

	"datagrid/datatable"
	"datagrid/internal/cell"
)

// ExportFormat represents the supported export formats
type ExportFormat int

const (
	FormatParquet ExportFormat = iota
	FormatCSV
	FormatJSON
)

func (f ExportFormat) String() string {
	switch f {
	case FormatParquet:
		return "parquet"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension returns the file extension for the format, including the dot.
func (f ExportFormat) Extension() string {
	return "." + f.String()
}

// ParseFormat accepts a format name or a file name with a known extension.
func ParseFormat(s string) (ExportFormat, error) {
	name := strings.ToLower(strings.TrimPrefix(filepath.Ext(s), "."))
	if name == "" {
		name = strings.ToLower(s)
	}
	switch name {
	case "parquet":
		return FormatParquet, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: export format %q", ErrUnsupportedFile, s)
	}
}

// Export writes rows in column order. Cells are rendered with the table's
// render functions for CSV; JSON and Parquet keep raw values.
func Export(w io.Writer, tbl *datatable.Table, rows []datatable.Row, format ExportFormat) error {
	return ExportRows(w, rows, tbl.Columns(), tbl.RenderCell, format)
}

// ExportRows writes rows in the given format. render may be nil.
func ExportRows(w io.Writer, rows []datatable.Row, columns []datatable.ColumnSpec, render func(datatable.Row, string) string, format ExportFormat) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, rows, columns, render)
	case FormatJSON:
		return exportJSON(w, rows, columns)
	case FormatParquet:
		return exportParquet(w, rows, columns)
	default:
		return fmt.Errorf("%w: export format %v", ErrUnsupportedFile, format)
	}
}

// ExportFile writes rows to filePath, choosing the format from its extension.
func ExportFile(filePath string, rows []datatable.Row, columns []datatable.ColumnSpec, render func(datatable.Row, string) string) error {
	format, err := ParseFormat(filePath)
	if err != nil {
		return err
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", format, err)
	}
	if err := ExportRows(f, rows, columns, render, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportCSV(w io.Writer, rows []datatable.Row, columns []datatable.ColumnSpec, render func(datatable.Row, string) string) error {
	writer := csv.NewWriter(w)

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Key
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			if render != nil {
				record[i] = render(r, c.Key)
			} else {
				record[i] = cell.Format(r[c.Key])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func exportJSON(w io.Writer, rows []datatable.Row, columns []datatable.ColumnSpec) error {
	records := make([]map[string]any, len(rows))
	for i, r := range rows {
		rec := make(map[string]any, len(columns))
		for _, c := range columns {
			rec[c.Key] = r[c.Key]
		}
		records[i] = rec
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func exportParquet(w io.Writer, rows []datatable.Row, columns []datatable.ColumnSpec) error {
	table, err := ToTable(rows, columns, nil)
	if err != nil {
		return fmt.Errorf("failed to build arrow table: %w", err)
	}
	defer table.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(table.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := writer.WriteTable(table, max(table.NumRows(), 1)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write table to parquet: %w", err)
	}
	return writer.Close()
}

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

// Package arrow converts between Apache Arrow tables and table rows, and
// loads and exports the file formats the viewer understands.
package arrow

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"datagrid/datatable"
	"datagrid/internal/cell"
)

// Dataset is a fully materialized table: rows plus the columns derived from
// the source schema.
type Dataset struct {
	Columns []datatable.ColumnSpec
	Rows    []datatable.Row
}

// ColumnType maps an Arrow type onto the table's column types.
func ColumnType(dt arrow.DataType) datatable.DataType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return datatable.TypeInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return datatable.TypeFloat
	case arrow.DECIMAL128, arrow.DECIMAL256:
		return datatable.TypeDecimal
	case arrow.BOOL:
		return datatable.TypeBool
	case arrow.DATE32, arrow.DATE64:
		return datatable.TypeDate
	case arrow.TIMESTAMP:
		return datatable.TypeTimestamp
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return datatable.TypeBinary
	case arrow.STRUCT:
		return datatable.TypeStruct
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return datatable.TypeList
	default:
		return datatable.TypeString
	}
}

// Columns derives sortable column specs from a schema.
func Columns(schema *arrow.Schema) []datatable.ColumnSpec {
	cols := make([]datatable.ColumnSpec, 0, schema.NumFields())
	for _, f := range schema.Fields() {
		cols = append(cols, datatable.ColumnSpec{
			Key:      f.Name,
			Label:    f.Name,
			Sortable: true,
			Type:     ColumnType(f.Type),
		})
	}
	return cols
}

// FromTable materializes every row of tbl.
func FromTable(tbl arrow.Table) (*Dataset, error) {
	ds := &Dataset{
		Columns: Columns(tbl.Schema()),
		Rows:    make([]datatable.Row, 0, tbl.NumRows()),
	}
	if tbl.NumRows() == 0 {
		return ds, nil
	}

	tr := array.NewTableReader(tbl, tbl.NumRows())
	defer tr.Release()

	for tr.Next() {
		ds.Rows = appendRecord(ds.Rows, tr.Record())
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("error reading table: %w", err)
	}
	return ds, nil
}

// FromRecord materializes the rows of a single record batch.
func FromRecord(rec arrow.Record) *Dataset {
	return &Dataset{
		Columns: Columns(rec.Schema()),
		Rows:    appendRecord(make([]datatable.Row, 0, rec.NumRows()), rec),
	}
}

func appendRecord(rows []datatable.Row, rec arrow.Record) []datatable.Row {
	schema := rec.Schema()
	for i := 0; i < int(rec.NumRows()); i++ {
		row := make(datatable.Row, rec.NumCols())
		for c, col := range rec.Columns() {
			row[schema.Field(c).Name] = Value(col, i)
		}
		rows = append(rows, row)
	}
	return rows
}

// Value returns the Go value at pos, preserving its type where the table can
// compare it (numbers, booleans, times).
func Value(col arrow.Array, pos int) any {
	if col.IsNull(pos) {
		return nil
	}

	switch c := col.(type) {
	case *array.String:
		return c.Value(pos)
	case *array.LargeString:
		return c.Value(pos)
	case *array.Binary:
		return string(c.Value(pos))
	case *array.Boolean:
		return c.Value(pos)
	case *array.Int8:
		return int64(c.Value(pos))
	case *array.Int16:
		return int64(c.Value(pos))
	case *array.Int32:
		return int64(c.Value(pos))
	case *array.Int64:
		return c.Value(pos)
	case *array.Uint8:
		return uint64(c.Value(pos))
	case *array.Uint16:
		return uint64(c.Value(pos))
	case *array.Uint32:
		return uint64(c.Value(pos))
	case *array.Uint64:
		return c.Value(pos)
	case *array.Float16:
		return float64(c.Value(pos).Float32())
	case *array.Float32:
		return float64(c.Value(pos))
	case *array.Float64:
		return c.Value(pos)
	case *array.Date32:
		return c.Value(pos).ToTime()
	case *array.Date64:
		return c.Value(pos).ToTime()
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(pos).ToTime(unit).UTC()
	case *array.Decimal128:
		scale := c.DataType().(*arrow.Decimal128Type).Scale
		return c.Value(pos).ToString(scale)
	default:
		// Nested and less common types keep their marshalled form.
		return col.ValueStr(pos)
	}
}

// Format converts a column value at pos to its display string.
func Format(col arrow.Array, pos int) string {
	v := Value(col, pos)
	if t, ok := v.(time.Time); ok && col.DataType().ID() != arrow.TIMESTAMP {
		return t.Format(time.DateOnly)
	}
	return cell.Format(v)
}

// ToTable builds an Arrow table from rows, in column order. Int, float and
// bool columns keep their type when every non-null value fits it; anything
// else is written as text.
func ToTable(rows []datatable.Row, columns []datatable.ColumnSpec, mem memory.Allocator) (arrow.Table, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.Key, Type: inferType(rows, c), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, c := range columns {
		fb := b.Field(i)
		for _, r := range rows {
			if err := appendValue(fb, r[c.Key]); err != nil {
				return nil, fmt.Errorf("column %q: %w", c.Key, err)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec}), nil
}

func inferType(rows []datatable.Row, col datatable.ColumnSpec) arrow.DataType {
	var ints, floats, bools, total int
	for _, r := range rows {
		v, ok := r[col.Key]
		if !ok || v == nil {
			continue
		}
		total++
		switch x := v.(type) {
		case bool:
			bools++
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
			ints++
		case float32, float64:
			floats++
		default:
			// json.Number and uint64 decide by value; strings stay text.
			if _, isString := x.(string); !isString {
				if f, ok := cell.Number(x); ok {
					if f == float64(int64(f)) {
						ints++
					} else {
						floats++
					}
				}
			}
		}
	}

	switch {
	case total == 0:
		if col.Type.Numeric() {
			return arrow.PrimitiveTypes.Float64
		}
		return arrow.BinaryTypes.String
	case bools == total:
		return arrow.FixedWidthTypes.Boolean
	case ints == total:
		return arrow.PrimitiveTypes.Int64
	case ints+floats == total:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch fb := b.(type) {
	case *array.BooleanBuilder:
		fb.Append(v.(bool))
	case *array.Int64Builder:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("not an integer: %v", v)
		}
		fb.Append(n)
	case *array.Float64Builder:
		f, ok := cell.Number(v)
		if !ok {
			return fmt.Errorf("not a number: %v", v)
		}
		fb.Append(f)
	case *array.StringBuilder:
		fb.Append(cell.Format(v))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	f, ok := cell.Number(v)
	return int64(f), ok
}

package arrow

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagrid/datatable"
	"datagrid/internal/cell"
)

var sampleColumns = []datatable.ColumnSpec{
	{Key: "id", Label: "ID", Type: datatable.TypeInt},
	{Key: "name", Label: "Name"},
	{Key: "score", Label: "Score", Type: datatable.TypeFloat},
	{Key: "active", Label: "Active", Type: datatable.TypeBool},
}

func sampleRows() []datatable.Row {
	return []datatable.Row{
		{"id": 1, "name": "Ada", "score": 9.5, "active": true},
		{"id": 2, "name": "Linus", "score": 7.25, "active": false},
		{"id": 3, "name": nil, "score": nil, "active": true},
	}
}

func TestDetectSeparator(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a,b,c\n1,2,3", ','},
		{"a;b;c\n1;2;3", ';'},
		{"a\tb\tc", '\t'},
		{"a|b|c", '|'},
		{"single", ','},
		{"", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSeparator(strings.NewReader(tt.line)), tt.line)
	}
	assert.Equal(t, "semicolon", SeparatorName(';'))
}

func TestDetectFileType(t *testing.T) {
	profile := []byte(`{"shareCredentialsVersion": 1, "endpoint": "https://x", "bearerToken": "t"}`)
	assert.Equal(t, FileTypeCSV, DetectFileType("a.CSV", nil))
	assert.Equal(t, FileTypeParquet, DetectFileType("a.parquet", nil))
	assert.Equal(t, FileTypeJSON, DetectFileType("a.json", []byte(`[{"a": 1}]`)))
	assert.Equal(t, FileTypeDeltaSharingProfile, DetectFileType("a.share", profile))
	assert.Equal(t, FileTypeUnknown, DetectFileType("a.xlsx", nil))
}

func TestReadCSVInfersTypes(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("id;city;amount\n1;Oslo;10.5\n2;Lima;3\n"), ';')
	require.NoError(t, err)

	require.Len(t, ds.Columns, 3)
	assert.Equal(t, "city", ds.Columns[1].Key)
	assert.Equal(t, datatable.TypeInt, ds.Columns[0].Type)
	assert.Equal(t, datatable.TypeFloat, ds.Columns[2].Type)

	require.Len(t, ds.Rows, 2)
	assert.Equal(t, int64(1), ds.Rows[0]["id"])
	assert.Equal(t, "Lima", ds.Rows[1]["city"])
	assert.Equal(t, 3.0, ds.Rows[1]["amount"])
}

func TestReadJSON(t *testing.T) {
	ds, err := ReadJSON([]byte(`[{"b": "x", "a": 1}, {"a": 2.5, "c": true}]`))
	require.NoError(t, err)

	keys := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, datatable.TypeFloat, ds.Columns[0].Type)
	assert.Equal(t, datatable.TypeBool, ds.Columns[2].Type)
	assert.Len(t, ds.Rows, 2)

	single, err := ReadJSON([]byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.Len(t, single.Rows, 1)

	_, err = ReadJSON([]byte(`[]`))
	assert.Error(t, err)
	_, err = ReadJSON([]byte(`nope`))
	assert.Error(t, err)
}

func TestToTableAndBack(t *testing.T) {
	tbl, err := ToTable(sampleRows(), sampleColumns, memory.NewGoAllocator())
	require.NoError(t, err)
	defer tbl.Release()

	schema := tbl.Schema()
	assert.Equal(t, arrow.INT64, schema.Field(0).Type.ID())
	assert.Equal(t, arrow.STRING, schema.Field(1).Type.ID())
	assert.Equal(t, arrow.FLOAT64, schema.Field(2).Type.ID())
	assert.Equal(t, arrow.BOOL, schema.Field(3).Type.ID())
	assert.Equal(t, int64(3), tbl.NumRows())

	ds, err := FromTable(tbl)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, int64(2), ds.Rows[1]["id"])
	assert.Equal(t, 7.25, ds.Rows[1]["score"])
	assert.Nil(t, ds.Rows[2]["name"])
	assert.Equal(t, true, ds.Rows[2]["active"])
}

func TestToTableMixedColumnBecomesText(t *testing.T) {
	rows := []datatable.Row{{"v": 1}, {"v": "two"}}
	tbl, err := ToTable(rows, []datatable.ColumnSpec{{Key: "v"}}, nil)
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, arrow.STRING, tbl.Schema().Field(0).Type.ID())
}

func TestFromRecordAndFormat(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "day", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "n", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Date32Builder).Append(arrow.Date32(19723)) // 2024-01-01
	b.Field(1).(*array.Int32Builder).AppendNull()
	rec := b.NewRecord()
	defer rec.Release()

	ds := FromRecord(rec)
	assert.Equal(t, datatable.TypeDate, ds.Columns[0].Type)
	assert.Equal(t, datatable.TypeInt, ds.Columns[1].Type)
	assert.Nil(t, ds.Rows[0]["n"])
	assert.Equal(t, "2024-01-01", Format(rec.Column(0), 0))
	assert.Equal(t, "", Format(rec.Column(1), 0))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("out/page.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)
	assert.Equal(t, ".parquet", f.Extension())

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestExportCSVUsesRender(t *testing.T) {
	var buf bytes.Buffer
	render := func(r datatable.Row, key string) string {
		if r[key] == nil {
			return "-"
		}
		return strings.ToUpper(cell.Format(r[key]))
	}
	require.NoError(t, ExportRows(&buf, sampleRows(), sampleColumns[:2], render, FormatCSV))
	assert.Equal(t, "id,name\n1,ADA\n2,LINUS\n3,-\n", buf.String())
}

func TestExportJSONKeepsColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportRows(&buf, sampleRows()[:1], sampleColumns[:2], nil, FormatJSON))
	assert.JSONEq(t, `[{"id": 1, "name": "Ada"}]`, buf.String())
}

func TestParquetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportRows(&buf, sampleRows(), sampleColumns, nil, FormatParquet))

	ds, err := ReadParquet(context.Background(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, "Linus", ds.Rows[1]["name"])
	assert.Equal(t, 9.5, ds.Rows[0]["score"])
	assert.Equal(t, datatable.TypeInt, ds.Columns[0].Type)
}

func TestLoadAndExportFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name|age\nAda|36\nLinus|28\n"), 0o600))

	ds, info, err := LoadFile(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, FileTypeCSV, info.Type)
	assert.Equal(t, '|', info.Separator)
	assert.Contains(t, info.String(), "separator: pipe")
	require.Len(t, ds.Rows, 2)

	out := filepath.Join(dir, "people.json")
	require.NoError(t, ExportFile(out, ds.Rows, ds.Columns, nil))
	back, info, err := LoadFile(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, FileTypeJSON, info.Type)
	assert.Len(t, back.Rows, 2)

	_, _, err = LoadFile(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "data.xlsx")
	require.NoError(t, os.WriteFile(unknown, []byte("x"), 0o600))
	_, _, err = LoadFile(context.Background(), unknown)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestLoadedRowsDriveStaticTable(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("id,city\n1,Oslo\n2,Lima\n3,Oslo\n"), ',')
	require.NoError(t, err)

	tbl, err := datatable.New(datatable.Config{Columns: ds.Columns, Data: ds.Rows, PageSize: 10})
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.SetFilter(context.Background(), "city", "oslo").Wait(context.Background()))
	assert.Equal(t, 2, tbl.State().TotalRecords)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, tbl, tbl.State().Rows, FormatCSV))
	assert.Equal(t, "id,city\n1,Oslo\n3,Oslo\n", buf.String())
}

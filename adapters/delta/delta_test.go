package delta

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedTable builds a two-column table split over two record batches.
func chunkedTable(t *testing.T) arrow.Table {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "region", Type: arrow.BinaryTypes.String},
		{Name: "amount", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	batch := func(regions []string, amounts []int64) arrow.Record {
		b := array.NewRecordBuilder(mem, schema)
		defer b.Release()
		b.Field(0).(*array.StringBuilder).AppendValues(regions, nil)
		b.Field(1).(*array.Int64Builder).AppendValues(amounts, nil)
		return b.NewRecord()
	}
	r1 := batch([]string{"EU", "US", "EU"}, []int64{5, 20, 30})
	r2 := batch([]string{"APAC", "EU"}, []int64{7, 12})
	defer r1.Release()
	defer r2.Release()

	return array.NewTableFromRecords(schema, []arrow.Record{r1, r2})
}

func TestParseTable(t *testing.T) {
	tbl, err := ParseTable("sales.public.orders")
	require.NoError(t, err)
	assert.Equal(t, "sales", tbl.Share)
	assert.Equal(t, "public", tbl.Schema)
	assert.Equal(t, "orders", tbl.Name)
	assert.Equal(t, "sales.public.orders", TableName(tbl))

	for _, bad := range []string{"", "a.b", "a..c", "a.b.c.d"} {
		_, err := ParseTable(bad)
		assert.ErrorIs(t, err, ErrInvalidTableName, bad)
	}
}

func TestMaterializeAll(t *testing.T) {
	tbl := chunkedTable(t)
	defer tbl.Release()

	ds, err := Materialize(tbl, Options{})
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 5)
	assert.Len(t, ds.Columns, 2)
}

func TestMaterializeProjectsColumns(t *testing.T) {
	tbl := chunkedTable(t)
	defer tbl.Release()

	ds, err := Materialize(tbl, Options{Columns: []string{"amount"}})
	require.NoError(t, err)
	require.Len(t, ds.Columns, 1)
	assert.Equal(t, "amount", ds.Columns[0].Key)
	assert.NotContains(t, ds.Rows[0], "region")

	_, err = Materialize(tbl, Options{Columns: []string{"nope"}})
	assert.Error(t, err)
}

func TestMaterializeLimitSpansChunks(t *testing.T) {
	tbl := chunkedTable(t)
	defer tbl.Release()

	ds, err := Materialize(tbl, Options{Limit: 4})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 4)
	assert.Equal(t, "APAC", ds.Rows[3]["region"])

	ds, err = Materialize(tbl, Options{Columns: []string{"region"}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 2)
}

func TestMaterializePredicate(t *testing.T) {
	tbl := chunkedTable(t)
	defer tbl.Release()

	ds, err := Materialize(tbl, Options{Predicate: "region = EU AND amount > 10"})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, int64(30), ds.Rows[0]["amount"])
	assert.Equal(t, int64(12), ds.Rows[1]["amount"])

	_, err = Materialize(tbl, Options{Predicate: "missing = 1"})
	assert.Error(t, err)
}

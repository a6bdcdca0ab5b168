package script

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagrid/datatable"
)

func TestCompile(t *testing.T) {
	render, err := Compile(context.Background(), `return strings.ToUpper(fmt.Sprint(row["name"]))`, nil)
	require.NoError(t, err)
	assert.Equal(t, "ADA", render(datatable.Row{"name": "Ada"}))
}

func TestCompileNumericFormatting(t *testing.T) {
	render, err := Compile(context.Background(), `
	v, ok := row["amount"].(float64)
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64) + " EUR"`, nil)
	require.NoError(t, err)

	assert.Equal(t, "12.35 EUR", render(datatable.Row{"amount": 12.346}))
	assert.Equal(t, "-", render(datatable.Row{}))
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(context.Background(), `return 42`, nil)
	assert.ErrorIs(t, err, ErrScript)

	_, err = Compile(context.Background(), `this is not go`, nil)
	assert.ErrorIs(t, err, ErrScript)
}

func TestPanicRendersError(t *testing.T) {
	render, err := Compile(context.Background(), `if row["name"] == nil { panic("no name") }; return "ok"`, nil)
	require.NoError(t, err)
	assert.Equal(t, RenderError, render(datatable.Row{}))
}

func TestRenderConcurrentUse(t *testing.T) {
	render, err := Compile(context.Background(), `return fmt.Sprint(row["id"])`, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "7", render(datatable.Row{"id": 7}), i)
		}()
	}
	wg.Wait()
}

func TestBind(t *testing.T) {
	cols := []datatable.ColumnSpec{{Key: "first"}, {Key: "last"}}
	bound, err := Bind(context.Background(), cols, map[string]string{
		"last": `return strings.ToUpper(fmt.Sprint(row["last"]))`,
		"full": `return fmt.Sprint(row["first"], " ", row["last"])`,
	}, nil)
	require.NoError(t, err)

	require.Len(t, bound, 3)
	assert.Nil(t, cols[1].Render, "input columns are not modified")
	assert.Nil(t, bound[0].Render)
	assert.Equal(t, "full", bound[2].Key)

	row := datatable.Row{"first": "Grace", "last": "Hopper"}
	assert.Equal(t, "HOPPER", bound[1].Render(row))
	assert.Equal(t, "Grace Hopper", bound[2].Render(row))

	_, err = Bind(context.Background(), cols, map[string]string{"x": `return 1`}, nil)
	assert.ErrorIs(t, err, ErrScript)
}

func TestBoundColumnsRenderInTable(t *testing.T) {
	cols, err := Bind(context.Background(), []datatable.ColumnSpec{{Key: "n"}}, map[string]string{
		"n": `return "#" + fmt.Sprint(row["n"])`,
	}, nil)
	require.NoError(t, err)

	tbl, err := datatable.New(datatable.Config{Columns: cols, Data: []datatable.Row{{"n": 1}}})
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, "#1", tbl.RenderCell(datatable.Row{"n": 1}, "n"))
}

func TestRunawayScriptIsAbandoned(t *testing.T) {
	render, err := CompileWithTimeout(context.Background(), `
	n := 0
	for start := time.Now(); time.Since(start) < time.Second; {
		n++
	}
	return fmt.Sprint(n)`, 50*time.Millisecond, nil)
	require.NoError(t, err)

	start := time.Now()
	assert.Equal(t, RenderError, render(datatable.Row{}))
	assert.Less(t, time.Since(start), 5*time.Second)

	start = time.Now()
	assert.Equal(t, RenderError, render(datatable.Row{}), "a timed out script stays disabled")
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

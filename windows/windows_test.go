package windows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/theme"
	delta_sharing "github.com/magpierre/go_delta_sharing_client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"datagrid/adapters/delta"
	"datagrid/datatable"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func people(n int) []datatable.Row {
	rows := make([]datatable.Row, n)
	for i := range rows {
		city := "Oslo"
		if i%2 == 1 {
			city = "Lima"
		}
		rows[i] = datatable.Row{"name": fmt.Sprintf("p%02d", i+1), "age": int64(20 + i), "city": city}
	}
	return rows
}

func TestParseQueryOptions(t *testing.T) {
	opts, err := parseQueryOptions([]string{"a", "b"}, 2, "  x > 1 ", "")
	require.NoError(t, err)
	assert.Nil(t, opts.Columns, "all columns selected")
	assert.Equal(t, "x > 1", opts.Predicate)
	assert.Zero(t, opts.Limit)

	opts, err = parseQueryOptions([]string{"a"}, 3, "", defaultRowLimit)
	require.NoError(t, err)
	assert.Equal(t, delta.Options{Columns: []string{"a"}, Limit: 1000}, opts)

	_, err = parseQueryOptions(nil, 3, "", "")
	assert.ErrorIs(t, err, errNoColumns)

	for _, limit := range []string{"0", "-5", "ten"} {
		_, err = parseQueryOptions([]string{"a"}, 1, "", limit)
		assert.ErrorIs(t, err, errInvalidLimit, limit)
	}
}

func TestListDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	writeFile(t, dir, "b.csv", "")
	writeFile(t, dir, "a.PARQUET", "")
	writeFile(t, dir, "notes.md", "")
	writeFile(t, dir, ".hidden.csv", "")

	got, err := listDirectory(dir, dataExtensions)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub" + string(filepath.Separator), "a.PARQUET", "b.csv"}, got)

	_, err = listDirectory(filepath.Join(dir, "missing"), dataExtensions)
	assert.Error(t, err)

	assert.True(t, hasExtension("t.yml", definitionExtensions))
	assert.False(t, hasExtension("t.yaml.bak", definitionExtensions))
}

func TestClassifyPath(t *testing.T) {
	dir := t.TempDir()
	profile := `{"shareCredentialsVersion": 1, "endpoint": "https://example.com/delta", "bearerToken": "t"}`

	kind, content, err := classifyPath(writeFile(t, dir, "p.share", profile))
	require.NoError(t, err)
	assert.Equal(t, kindProfile, kind)
	assert.JSONEq(t, profile, string(content))

	kind, _, err = classifyPath(writeFile(t, dir, "rows.json", `[{"a": 1}]`))
	require.NoError(t, err)
	assert.Equal(t, kindData, kind)

	kind, _, err = classifyPath(filepath.Join(dir, "table.yaml"))
	require.NoError(t, err)
	assert.Equal(t, kindDefinition, kind)

	_, _, err = classifyPath(filepath.Join(dir, "missing.share"))
	assert.Error(t, err)
}

func TestFileConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "people.csv", "name,age,city\nAda,36,Oslo\nLinus,28,Lima\nGrace,45,Oslo\n")

	cfg, err := fileConfig(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, cfg.Columns, 3)
	assert.Len(t, cfg.Data, 3)
	assert.True(t, cfg.RowSelection)
	for _, c := range cfg.Columns {
		assert.True(t, c.Sortable, c.Key)
	}

	require.Len(t, cfg.FilterFields, 2, "age is numeric")
	assert.Equal(t, "name", cfg.FilterFields[0].Key)
	assert.Equal(t, "city", cfg.FilterFields[1].Key)
	assert.Equal(t, []datatable.FilterOption{{Label: "Lima", Value: "Lima"}, {Label: "Oslo", Value: "Oslo"}}, cfg.FilterFields[1].Options)

	_, err = fileConfig(context.Background(), filepath.Join(t.TempDir(), "none.csv"), zap.NewNop())
	assert.Error(t, err)
}

func TestSuggestFilters(t *testing.T) {
	cols := []datatable.ColumnSpec{{Key: "name"}, {Key: "age", Type: datatable.TypeInt}, {Key: "city", Label: "Town"}, {Key: "tag"}}
	rows := people(30)
	for i, r := range rows {
		r["tag"] = "a,b"
		if i == 0 {
			r["tag"] = "solo"
		}
	}

	fields := suggestFilters(rows, cols, 5)
	require.Len(t, fields, 1)
	assert.Equal(t, "Town", fields[0].Label)
	assert.True(t, fields[0].MultiSelectChips)
	assert.False(t, fields[0].IsSingle)
}

func TestFilenames(t *testing.T) {
	assert.Equal(t, "sales_2024-q1", cleanFilename("sales 2024-q1!"))
	assert.Equal(t, "export", cleanFilename("%%%"))
	assert.Equal(t, "people", tabTitle("/data/people.csv"))
	assert.Equal(t, "archive.tar", tabTitle("archive.tar.gz"))
}

func TestNavigationTree(t *testing.T) {
	nt := NewNavigationTree()
	nt.SetTables([]delta_sharing.Table{
		{Share: "s2", Schema: "x", Name: "t"},
		{Share: "s1", Schema: "b", Name: "z"},
		{Share: "s1", Schema: "a", Name: "y"},
		{Share: "s1", Schema: "a", Name: "w"},
	})

	assert.Equal(t, []string{"s1", "s2"}, nt.GetChildren(""))
	assert.Equal(t, []string{"s1.a", "s1.b"}, nt.GetChildren("s1"))
	assert.Equal(t, []string{"s1.a.w", "s1.a.y"}, nt.GetChildren("s1.a"))
	assert.Equal(t, 4, nt.TableCount())

	assert.True(t, nt.IsBranch(""))
	assert.True(t, nt.IsBranch("s1.a"))
	assert.False(t, nt.IsBranch("s1.a.w"))
	assert.False(t, nt.IsBranch("nope"))

	node := nt.GetNode("s2.x.t")
	require.NotNil(t, node)
	assert.Equal(t, NodeTypeTable, node.NodeType)
	assert.Equal(t, "s2.x.t", delta.TableName(node.Table))

	nt.SetTables(nil)
	assert.Empty(t, nt.GetChildren(""))
	assert.Zero(t, nt.TableCount())
}

func TestNavigationTreeSelectsTables(t *testing.T) {
	test.NewTempApp(t)
	nt := NewNavigationTree()
	nt.SetTables([]delta_sharing.Table{{Share: "s", Schema: "c", Name: "t"}})

	var got []string
	nt.OnTableSelected = func(tbl delta_sharing.Table) { got = append(got, delta.TableName(tbl)) }
	tree := nt.Widget()
	tree.Select("s.c")
	tree.Select("s.c.t")
	assert.Equal(t, []string{"s.c.t"}, got)
}

func TestTokenizeLine(t *testing.T) {
	line := `return fmt.Sprint(row["n"]) + 42 // done`
	kinds := map[string]TokenType{}
	for _, tok := range tokenizeLine(line) {
		kinds[string([]rune(line)[tok.start:tok.end])] = tok.kind
	}
	assert.Equal(t, TokenKeyword, kinds["return"])
	assert.Equal(t, TokenPackage, kinds["fmt"])
	assert.Equal(t, TokenPlain, kinds["Sprint"])
	assert.Equal(t, TokenRow, kinds["row"])
	assert.Equal(t, TokenString, kinds[`"n"`])
	assert.Equal(t, TokenNumber, kinds["42"])
	assert.Equal(t, TokenOperator, kinds["+"])
	assert.Equal(t, TokenComment, kinds["// done"])

	toks := tokenizeLine(`s := "unterminated \" still`)
	last := toks[len(toks)-1]
	assert.Equal(t, TokenString, last.kind)
	assert.Equal(t, len([]rune(`s := "unterminated \" still`)), last.end)
}

func TestHighlightRows(t *testing.T) {
	rows := highlightRows("return nil\n\nx")
	require.Len(t, rows, 3)
	require.Len(t, rows[0].Cells, len("return nil"))
	assert.Equal(t, 'r', rows[0].Cells[0].Rune)
	assert.Equal(t, syntaxStyles[TokenKeyword], rows[0].Cells[0].Style)
	assert.Equal(t, syntaxStyles[TokenBuiltin], rows[0].Cells[7].Style)
	assert.Empty(t, rows[1].Cells)
	assert.Nil(t, rows[2].Cells[0].Style)
}

func TestRenderPreview(t *testing.T) {
	render := func(r datatable.Row) string { return fmt.Sprint(r["name"]) }
	assert.Equal(t, "1: p01\n2: p02", renderPreview(render, people(5), 2))
	assert.Equal(t, "1: p01", renderPreview(render, people(1), 5))
	assert.Equal(t, "(no rows on this page)", renderPreview(render, nil, 5))
}

func TestCompileColumn(t *testing.T) {
	_, err := compileColumn(context.Background(), "  ", `return ""`, nil)
	assert.ErrorIs(t, err, errNoColumnKey)

	spec, err := compileColumn(context.Background(), " upper ", `return strings.ToUpper(fmt.Sprint(row["name"]))`, nil)
	require.NoError(t, err)
	assert.Equal(t, "upper", spec.Key)
	assert.False(t, spec.Sortable)
	assert.Equal(t, "P01", spec.Render(people(1)[0]))

	_, err = compileColumn(context.Background(), "bad", `return 1 +`, nil)
	assert.Error(t, err)
}

func TestGridTheme(t *testing.T) {
	th := gridTheme{}
	assert.Equal(t, lightColors[theme.ColorNamePrimary], th.Color(theme.ColorNamePrimary, theme.VariantLight))
	assert.Equal(t, darkColors[theme.ColorNamePrimary], th.Color(theme.ColorNamePrimary, theme.VariantDark))
	assert.Equal(t, theme.DefaultTheme().Color(theme.ColorNameError, theme.VariantLight), th.Color(theme.ColorNameError, theme.VariantLight))
	assert.Equal(t, float32(4), th.Size(theme.SizeNamePadding))
	assert.Equal(t, theme.DefaultTheme().Size(theme.SizeNameText), th.Size(theme.SizeNameText))
}

func newBrowser(t *testing.T) (*DataBrowser, *string) {
	t.Helper()
	a := test.NewTempApp(t)
	w := a.NewWindow("test")
	t.Cleanup(w.Close)
	status := new(string)
	b := NewDataBrowser(w, nil, func(s string) { *status = s })
	t.Cleanup(b.CloseAll)
	return b, status
}

func peopleConfig() datatable.Config {
	cfg := datatable.DefaultConfig()
	cfg.Data = people(25)
	cfg.RowSelection = true
	cfg.Columns = []datatable.ColumnSpec{
		{Key: "name", Label: "Name", Sortable: true},
		{Key: "age", Label: "Age", Sortable: true, Type: datatable.TypeInt},
		{Key: "city", Label: "City"},
	}
	return cfg
}

func waitView(t *testing.T, d *Data) {
	t.Helper()
	p := d.view.Pending()
	require.NotNil(t, p)
	require.NoError(t, p.Wait(context.Background()))
}

func TestDataBrowserTabs(t *testing.T) {
	b, status := newBrowser(t)

	d, err := b.AddTable("people", peopleConfig())
	require.NoError(t, err)
	waitView(t, d)
	assert.Equal(t, 1, b.Len())
	assert.Same(t, d, b.Current())
	assert.Equal(t, "people", d.Name())
	assert.Equal(t, "Table people | Page 1 of 3 (25 records)", *status)

	bad := peopleConfig()
	bad.Columns = append(bad.Columns, datatable.ColumnSpec{Key: "age"})
	_, err = b.AddTable("broken", bad)
	assert.ErrorIs(t, err, datatable.ErrDuplicateColumn)
	assert.Equal(t, 1, b.Len())

	b.closeTab(d.tab)
	assert.Zero(t, b.Len())
	assert.Nil(t, b.Current())
	assert.Equal(t, "Ready", *status)
}

func TestDataBrowserAddColumnKeepsState(t *testing.T) {
	b, _ := newBrowser(t)
	d, err := b.AddTable("people", peopleConfig())
	require.NoError(t, err)
	waitView(t, d)

	require.NoError(t, d.Table().SetFilter(context.Background(), "city", "Lima").Wait(context.Background()))
	require.NoError(t, d.Table().SetPageSize(context.Background(), 5).Wait(context.Background()))
	require.NoError(t, d.Table().GoToPage(context.Background(), 2).Wait(context.Background()))
	old := d.Table()

	require.NoError(t, b.AddColumn(d, datatable.ColumnSpec{
		Key:    "tag",
		Label:  "Tag",
		Render: func(r datatable.Row) string { return fmt.Sprint(r["city"], "/", r["name"]) },
	}))
	waitView(t, d)

	assert.NotSame(t, old, d.Table())
	require.Len(t, d.Table().Columns(), 4)
	st := d.Table().State()
	assert.Equal(t, datatable.Filters{"city": "Lima"}, st.Filters)
	assert.Equal(t, 5, st.PageSize)
	assert.Equal(t, 2, st.CurrentPage)
	assert.Equal(t, 12, st.TotalRecords)
	assert.Equal(t, "Lima/p12", d.Table().RenderCell(st.Rows[0], "tag"))

	err = b.AddColumn(d, datatable.ColumnSpec{Key: "name"})
	assert.ErrorIs(t, err, datatable.ErrDuplicateColumn)
	assert.Equal(t, 4, len(d.Table().Columns()), "failed rebuild keeps the table")
}

func TestExportRows(t *testing.T) {
	b, _ := newBrowser(t)
	d, err := b.AddTable("people", peopleConfig())
	require.NoError(t, err)
	waitView(t, d)

	rows, err := exportRows(d.Table(), scopePage)
	require.NoError(t, err)
	assert.Len(t, rows, 10)

	_, err = exportRows(d.Table(), scopeSelection)
	assert.ErrorIs(t, err, errNothingSelected)

	require.NoError(t, d.Table().SetRowSelected(1, true))
	require.NoError(t, d.Table().SetRowSelected(4, true))
	rows, err = exportRows(d.Table(), scopeSelection)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p05", rows[1]["name"])

	menu := b.exportMenu()
	assert.Equal(t, "Export", menu.Label)
	assert.Len(t, menu.Items, 7)
	assert.Equal(t, "Page as csv", menu.Items[0].Label)
}

package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagrid/datatable"
)

const fileDefinition = `
title: People
page_size: 2
row_selection: true
preserve_selection_on_refresh: false
columns:
  - key: name
    label: Name
    sortable: true
    sticky: left
  - key: age
    label: Age
    sortable: true
  - key: greeting
    label: Greeting
    render: |
      return "hi " + fmt.Sprint(row["name"])
filters:
  - key: city
    label: City
    single: true
    options:
      - {label: Oslo, value: Oslo}
      - {label: Lima, value: Lima}
initial_filters:
  city: Oslo
source:
  file: people.csv
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseAndConvert(t *testing.T) {
	def, err := Parse([]byte(fileDefinition))
	require.NoError(t, err)

	assert.Equal(t, "People", def.Title)
	cols := def.ColumnSpecs()
	require.Len(t, cols, 3)
	assert.Equal(t, datatable.StickyLeft, cols[0].Sticky)
	assert.True(t, cols[1].Sortable)

	assert.Equal(t, map[string]string{"greeting": "return \"hi \" + fmt.Sprint(row[\"name\"])\n"}, def.Scripts())

	fields := def.FilterFields()
	require.Len(t, fields, 1)
	assert.True(t, fields[0].IsSingle)
	assert.Len(t, fields[0].Options, 2)

	cfg := def.TableConfig(nil)
	assert.Equal(t, 2, cfg.PageSize)
	assert.True(t, cfg.RowSelection)
	assert.False(t, cfg.PreserveSelectionOnRefresh)
	assert.Equal(t, datatable.Filters{"city": "Oslo"}, cfg.InitialFilters)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":    "source: {file: a.csv}\nbogus: 1\n",
		"no source":        "title: x\n",
		"two sources":      "source: {file: a.csv, rest: {base_url: 'http://x'}}\n",
		"rest no columns":  "source: {rest: {base_url: 'http://x', resource: r}}\n",
		"rest no base":     "columns: [{key: a}]\nsource: {rest: {resource: r}}\n",
		"delta no table":   "source: {delta: {profile: p.share}}\n",
		"duplicate column": "columns: [{key: a}, {key: a}]\nsource: {file: a.csv}\n",
		"bad type":         "columns: [{key: a, type: money}]\nsource: {file: a.csv}\n",
		"bad sticky":       "columns: [{key: a, sticky: top}]\nsource: {file: a.csv}\n",
		"negative page":    "page_size: -1\nsource: {file: a.csv}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("columns: [{key: a}, {key: a}]\nsource: {file: a.csv}\n"))
	assert.ErrorIs(t, err, datatable.ErrDuplicateColumn)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv(TokenEnv, "secret")
	t.Setenv("TENANT", "acme")

	def, err := Parse([]byte(`
columns: [{key: id}]
source:
  rest:
    base_url: http://localhost
    resource: loads
    headers:
      X-Tenant: ${TENANT}
`))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", def.Source.REST.Headers["Authorization"])
	assert.Equal(t, "acme", def.Source.REST.Headers["X-Tenant"])
}

func TestLoadBuildsStaticTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", "name,age,city\nAda,36,Oslo\nLinus,28,Lima\nGrace,45,Oslo\nAlan,41,Oslo\n")
	path := writeFile(t, dir, "people.yaml", fileDefinition)

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "people.csv"), def.Source.File)

	cfg, err := def.Build(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cfg.Data, 4)
	assert.Equal(t, datatable.TypeInt, cfg.Columns[1].Type, "type filled from the loaded schema")
	require.NotNil(t, cfg.Columns[2].Render)

	tbl, err := datatable.New(cfg)
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Load(context.Background()).Wait(context.Background()))
	st := tbl.State()
	assert.Equal(t, 3, st.TotalRecords, "initial filter city=Oslo")
	assert.Equal(t, 2, st.TotalPages)
	assert.Equal(t, "hi Ada", tbl.RenderCell(st.Rows[0], "greeting"))
}

func TestBuildRESTSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"id": 1}], "pagination": {"current_page": 1, "last_page": 1, "total": 1}}`))
	}))
	defer srv.Close()

	def, err := Parse([]byte("columns: [{key: id, type: int}]\nsource: {rest: {base_url: '" + srv.URL + "', resource: items}}\n"))
	require.NoError(t, err)

	cfg, err := def.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, cfg.API.List)
	assert.NotNil(t, cfg.API.FilterBy)
	assert.Nil(t, cfg.API.Search, "search is opt-in")

	tbl, err := datatable.New(cfg)
	require.NoError(t, err)
	defer tbl.Close()
	require.NoError(t, tbl.Load(context.Background()).Wait(context.Background()))
	assert.Equal(t, 1, tbl.State().TotalRecords)
}

func TestSaveRoundTrip(t *testing.T) {
	def, err := Parse([]byte(fileDefinition))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "out.yaml")
	require.NoError(t, def.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, def.Columns, back.Columns)
	assert.Equal(t, def.Filters, back.Filters)
}

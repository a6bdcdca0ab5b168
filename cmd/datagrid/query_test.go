package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arrowadapter "datagrid/adapters/arrow"
	"datagrid/datatable"
)

const peopleCSV = "name,age,city\nAda,36,Oslo\nLinus,28,Lima\nGrace,45,Oslo\nAlan,41,Oslo\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters([]string{"city=Oslo,Lima", " age = 3"})
	require.NoError(t, err)
	assert.Equal(t, datatable.Filters{"city": "Oslo,Lima", "age": "3"}, f)

	_, err = parseFilters([]string{"city"})
	assert.ErrorIs(t, err, errBadFilter)
	_, err = parseFilters([]string{"=x"})
	assert.ErrorIs(t, err, errBadFilter)
}

func TestParseSort(t *testing.T) {
	key, dir := parseSort("age:DESC")
	assert.Equal(t, "age", key)
	assert.Equal(t, datatable.SortDescending, dir)

	key, dir = parseSort("name")
	assert.Equal(t, "name", key)
	assert.Equal(t, datatable.SortAscending, dir)

	key, dir = parseSort("")
	assert.Empty(t, key)
	assert.Equal(t, datatable.SortNone, dir)
}

func TestInspectPrintsFilteredSortedPage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "people.csv", peopleCSV)

	out, err := run(t, "inspect", path, "--filter", "city=Oslo", "--sort", "age:desc", "--page-size", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{"name,age,city", "Grace,45,Oslo", "Alan,41,Oslo"}, lines)

	out, err = run(t, "inspect", path, "--filter", "city=Oslo", "--sort", "age:desc", "--page-size", "2", "--page", "2")
	require.NoError(t, err)
	assert.Equal(t, "name,age,city\nAda,36,Oslo", strings.TrimSpace(out))
}

func TestInspectSearch(t *testing.T) {
	path := writeFile(t, t.TempDir(), "people.csv", peopleCSV)

	out, err := run(t, "inspect", path, "--search", "li", "--search-column", "name")
	require.NoError(t, err)
	assert.Equal(t, "name,age,city\nLinus,28,Lima", strings.TrimSpace(out))

	_, err = run(t, "inspect", path, "--search", "x", "--search-column", "nope")
	assert.ErrorIs(t, err, datatable.ErrColumnNotFound)
}

func TestInspectRejectsBadInput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "people.csv", peopleCSV)

	_, err := run(t, "inspect", path, "--sort", "missing")
	assert.ErrorIs(t, err, datatable.ErrInvalidSortColumn)

	_, err = run(t, "inspect", path, "--format", "xml")
	assert.ErrorIs(t, err, arrowadapter.ErrUnsupportedFile)

	_, err = run(t, "inspect", filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv", peopleCSV)
	output := filepath.Join(dir, "out.json")

	_, err := run(t, "export", path, "-o", output, "--sort", "name")
	require.NoError(t, err)

	ds, _, err := arrowadapter.LoadFile(t.Context(), output)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 4)
	assert.Equal(t, "Ada", ds.Rows[0]["name"])
	assert.Equal(t, "Linus", ds.Rows[3]["name"])
}

func TestExportFromDefinition(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", peopleCSV)
	def := writeFile(t, dir, "people.yaml", `
title: People
page_size: 2
columns:
  - {key: name, sortable: true}
  - key: greeting
    render: return "hi " + fmt.Sprint(row["name"])
initial_filters:
  city: Lima
source:
  file: people.csv
`)
	output := filepath.Join(dir, "out.csv")

	_, err := run(t, "export", def, "-o", output)
	require.NoError(t, err)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "name,greeting\nLinus,hi Linus\n", string(data))
}

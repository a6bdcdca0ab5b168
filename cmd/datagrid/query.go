package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	arrowadapter "datagrid/adapters/arrow"
	"datagrid/datatable"
	"datagrid/internal/config"
)

var errBadFilter = errors.New("filters must be key=value")

// queryFlags are the table operations shared by export and inspect.
type queryFlags struct {
	page         int
	pageSize     int
	filters      []string
	search       string
	searchColumn string
	sort         string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&q.page, "page", 1, "page to fetch")
	f.IntVar(&q.pageSize, "page-size", 0, "rows per page (default from the definition)")
	f.StringArrayVar(&q.filters, "filter", nil, "filter as key=value; repeat for more, join values with commas")
	f.StringVar(&q.search, "search", "", "free-text search")
	f.StringVar(&q.searchColumn, "search-column", "", "restrict the search to one column")
	f.StringVar(&q.sort, "sort", "", "sort column, optionally suffixed with :desc")
}

// open loads path, applies the flags and waits for the resulting page.
func (q *queryFlags) open(ctx context.Context, path string, opts *rootOptions) (*datatable.Table, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	filters, err := parseFilters(q.filters)
	if err != nil {
		return nil, err
	}
	sortKey, sortDir := parseSort(q.sort)

	cfg, err := loadConfig(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	for k, v := range filters {
		if cfg.InitialFilters == nil {
			cfg.InitialFilters = datatable.Filters{}
		}
		cfg.InitialFilters[k] = v
	}
	if q.pageSize > 0 {
		cfg.PageSize = q.pageSize
	}

	tbl, err := datatable.New(cfg)
	if err != nil {
		return nil, err
	}
	steps := []func() *datatable.Pending{
		func() *datatable.Pending { return tbl.Load(ctx) },
	}
	if q.search != "" {
		steps = append(steps, func() *datatable.Pending { return tbl.Search(ctx, q.search, q.searchColumn) })
	}
	if sortKey != "" {
		steps = append(steps, func() *datatable.Pending { return tbl.SetSort(ctx, sortKey, sortDir) })
	}
	if q.page > 1 {
		steps = append(steps, func() *datatable.Pending { return tbl.GoToPage(ctx, q.page) })
	}
	for _, step := range steps {
		if err := step().Wait(ctx); err != nil {
			tbl.Close()
			return nil, err
		}
	}
	opts.log.Debug("table ready", zap.String("path", path), zap.String("summary", summary(tbl)))
	return tbl, nil
}

// loadConfig builds a table configuration from a YAML definition or a
// data file. Data files get sortable columns.
func loadConfig(ctx context.Context, path string, opts *rootOptions) (datatable.Config, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		def, err := config.Load(path)
		if err != nil {
			return datatable.Config{}, err
		}
		return def.Build(ctx, opts.log)
	}

	ds, info, err := arrowadapter.LoadFile(ctx, path)
	if err != nil {
		return datatable.Config{}, err
	}
	opts.log.Debug("loaded file", zap.Stringer("file", info))
	cfg := datatable.DefaultConfig()
	cfg.Logger = opts.log
	cfg.Data = ds.Rows
	for _, c := range ds.Columns {
		c.Sortable = true
		cfg.Columns = append(cfg.Columns, c)
	}
	return cfg, nil
}

func parseFilters(pairs []string) (datatable.Filters, error) {
	filters := datatable.Filters{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", errBadFilter, p)
		}
		filters[k] = strings.TrimSpace(v)
	}
	return filters, nil
}

func parseSort(s string) (string, datatable.SortDirection) {
	key, dir, _ := strings.Cut(strings.TrimSpace(s), ":")
	if key == "" {
		return "", datatable.SortNone
	}
	if strings.EqualFold(dir, "desc") {
		return key, datatable.SortDescending
	}
	return key, datatable.SortAscending
}

// summary is a one-line description of the displayed page.
func summary(tbl *datatable.Table) string {
	st := tbl.State()
	s := fmt.Sprintf("page %d of %d, %d rows shown, %d records, mode %s", st.CurrentPage, st.TotalPages, len(st.Rows), st.TotalRecords, st.Mode)
	if st.Sort.IsSorted() {
		s += fmt.Sprintf(", sorted by %s %s", st.Sort.Column, st.Sort.Direction)
	}
	return s
}

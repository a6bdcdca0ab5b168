package datatable

import (
	"sort"

	"go.uber.org/zap"

	"datagrid/internal/cell"
	"datagrid/internal/filter"
)

// staticSource pages over in-memory rows.
type staticSource struct {
	rows    []Row
	columns []ColumnSpec
	parser  *filter.QueryParser
	single  map[string]bool
	log     *zap.Logger
}

func newStaticSource(rows []Row, columns []ColumnSpec, fields []FilterField, log *zap.Logger) *staticSource {
	single := make(map[string]bool, len(fields))
	for _, f := range fields {
		single[f.Key] = f.IsSingle
	}
	keys := make([]string, 0, len(columns))
	for _, c := range columns {
		keys = append(keys, c.Key)
	}
	if len(keys) == 0 && len(rows) > 0 {
		for k := range rows[0] {
			keys = append(keys, k)
		}
	}
	return &staticSource{
		rows:    rows,
		columns: columns,
		parser:  filter.NewQueryParser(keys),
		single:  single,
		log:     log,
	}
}

// predicate builds the row filter for a request.
func (s *staticSource) predicate(req request) filter.Predicate {
	preds := make([]filter.Predicate, 0, len(req.filters)+1)
	for _, key := range req.filters.Keys() {
		value := req.filters[key]
		if v, ok := value.(string); ok && s.single[key] {
			// single-select values are matched whole, commas included
			value = []string{v}
		}
		preds = append(preds, filter.NewFieldFilter(key, value))
	}

	switch {
	case req.search == "":
	case req.searchColumn != "":
		preds = append(preds, &filter.ContainsFilter{Keys: []string{req.searchColumn}, Term: req.search})
	default:
		q, err := s.parser.ParseQuery(req.search)
		if err != nil {
			s.log.Debug("search is not a query expression, matching as text",
				zap.String("search", req.search), zap.Error(err))
			preds = append(preds, &filter.ContainsFilter{Term: req.search})
		} else if q != nil {
			preds = append(preds, q)
		}
	}
	return filter.And(preds...)
}

// fetch returns the requested page. Out-of-range pages yield an empty page
// with correct totals so the caller can clamp.
func (s *staticSource) fetch(req request) *FetchResult {
	matched := filter.Apply(s.rows, s.predicate(req))

	if req.sort.IsSorted() {
		key, desc := req.sort.Column, req.sort.Direction == SortDescending
		sort.SliceStable(matched, func(i, j int) bool {
			c := cell.Compare(matched[i][key], matched[j][key])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	total := len(matched)
	res := &FetchResult{
		TotalRecords: total,
		TotalPages:   (total + req.pageSize - 1) / req.pageSize,
		CurrentPage:  req.page,
		PageSize:     req.pageSize,
	}

	start := (req.page - 1) * req.pageSize
	if start >= total {
		return res
	}
	end := min(start+req.pageSize, total)
	res.Data = make([]Row, 0, end-start)
	for _, r := range matched[start:end] {
		res.Data = append(res.Data, r.clone())
	}
	return res
}

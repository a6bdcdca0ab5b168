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

package windows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	arrowadapter "datagrid/adapters/arrow"
	"datagrid/datatable"
	"datagrid/internal/cell"
	"datagrid/internal/config"
)

// pathKind is what the viewer does with an opened path.
type pathKind int

const (
	kindData pathKind = iota
	kindDefinition
	kindProfile
)

// maxFilterOptions is the largest number of distinct values for which a
// text column of a data file gets a filter select.
const maxFilterOptions = 12

// classifyPath decides how to open path. Profiles are returned with their
// contents.
func classifyPath(path string) (pathKind, []byte, error) {
	if hasExtension(path, definitionExtensions) {
		return kindDefinition, nil, nil
	}
	if hasExtension(path, profileExtensions) {
		content, err := os.ReadFile(path)
		if err != nil {
			return kindData, nil, fmt.Errorf("failed to read file: %w", err)
		}
		if arrowadapter.DetectFileType(path, content) == arrowadapter.FileTypeDeltaSharingProfile {
			return kindProfile, content, nil
		}
	}
	return kindData, nil, nil
}

// LoadPath opens a data file, a table definition or a sharing profile.
func (t *MainWindow) LoadPath(path string) {
	kind, content, err := classifyPath(path)
	if err != nil {
		t.showError(err)
		return
	}

	switch kind {
	case kindProfile:
		t.OpenProfile(string(content))
	case kindDefinition:
		def, err := config.Load(path)
		if err != nil {
			t.showError(err)
			return
		}
		name := def.Title
		if name == "" {
			name = tabTitle(path)
		}
		t.browser.loadAsync(t.ctx, name, func(ctx context.Context) (datatable.Config, error) {
			ctx, cancel := createTimeoutContext(ctx, t.apiTimeout)
			defer cancel()
			return def.Build(ctx, t.log)
		})
	default:
		t.browser.loadAsync(t.ctx, tabTitle(path), func(ctx context.Context) (datatable.Config, error) {
			return fileConfig(ctx, path, t.log)
		})
	}
}

// fileConfig loads a data file as a static table.
func fileConfig(ctx context.Context, path string, log *zap.Logger) (datatable.Config, error) {
	ds, info, err := arrowadapter.LoadFile(ctx, path)
	if err != nil {
		return datatable.DefaultConfig(), err
	}
	log.Info("loaded file", zap.Stringer("file", info), zap.Int("rows", len(ds.Rows)), zap.Int("columns", len(ds.Columns)))
	return datasetConfig(ds), nil
}

// datasetConfig serves ds in static mode with sortable columns, row
// selection and filter selects for low-cardinality text columns.
func datasetConfig(ds *arrowadapter.Dataset) datatable.Config {
	cfg := datatable.DefaultConfig()
	cols := make([]datatable.ColumnSpec, len(ds.Columns))
	for i, c := range ds.Columns {
		c.Sortable = true
		cols[i] = c
	}
	cfg.Columns = cols
	cfg.Data = ds.Rows
	cfg.RowSelection = true
	cfg.FilterFields = suggestFilters(ds.Rows, cols, maxFilterOptions)
	return cfg
}

// suggestFilters returns a multi-select filter for every text column with
// between two and maxOptions distinct non-empty values.
func suggestFilters(rows []datatable.Row, columns []datatable.ColumnSpec, maxOptions int) []datatable.FilterField {
	var fields []datatable.FilterField
	for _, c := range columns {
		if c.Type != datatable.TypeString {
			continue
		}
		seen := map[string]struct{}{}
		for _, r := range rows {
			v := strings.TrimSpace(cell.Format(r[c.Key]))
			if v == "" || strings.Contains(v, ",") {
				continue
			}
			seen[v] = struct{}{}
			if len(seen) > maxOptions {
				break
			}
		}
		if len(seen) < 2 || len(seen) > maxOptions {
			continue
		}

		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		opts := make([]datatable.FilterOption, len(values))
		for i, v := range values {
			opts[i] = datatable.FilterOption{Label: v, Value: v}
		}
		label := c.Label
		if label == "" {
			label = c.Key
		}
		fields = append(fields, datatable.FilterField{
			Key:              c.Key,
			Label:            label,
			Options:          opts,
			MultiSelectChips: true,
		})
	}
	return fields
}

// openDialog shows the file browser for extensions and loads the choice.
func (t *MainWindow) openDialog(title string, extensions []string) {
	NewOpenDialog(t.w, title, extensions, func(path string, err error) {
		if err != nil {
			t.showError(err)
			return
		}
		t.SetStatus("Opening " + filepath.Base(path))
		t.LoadPath(path)
	}).Show()
}

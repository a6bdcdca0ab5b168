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

// Package delta loads Delta Sharing table files as static table data.
package delta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	delta_sharing "github.com/magpierre/go_delta_sharing_client"
	"go.uber.org/zap"

	arrowadapter "datagrid/adapters/arrow"
	"datagrid/internal/filter"
)

var (
	// ErrFileNotFound is returned when a file id is not part of the table.
	ErrFileNotFound = errors.New("file not found in table")

	// ErrInvalidTableName is returned for names not of the form share.schema.table.
	ErrInvalidTableName = errors.New("table name must be share.schema.table")
)

// Options narrows what is loaded from a table file.
type Options struct {
	// Columns keeps only the named columns, in schema order.
	Columns []string
	// Predicate is a row filter such as "amount > 10 AND region = EU".
	Predicate string
	// Limit caps the number of rows; zero loads all.
	Limit int64
}

// Source is a Delta Sharing server reachable through one profile.
type Source struct {
	client         delta_sharing.SharingClientV2
	timeoutSeconds int
	log            *zap.Logger
}

// Open creates a source from the JSON contents of a profile file.
func Open(profile string, timeoutSeconds int, log *zap.Logger) (*Source, error) {
	client, err := delta_sharing.NewSharingClientV2FromString(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create Delta Sharing client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{client: client, timeoutSeconds: timeoutSeconds, log: log}, nil
}

// ParseTable splits a share.schema.table name.
func ParseTable(name string) (delta_sharing.Table, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return delta_sharing.Table{}, fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return delta_sharing.Table{Share: parts[0], Schema: parts[1], Name: parts[2]}, nil
}

// TableName joins a table back into share.schema.table form.
func TableName(t delta_sharing.Table) string {
	return t.Share + "." + t.Schema + "." + t.Name
}

// Tables lists every table visible to the profile.
func (s *Source) Tables(ctx context.Context) ([]delta_sharing.Table, error) {
	ctx, cancel := timeoutContext(ctx, s.timeoutSeconds)
	defer cancel()

	tables, _, err := s.client.ListAllTables_V2(ctx, 0, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list all tables: %w", err)
	}
	return tables, nil
}

// Files lists the file ids of a table.
func (s *Source) Files(ctx context.Context, table delta_sharing.Table) ([]string, error) {
	ctx, cancel := timeoutContext(ctx, s.timeoutSeconds)
	defer cancel()

	resp, err := s.client.ListFilesInTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", TableName(table), err)
	}
	ids := make([]string, 0, len(resp.AddFiles))
	for _, f := range resp.AddFiles {
		ids = append(ids, f.Id)
	}
	return ids, nil
}

// Load reads one file of table; an empty fileID selects the first file.
func (s *Source) Load(ctx context.Context, table delta_sharing.Table, fileID string, opts Options) (*arrowadapter.Dataset, error) {
	ids, err := s.Files(ctx, table)
	if err != nil {
		return nil, err
	}
	if fileID == "" && len(ids) > 0 {
		fileID = ids[0]
	}
	found := false
	for _, id := range ids {
		if id == fileID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q in %s", ErrFileNotFound, fileID, TableName(table))
	}

	lctx, cancel := timeoutContext(ctx, s.timeoutSeconds)
	defer cancel()

	start := time.Now()
	tbl, err := delta_sharing.LoadArrowTable(lctx, s.client, table, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", TableName(table), err)
	}
	defer tbl.Release()

	s.log.Debug("loaded delta file",
		zap.String("table", TableName(table)),
		zap.String("file", fileID),
		zap.Int64("rows", tbl.NumRows()),
		zap.Duration("elapsed", time.Since(start)))

	return Materialize(tbl, opts)
}

// Materialize applies opts to tbl and converts it to table rows.
func Materialize(tbl arrow.Table, opts Options) (*arrowadapter.Dataset, error) {
	narrowed, err := applyOptions(tbl, opts)
	if err != nil {
		return nil, err
	}
	if narrowed != tbl {
		defer narrowed.Release()
	}

	ds, err := arrowadapter.FromTable(narrowed)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Predicate) == "" {
		return ds, nil
	}

	keys := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		keys[i] = c.Key
	}
	query, err := filter.NewQueryParser(keys).ParseQuery(opts.Predicate)
	if err != nil {
		return nil, fmt.Errorf("invalid predicate: %w", err)
	}
	ds.Rows = filter.Apply(ds.Rows, query)
	return ds, nil
}

// applyOptions projects columns and limits rows. A Predicate is evaluated
// after materializing, so Limit counts rows before filtering.
func applyOptions(table arrow.Table, opts Options) (arrow.Table, error) {
	out := table
	if len(opts.Columns) > 0 {
		keep := make(map[string]bool, len(opts.Columns))
		for _, c := range opts.Columns {
			keep[c] = true
		}

		schema := table.Schema()
		var (
			fields  []arrow.Field
			columns []arrow.Column
		)
		for i, field := range schema.Fields() {
			if keep[field.Name] {
				fields = append(fields, field)
				columns = append(columns, *table.Column(i))
			}
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("no matching columns found")
		}
		out = array.NewTable(arrow.NewSchema(fields, nil), columns, table.NumRows())
	}

	if opts.Limit > 0 && opts.Limit < out.NumRows() {
		numCols := int(out.NumCols())
		columns := make([]arrow.Column, numCols)
		for i := 0; i < numCols; i++ {
			col := out.Column(i)
			var (
				chunks []arrow.Array
				n      int64
			)
			for _, chunk := range col.Data().Chunks() {
				if n >= opts.Limit {
					break
				}
				remaining := opts.Limit - n
				if int64(chunk.Len()) <= remaining {
					chunk.Retain()
					chunks = append(chunks, chunk)
					n += int64(chunk.Len())
				} else {
					chunks = append(chunks, array.NewSlice(chunk, 0, remaining))
					n += remaining
				}
			}
			chunked := arrow.NewChunked(col.DataType(), chunks)
			columns[i] = *arrow.NewColumn(col.Field(), chunked)
			chunked.Release()
			for _, c := range chunks {
				c.Release()
			}
		}

		limited := array.NewTable(out.Schema(), columns, opts.Limit)
		for i := range columns {
			columns[i].Release()
		}
		if out != table {
			out.Release()
		}
		out = limited
	}
	return out, nil
}

// timeoutContext derives a context with a configurable timeout
// (default: 60 seconds if <= 0).
func timeoutContext(parent context.Context, timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return context.WithTimeout(parent, time.Duration(timeoutSeconds)*time.Second)
}

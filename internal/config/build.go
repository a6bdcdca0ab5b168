package config

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	arrowadapter "datagrid/adapters/arrow"
	"datagrid/adapters/delta"
	"datagrid/adapters/rest"
	"datagrid/adapters/script"
	"datagrid/datatable"
)

// Build resolves the definition's source and scripts into a ready table
// configuration. File and Delta sources are loaded eagerly and served in
// static mode; REST sources are fetched page by page.
func (d *Definition) Build(ctx context.Context, log *zap.Logger) (datatable.Config, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := d.TableConfig(log)

	switch {
	case d.Source.File != "":
		ds, info, err := arrowadapter.LoadFile(ctx, d.Source.File)
		if err != nil {
			return cfg, err
		}
		log.Info("loaded file", zap.Stringer("file", info), zap.Int("rows", len(ds.Rows)))
		cfg.Data = ds.Rows
		cfg.Columns = mergeColumns(cfg.Columns, ds.Columns)

	case d.Source.Delta != nil:
		dd := d.Source.Delta
		profile, err := os.ReadFile(dd.Profile)
		if err != nil {
			return cfg, fmt.Errorf("failed to read profile: %w", err)
		}
		src, err := delta.Open(string(profile), dd.TimeoutSeconds, log)
		if err != nil {
			return cfg, err
		}
		table, err := delta.ParseTable(dd.Table)
		if err != nil {
			return cfg, err
		}
		ds, err := src.Load(ctx, table, dd.FileID, delta.Options{
			Columns:   dd.Columns,
			Predicate: dd.Predicate,
			Limit:     dd.Limit,
		})
		if err != nil {
			return cfg, err
		}
		cfg.Data = ds.Rows
		cfg.Columns = mergeColumns(cfg.Columns, ds.Columns)

	case d.Source.REST != nil:
		r := d.Source.REST
		rc := rest.DefaultConfig()
		rc.BaseURL = r.BaseURL
		rc.Resource = r.Resource
		rc.Headers = r.Headers
		rc.RequestsPerSecond = r.RequestsPerSecond
		rc.Burst = r.Burst
		rc.Logger = log
		if r.TimeoutSeconds > 0 {
			rc.TimeoutSeconds = r.TimeoutSeconds
		}
		client, err := rest.New(rc)
		if err != nil {
			return cfg, err
		}
		cfg.API = client.API()
		if !r.Search {
			cfg.API.Search = nil
		}
	}

	cols, err := script.Bind(ctx, cfg.Columns, d.Scripts(), log)
	if err != nil {
		return cfg, err
	}
	cfg.Columns = cols
	return cfg, nil
}

// mergeColumns keeps the declared columns when there are any, filling in
// types the declaration left at the default from the loaded schema.
// Without declarations the loaded columns are used as is.
func mergeColumns(declared, loaded []datatable.ColumnSpec) []datatable.ColumnSpec {
	if len(declared) == 0 {
		return loaded
	}
	types := make(map[string]datatable.DataType, len(loaded))
	for _, c := range loaded {
		types[c.Key] = c.Type
	}
	out := make([]datatable.ColumnSpec, len(declared))
	for i, c := range declared {
		if c.Type == datatable.TypeString {
			if t, ok := types[c.Key]; ok {
				c.Type = t
			}
		}
		out[i] = c
	}
	return out
}

// Package config loads YAML table definitions: the columns, filters and
// paging of a table plus the source its rows come from.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"datagrid/datatable"
)

// ErrInvalidDefinition is returned for definitions that fail validation.
var ErrInvalidDefinition = errors.New("invalid table definition")

// TokenEnv, when set, supplies a bearer token for REST sources.
const TokenEnv = "DATAGRID_API_TOKEN"

// Definition is a table definition file.
type Definition struct {
	Title                      string            `yaml:"title,omitempty"`
	PageSize                   int               `yaml:"page_size,omitempty"`
	RowSelection               bool              `yaml:"row_selection,omitempty"`
	PreserveSelectionOnRefresh *bool             `yaml:"preserve_selection_on_refresh,omitempty"`
	Columns                    []ColumnDef       `yaml:"columns,omitempty"`
	Filters                    []FilterDef       `yaml:"filters,omitempty"`
	InitialFilters             map[string]string `yaml:"initial_filters,omitempty"`
	Source                     SourceDef         `yaml:"source"`
}

// ColumnDef describes one column. Render is a script body; see package
// adapters/script.
type ColumnDef struct {
	Key      string  `yaml:"key"`
	Label    string  `yaml:"label,omitempty"`
	Type     string  `yaml:"type,omitempty"`
	Width    float32 `yaml:"width,omitempty"`
	Sortable bool    `yaml:"sortable,omitempty"`
	Sticky   string  `yaml:"sticky,omitempty"`
	Render   string  `yaml:"render,omitempty"`
}

// FilterDef describes a filter select.
type FilterDef struct {
	Key     string      `yaml:"key"`
	Label   string      `yaml:"label,omitempty"`
	Single  bool        `yaml:"single,omitempty"`
	Chips   bool        `yaml:"chips,omitempty"`
	Options []OptionDef `yaml:"options,omitempty"`
}

// OptionDef is one filter option.
type OptionDef struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

// SourceDef selects exactly one row source.
type SourceDef struct {
	File  string    `yaml:"file,omitempty"`
	REST  *RESTDef  `yaml:"rest,omitempty"`
	Delta *DeltaDef `yaml:"delta,omitempty"`
}

// RESTDef configures a paginated REST resource.
type RESTDef struct {
	BaseURL           string            `yaml:"base_url"`
	Resource          string            `yaml:"resource"`
	Headers           map[string]string `yaml:"headers,omitempty"`
	TimeoutSeconds    int               `yaml:"timeout_seconds,omitempty"`
	RequestsPerSecond float64           `yaml:"requests_per_second,omitempty"`
	Burst             int               `yaml:"burst,omitempty"`
	Search            bool              `yaml:"search,omitempty"`
}

// DeltaDef configures a Delta Sharing table file.
type DeltaDef struct {
	Profile        string   `yaml:"profile"`
	Table          string   `yaml:"table"`
	FileID         string   `yaml:"file_id,omitempty"`
	Columns        []string `yaml:"columns,omitempty"`
	Predicate      string   `yaml:"predicate,omitempty"`
	Limit          int64    `yaml:"limit,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Load reads and validates a definition. Relative file and profile paths
// are resolved against the definition's directory.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.resolvePaths(filepath.Dir(path))
	return def, nil
}

// Parse decodes and validates a definition. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	def.applyEnvOverrides()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Save writes the definition as YAML.
func (d *Definition) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create definition directory: %w", err)
		}
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write definition: %w", err)
	}
	return nil
}

// Validate checks the definition without touching any source.
func (d *Definition) Validate() error {
	if d.PageSize < 0 {
		return fmt.Errorf("%w: page_size %d", ErrInvalidDefinition, d.PageSize)
	}

	sources := 0
	if d.Source.File != "" {
		sources++
	}
	if d.Source.REST != nil {
		sources++
		if d.Source.REST.BaseURL == "" {
			return fmt.Errorf("%w: rest source needs base_url", ErrInvalidDefinition)
		}
	}
	if d.Source.Delta != nil {
		sources++
		if d.Source.Delta.Profile == "" || d.Source.Delta.Table == "" {
			return fmt.Errorf("%w: delta source needs profile and table", ErrInvalidDefinition)
		}
	}
	if sources != 1 {
		return fmt.Errorf("%w: exactly one of source.file, source.rest, source.delta is required", ErrInvalidDefinition)
	}
	if d.Source.REST != nil && len(d.Columns) == 0 {
		return fmt.Errorf("%w: rest sources need explicit columns", ErrInvalidDefinition)
	}

	seen := map[string]bool{}
	for i, c := range d.Columns {
		if strings.TrimSpace(c.Key) == "" {
			return fmt.Errorf("%w: column %d has no key", ErrInvalidDefinition, i)
		}
		if seen[c.Key] {
			return fmt.Errorf("%w: %w: %s", ErrInvalidDefinition, datatable.ErrDuplicateColumn, c.Key)
		}
		seen[c.Key] = true
		if _, err := parseType(c.Type); err != nil {
			return err
		}
		if _, err := parseSticky(c.Sticky); err != nil {
			return err
		}
	}
	return nil
}

// applyEnvOverrides adds an Authorization header from TokenEnv unless the
// definition sets one, and expands ${VAR} references in header values.
func (d *Definition) applyEnvOverrides() {
	r := d.Source.REST
	if r == nil {
		return
	}
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	for k, v := range r.Headers {
		r.Headers[k] = os.ExpandEnv(v)
	}
	if token := os.Getenv(TokenEnv); token != "" {
		if _, ok := r.Headers["Authorization"]; !ok {
			r.Headers["Authorization"] = "Bearer " + token
		}
	}
}

func (d *Definition) resolvePaths(dir string) {
	if d.Source.File != "" && !filepath.IsAbs(d.Source.File) {
		d.Source.File = filepath.Join(dir, d.Source.File)
	}
	if d.Source.Delta != nil && !filepath.IsAbs(d.Source.Delta.Profile) {
		d.Source.Delta.Profile = filepath.Join(dir, d.Source.Delta.Profile)
	}
}

// ColumnSpecs converts the column definitions. Render scripts are returned
// separately by Scripts.
func (d *Definition) ColumnSpecs() []datatable.ColumnSpec {
	cols := make([]datatable.ColumnSpec, 0, len(d.Columns))
	for _, c := range d.Columns {
		typ, _ := parseType(c.Type)
		sticky, _ := parseSticky(c.Sticky)
		cols = append(cols, datatable.ColumnSpec{
			Key:      c.Key,
			Label:    c.Label,
			Width:    c.Width,
			Sortable: c.Sortable,
			Sticky:   sticky,
			Type:     typ,
		})
	}
	return cols
}

// Scripts returns the render scripts keyed by column.
func (d *Definition) Scripts() map[string]string {
	out := map[string]string{}
	for _, c := range d.Columns {
		if strings.TrimSpace(c.Render) != "" {
			out[c.Key] = c.Render
		}
	}
	return out
}

// FilterFields converts the filter definitions.
func (d *Definition) FilterFields() []datatable.FilterField {
	fields := make([]datatable.FilterField, 0, len(d.Filters))
	for _, f := range d.Filters {
		opts := make([]datatable.FilterOption, len(f.Options))
		for i, o := range f.Options {
			opts[i] = datatable.FilterOption{Label: o.Label, Value: o.Value}
		}
		fields = append(fields, datatable.FilterField{
			Key:              f.Key,
			Label:            f.Label,
			Options:          opts,
			IsSingle:         f.Single,
			MultiSelectChips: f.Chips,
		})
	}
	return fields
}

// TableConfig returns the source-independent part of the table
// configuration.
func (d *Definition) TableConfig(log *zap.Logger) datatable.Config {
	cfg := datatable.DefaultConfig()
	if d.PageSize > 0 {
		cfg.PageSize = d.PageSize
	}
	if d.PreserveSelectionOnRefresh != nil {
		cfg.PreserveSelectionOnRefresh = *d.PreserveSelectionOnRefresh
	}
	cfg.RowSelection = d.RowSelection
	cfg.Columns = d.ColumnSpecs()
	cfg.FilterFields = d.FilterFields()
	cfg.Logger = log

	if len(d.InitialFilters) > 0 {
		cfg.InitialFilters = datatable.Filters{}
		for k, v := range d.InitialFilters {
			cfg.InitialFilters[k] = v
		}
	}
	return cfg
}

var typeNames = map[string]datatable.DataType{
	"":          datatable.TypeString,
	"string":    datatable.TypeString,
	"text":      datatable.TypeString,
	"int":       datatable.TypeInt,
	"integer":   datatable.TypeInt,
	"float":     datatable.TypeFloat,
	"number":    datatable.TypeFloat,
	"bool":      datatable.TypeBool,
	"boolean":   datatable.TypeBool,
	"date":      datatable.TypeDate,
	"timestamp": datatable.TypeTimestamp,
	"decimal":   datatable.TypeDecimal,
}

func parseType(s string) (datatable.DataType, error) {
	t, ok := typeNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown column type %q", ErrInvalidDefinition, s)
	}
	return t, nil
}

func parseSticky(s string) (datatable.StickySide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return datatable.StickyNone, nil
	case "left":
		return datatable.StickyLeft, nil
	case "right":
		return datatable.StickyRight, nil
	default:
		return 0, fmt.Errorf("%w: unknown sticky side %q", ErrInvalidDefinition, s)
	}
}

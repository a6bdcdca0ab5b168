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

package arrow

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"

	"datagrid/datatable"
	"datagrid/internal/cell"
)

// ErrUnsupportedFile is returned for files whose type cannot be detected.
var ErrUnsupportedFile = errors.New("unsupported file type")

// FileType represents the type of data file
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeCSV
	FileTypeParquet
	FileTypeJSON
	FileTypeDeltaSharingProfile
)

func (f FileType) String() string {
	switch f {
	case FileTypeCSV:
		return "CSV"
	case FileTypeParquet:
		return "Parquet"
	case FileTypeJSON:
		return "JSON"
	case FileTypeDeltaSharingProfile:
		return "Delta Sharing profile"
	default:
		return "unknown"
	}
}

// DetectFileType determines the type of file based on extension and content
func DetectFileType(filePath string, content []byte) FileType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".tsv":
		return FileTypeCSV
	case ".parquet":
		return FileTypeParquet
	case ".json", ".share", ".txt":
		if IsDeltaSharingProfile(content) {
			return FileTypeDeltaSharingProfile
		}
		return FileTypeJSON
	default:
		return FileTypeUnknown
	}
}

// IsDeltaSharingProfile reports whether content looks like a Delta Sharing
// profile (shareCredentialsVersion, endpoint and bearerToken present).
func IsDeltaSharingProfile(content []byte) bool {
	var profile map[string]any
	if err := json.Unmarshal(content, &profile); err != nil {
		return false
	}
	_, hasVersion := profile["shareCredentialsVersion"]
	_, hasEndpoint := profile["endpoint"]
	_, hasBearerToken := profile["bearerToken"]
	return hasVersion && hasEndpoint && hasBearerToken
}

// DetectSeparator picks the most frequent of , ; tab | on the first line.
// It defaults to comma.
func DetectSeparator(r io.Reader) rune {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return ','
	}
	firstLine := scanner.Text()

	detected, maxCount := ',', 0
	for _, sep := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(firstLine, string(sep)); n > maxCount {
			detected, maxCount = sep, n
		}
	}
	return detected
}

// SeparatorName returns a human-readable name for the separator
func SeparatorName(sep rune) string {
	switch sep {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	default:
		return string(sep)
	}
}

// LoadInfo describes a loaded file for status messages.
type LoadInfo struct {
	Name      string
	Type      FileType
	Separator rune
	Size      int64
}

// String formats the info the way the status bar shows it.
func (i LoadInfo) String() string {
	s := fmt.Sprintf("%s file: %s", i.Type, i.Name)
	if i.Type == FileTypeCSV {
		s += ", separator: " + SeparatorName(i.Separator)
	}
	if i.Type == FileTypeParquet {
		s += fmt.Sprintf(", %.2f MB", float64(i.Size)/(1024*1024))
	}
	return s
}

// LoadFile reads a CSV, Parquet or JSON file into memory.
func LoadFile(ctx context.Context, filePath string) (*Dataset, LoadInfo, error) {
	info := LoadInfo{Name: filepath.Base(filePath)}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, info, fmt.Errorf("failed to read file: %w", err)
	}
	info.Size = int64(len(content))
	info.Type = DetectFileType(filePath, content)

	var ds *Dataset
	switch info.Type {
	case FileTypeCSV:
		info.Separator = DetectSeparator(bytes.NewReader(content))
		ds, err = ReadCSV(bytes.NewReader(content), info.Separator)
	case FileTypeParquet:
		ds, err = ReadParquet(ctx, bytes.NewReader(content))
	case FileTypeJSON:
		ds, err = ReadJSON(content)
	default:
		return nil, info, fmt.Errorf("%w: %s", ErrUnsupportedFile, info.Name)
	}
	if err != nil {
		return nil, info, err
	}
	return ds, info, nil
}

// ReadCSV reads a CSV stream with a header line, inferring column types.
func ReadCSV(r io.Reader, separator rune) (*Dataset, error) {
	rdr := csv.NewInferringReader(r,
		csv.WithComma(separator),
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
		csv.WithChunk(1024),
	)
	defer rdr.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("failed to load CSV file: %w", err)
	}
	if len(recs) == 0 {
		return &Dataset{Rows: []datatable.Row{}}, nil
	}

	tbl := array.NewTableFromRecords(recs[0].Schema(), recs)
	defer tbl.Release()
	return FromTable(tbl)
}

// ReadParquet reads a whole Parquet file through the Arrow reader.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*Dataset, error) {
	pf, err := file.NewParquetReader(r, file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	defer table.Release()

	return FromTable(table)
}

// ReadJSON parses an array of objects, or a single object, into rows.
// Columns are the union of keys in sorted order.
func ReadJSON(content []byte) (*Dataset, error) {
	var data []map[string]any
	if err := decodeJSON(content, &data); err != nil {
		var single map[string]any
		if err := decodeJSON(content, &single); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		data = []map[string]any{single}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("JSON file is empty or has no records")
	}

	keys := map[string]bool{}
	rows := make([]datatable.Row, len(data))
	for i, m := range data {
		for k := range m {
			keys[k] = true
		}
		rows[i] = datatable.Row(m)
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]datatable.ColumnSpec, len(names))
	for i, k := range names {
		cols[i] = datatable.ColumnSpec{Key: k, Label: k, Sortable: true, Type: jsonType(rows, k)}
	}
	return &Dataset{Columns: cols, Rows: rows}, nil
}

func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

// jsonType reports TypeFloat for columns whose values are all numbers.
func jsonType(rows []datatable.Row, key string) datatable.DataType {
	seen := false
	for _, r := range rows {
		switch v := r[key].(type) {
		case nil:
		case string:
			return datatable.TypeString
		case bool:
			return datatable.TypeBool
		default:
			if _, ok := cell.Number(v); !ok {
				return datatable.TypeString
			}
			seen = true
		}
	}
	if seen {
		return datatable.TypeFloat
	}
	return datatable.TypeString
}

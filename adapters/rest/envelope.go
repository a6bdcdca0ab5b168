package rest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"datagrid/datatable"
)

// flexInt accepts JSON numbers, numeric strings and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("pagination field %s: %w", b, err)
	}
	*f = flexInt(n)
	return nil
}

// pagination covers both the nested block and the flat variant.
type pagination struct {
	CurrentPage flexInt `json:"current_page"`
	LastPage    flexInt `json:"last_page"`
	TotalPages  flexInt `json:"total_pages"`
	Total       flexInt `json:"total"`
	PerPage     flexInt `json:"per_page"`
}

// envelope is the response shape of the backend:
//
//	{"data": [...], "pagination": {"current_page": 1, "last_page": 3, "total": 25, "per_page": 10}}
//	{"data": [...], "current_page": 1, "last_page": 3, "total": 25, "per_page": 10}
//	{"data": {"data": [...], "current_page": 1, ...}}
//	{"error": "message", "data": null}
type envelope struct {
	pagination
	Pagination *pagination     `json:"pagination"`
	Meta       *pagination     `json:"meta"`
	Data       json.RawMessage `json:"data"`
	Error      json.RawMessage `json:"error"`
	Message    string          `json:"message"`
}

// decodeEnvelope turns a response body into a FetchResult.
func decodeEnvelope(body []byte) (*datatable.FetchResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		rows, err := decodeRows(body)
		if err != nil {
			return nil, err
		}
		return &datatable.FetchResult{Data: rows}, nil
	}

	var env envelope
	if err := unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg, failed := backendError(env); failed {
		return nil, fmt.Errorf("%w: %s", ErrBackend, msg)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) > 0 && data[0] == '{' {
		// Paginator nested under "data".
		return decodeEnvelope(data)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}

	p := env.pagination
	switch {
	case env.Pagination != nil:
		p = *env.Pagination
	case env.Meta != nil:
		p = *env.Meta
	}
	pages := int(p.LastPage)
	if pages == 0 {
		pages = int(p.TotalPages)
	}
	return &datatable.FetchResult{
		Data:         rows,
		TotalPages:   pages,
		TotalRecords: int(p.Total),
		CurrentPage:  int(p.CurrentPage),
		PageSize:     int(p.PerPage),
	}, nil
}

func decodeRows(data []byte) ([]datatable.Row, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var rows []datatable.Row
	if err := unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	return rows, nil
}

// backendError interprets the {error, data} convention: error may be a
// message, an object with a message, or a boolean flag.
func backendError(env envelope) (string, bool) {
	raw := bytes.TrimSpace(env.Error)
	switch string(raw) {
	case "", "null", "false", `""`:
		return "", false
	case "true":
		if env.Message != "" {
			return env.Message, true
		}
		return "request failed", true
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg, true
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message, true
	}
	return string(raw), true
}

func unmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

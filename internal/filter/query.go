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

package filter

import (
	"errors"
	"fmt"
	"strings"

	"datagrid/internal/cell"
)

// ErrUnknownColumn is returned when a query names a column the parser does not know.
var ErrUnknownColumn = errors.New("unknown column")

// QueryParser parses free-text search expressions such as
// `status = active AND amount > 100`.
type QueryParser struct {
	columnMap map[string]string // lower-cased name -> row key
}

// CompOp is a comparison operator.
type CompOp int

const (
	OpEqual CompOp = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpContains
)

var opSymbols = []struct {
	op     CompOp
	symbol string
}{
	{OpGreaterEqual, ">="},
	{OpLessEqual, "<="},
	{OpNotEqual, "!="},
	{OpEqual, "="},
	{OpGreater, ">"},
	{OpLess, "<"},
	{OpContains, "~"},
}

// String returns the operator symbol.
func (op CompOp) String() string {
	for _, s := range opSymbols {
		if s.op == op {
			return s.symbol
		}
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Expression is a single comparison. An empty Key means a contains search
// over every column.
type Expression struct {
	Key      string
	Operator CompOp
	Value    string
}

// Query is a left-to-right chain of expressions joined by logic operators.
type Query struct {
	Expressions []Expression
	LogicOps    []LogicOp // Operations between expressions
}

// NewQueryParser creates a parser that resolves column names case-insensitively
// against keys.
func NewQueryParser(keys []string) *QueryParser {
	columnMap := make(map[string]string, len(keys))
	for _, k := range keys {
		columnMap[strings.ToLower(k)] = k
	}
	return &QueryParser{columnMap: columnMap}
}

// ParseQuery parses a query string. A blank string yields a nil query.
func (qp *QueryParser) ParseQuery(queryStr string) (*Query, error) {
	if strings.TrimSpace(queryStr) == "" {
		return nil, nil
	}

	query := &Query{}
	for _, part := range splitByLogicOps(queryStr) {
		if part.isOperator {
			if part.text == "AND" {
				query.LogicOps = append(query.LogicOps, LogicAND)
			} else {
				query.LogicOps = append(query.LogicOps, LogicOR)
			}
			continue
		}
		expr, err := qp.parseExpression(part.text)
		if err != nil {
			return nil, err
		}
		query.Expressions = append(query.Expressions, expr)
	}

	if len(query.Expressions) == 0 || len(query.LogicOps) != len(query.Expressions)-1 {
		return nil, fmt.Errorf("invalid query %q: mismatched expressions and operators", queryStr)
	}
	return query, nil
}

type queryPart struct {
	text       string
	isOperator bool
}

// splitByLogicOps splits on whitespace-delimited AND/OR keeping the operators.
func splitByLogicOps(query string) []queryPart {
	var parts []queryPart
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, queryPart{text: s})
		}
		current.Reset()
	}

	for i := 0; i < len(query); {
		matched := false
		for _, kw := range []string{"AND", "OR"} {
			end := i + len(kw)
			if end > len(query) || !strings.EqualFold(query[i:end], kw) {
				continue
			}
			if (i == 0 || isWhitespace(query[i-1])) && (end == len(query) || isWhitespace(query[end])) {
				flush()
				parts = append(parts, queryPart{text: kw, isOperator: true})
				i = end
				matched = true
				break
			}
		}
		if !matched {
			current.WriteByte(query[i])
			i++
		}
	}
	flush()
	return parts
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// parseExpression parses a single expression like "column = value".
func (qp *QueryParser) parseExpression(exprStr string) (Expression, error) {
	exprStr = strings.TrimSpace(exprStr)

	for _, opInfo := range opSymbols {
		idx := strings.Index(exprStr, opInfo.symbol)
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(exprStr[:idx])
		key, ok := qp.columnMap[strings.ToLower(name)]
		if !ok {
			return Expression{}, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		return Expression{
			Key:      key,
			Operator: opInfo.op,
			Value:    strings.Trim(strings.TrimSpace(exprStr[idx+len(opInfo.symbol):]), "\"'"),
		}, nil
	}

	return Expression{Operator: OpContains, Value: exprStr}, nil
}

// Match implements Predicate.
func (q *Query) Match(row map[string]any) bool {
	if q == nil || len(q.Expressions) == 0 {
		return true
	}

	result := q.Expressions[0].Match(row)
	for i, op := range q.LogicOps {
		next := q.Expressions[i+1].Match(row)
		if op == LogicAND {
			result = result && next
		} else {
			result = result || next
		}
	}
	return result
}

// Description implements Predicate.
func (q *Query) Description() string {
	if q == nil || len(q.Expressions) == 0 {
		return "empty query"
	}
	var sb strings.Builder
	for i, e := range q.Expressions {
		if i > 0 {
			sb.WriteString(" " + q.LogicOps[i-1].String() + " ")
		}
		sb.WriteString(e.Description())
	}
	return sb.String()
}

// Description returns the expression in query syntax.
func (e Expression) Description() string {
	if e.Key == "" {
		return "* ~ " + e.Value
	}
	return e.Key + " " + e.Operator.String() + " " + e.Value
}

// Match evaluates the expression against a row.
func (e Expression) Match(row map[string]any) bool {
	if e.Key == "" {
		return (&ContainsFilter{Term: e.Value}).Match(row)
	}

	raw, ok := row[e.Key]
	if !ok || raw == nil {
		return e.Operator == OpNotEqual
	}
	text := cell.Format(raw)

	switch e.Operator {
	case OpEqual:
		return strings.EqualFold(text, e.Value)
	case OpNotEqual:
		return !strings.EqualFold(text, e.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(e.Value))
	}

	cmp := cell.Compare(raw, e.Value)
	switch e.Operator {
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLessEqual:
		return cmp <= 0
	}
	return false
}

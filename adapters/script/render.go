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

// Package script compiles column render functions from Go source with the
// yaegi interpreter.
//
// A script is the body of
//
//	func Render(row map[string]interface{}) string
//
// with fmt, strings, strconv, math and time imported, for example
//
//	return strings.ToUpper(fmt.Sprint(row["name"]))
package script

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"datagrid/datatable"
)

// ErrScript is returned when a script does not compile or has the wrong shape.
var ErrScript = errors.New("invalid render script")

// RenderError is the cell text shown when a script panics.
const RenderError = "#ERR"

const wrapper = `package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	_ = fmt.Sprint
	_ = math.Round
	_ = strconv.Itoa
	_ = strings.ToUpper
	_ = time.Now
)

func Render(row map[string]interface{}) string {
%s
}
`

// RenderTimeout bounds a single render call. A script that runs past it
// renders as RenderError, and so does every later call of that function:
// the interpreter cannot be interrupted, so the runaway call is abandoned.
const RenderTimeout = 250 * time.Millisecond

// Compile turns a script body into a render function. The returned
// function is safe for concurrent use; a panic inside the script renders as
// RenderError. Each call is bounded by RenderTimeout.
func Compile(ctx context.Context, body string, log *zap.Logger) (datatable.RenderFunc, error) {
	return CompileWithTimeout(ctx, body, RenderTimeout, log)
}

// CompileWithTimeout is Compile with a custom per-call bound.
func CompileWithTimeout(ctx context.Context, body string, timeout time.Duration, log *zap.Logger) (datatable.RenderFunc, error) {
	if log == nil {
		log = zap.NewNop()
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("error loading stdlib: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, fmt.Sprintf(wrapper, body)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	v, err := i.EvalWithContext(ctx, "render.Render")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	fn, ok := v.Interface().(func(map[string]interface{}) string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type %s", ErrScript, v.Type())
	}

	r := &runner{fn: fn, timeout: timeout, log: log}
	return r.render, nil
}

// runner serialises calls into one interpreted function.
type runner struct {
	mu      sync.Mutex
	fn      func(map[string]interface{}) string
	timeout time.Duration
	log     *zap.Logger
	stuck   atomic.Bool
}

func (r *runner) render(row datatable.Row) string {
	if r.stuck.Load() {
		return RenderError
	}
	done := make(chan string, 1)
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		done <- r.call(row)
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out
	case <-timer.C:
		if !r.stuck.Swap(true) {
			r.log.Warn("render script timed out, disabling it", zap.Duration("timeout", r.timeout))
		}
		return RenderError
	}
}

func (r *runner) call(row datatable.Row) (out string) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("render script panicked", zap.Any("panic", p))
			out = RenderError
		}
	}()
	return r.fn(map[string]interface{}(row))
}

// Bind compiles scripts keyed by column and attaches them as the columns'
// render functions. Keys not present in columns are appended as computed,
// non-sortable columns.
func Bind(ctx context.Context, columns []datatable.ColumnSpec, scripts map[string]string, log *zap.Logger) ([]datatable.ColumnSpec, error) {
	out := make([]datatable.ColumnSpec, len(columns))
	copy(out, columns)

	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.Key] = i
	}

	for _, key := range sortedKeys(scripts) {
		render, err := Compile(ctx, scripts[key], log)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", key, err)
		}
		if i, ok := index[key]; ok {
			out[i].Render = render
			continue
		}
		out = append(out, datatable.ColumnSpec{Key: key, Label: key, Render: render})
		index[key] = len(out) - 1
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

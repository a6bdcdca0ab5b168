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

// Package rest provides table fetch functions backed by a paginated REST
// resource (GET /resource?page=&per_page=&<filters>).
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"datagrid/datatable"
)

var (
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("unexpected HTTP status")

	// ErrBackend is returned when the backend reports an error in the body.
	ErrBackend = errors.New("backend error")

	// ErrMalformed is returned when the body cannot be decoded.
	ErrMalformed = errors.New("malformed response")
)

// Config describes one REST resource.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/v1.
	BaseURL string
	// Resource is the path below BaseURL, e.g. "salesman-loads".
	Resource string

	PageParam         string
	PerPageParam      string
	SearchParam       string
	SearchColumnParam string
	SortParam         string
	OrderParam        string

	// Headers are sent with every request (e.g. Authorization).
	Headers map[string]string

	// TimeoutSeconds bounds each request (default: 60 seconds if <= 0).
	TimeoutSeconds int

	// RequestsPerSecond limits the request rate; zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// DefaultConfig returns the parameter names used by the dashboard backend.
func DefaultConfig() Config {
	return Config{
		PageParam:         "page",
		PerPageParam:      "per_page",
		SearchParam:       "search",
		SearchColumnParam: "column",
		SortParam:         "sort_by",
		OrderParam:        "sort_order",
		TimeoutSeconds:    60,
	}
}

// Client issues table fetches against one resource.
type Client struct {
	cfg      Config
	endpoint *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	group    singleflight.Group
	log      *zap.Logger
}

// New validates cfg and creates a client.
func New(cfg Config) (*Client, error) {
	def := DefaultConfig()
	defaultString(&cfg.PageParam, def.PageParam)
	defaultString(&cfg.PerPageParam, def.PerPageParam)
	defaultString(&cfg.SearchParam, def.SearchParam)
	defaultString(&cfg.SearchColumnParam, def.SearchColumnParam)
	defaultString(&cfg.SortParam, def.SortParam)
	defaultString(&cfg.OrderParam, def.OrderParam)

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Resource, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing scheme or host", base.String())
	}

	c := &Client{
		cfg:      cfg,
		endpoint: base,
		http:     cfg.HTTPClient,
		log:      cfg.Logger,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return c, nil
}

// API returns the client's fetch functions for a table configuration.
func (c *Client) API() datatable.API {
	return datatable.API{
		List:     c.List,
		FilterBy: c.FilterBy,
		Search:   c.Search,
	}
}

// List fetches an unfiltered page, passing any filters as query parameters.
func (c *Client) List(ctx context.Context, page, pageSize int, filters datatable.Filters) (*datatable.FetchResult, error) {
	q := c.pageQuery(page, pageSize)
	addFilters(q, filters)
	return c.fetch(ctx, q)
}

// FilterBy fetches a page matching the filters and sort of payload.
func (c *Client) FilterBy(ctx context.Context, payload datatable.FilterPayload, pageSize int) (*datatable.FetchResult, error) {
	q := c.pageQuery(payload.Page, pageSize)
	addFilters(q, payload.Filters)
	if payload.Sort.IsSorted() {
		q.Set(c.cfg.SortParam, payload.Sort.Column)
		q.Set(c.cfg.OrderParam, payload.Sort.Direction.Param())
	}
	return c.fetch(ctx, q)
}

// Search fetches a page of free-text search results.
func (c *Client) Search(ctx context.Context, query datatable.SearchQuery, pageSize int) (*datatable.FetchResult, error) {
	q := c.pageQuery(query.Page, pageSize)
	q.Set(c.cfg.SearchParam, query.Text)
	if query.Column != "" {
		q.Set(c.cfg.SearchColumnParam, query.Column)
	}
	return c.fetch(ctx, q)
}

func (c *Client) pageQuery(page, pageSize int) url.Values {
	q := url.Values{}
	q.Set(c.cfg.PageParam, strconv.Itoa(max(page, 1)))
	q.Set(c.cfg.PerPageParam, strconv.Itoa(pageSize))
	return q
}

func addFilters(q url.Values, filters datatable.Filters) {
	for _, k := range filters.Keys() {
		if v := filters.Text(k); v != "" {
			q.Set(k, v)
		}
	}
}

// fetch performs the GET. Identical concurrent requests share one round trip;
// each caller still returns as soon as its own context ends.
func (c *Client) fetch(ctx context.Context, q url.Values) (*datatable.FetchResult, error) {
	u := *c.endpoint
	u.RawQuery = q.Encode()
	target := u.String()

	ch := c.group.DoChan(target, func() (any, error) {
		rctx, cancel := timeoutContext(context.WithoutCancel(ctx), c.cfg.TimeoutSeconds)
		defer cancel()
		return c.get(rctx, target)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*datatable.FetchResult)
		return &res, nil
	}
}

func (c *Client) get(ctx context.Context, target string) (*datatable.FetchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debug("fetched page",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if _, derr := decodeEnvelope(body); errors.Is(derr, ErrBackend) {
			return nil, fmt.Errorf("%w %d: %w", ErrStatus, resp.StatusCode, derr)
		}
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
	return decodeEnvelope(body)
}

// timeoutContext derives a context with a configurable timeout
// (default: 60 seconds if <= 0).
func timeoutContext(parent context.Context, timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return context.WithTimeout(parent, time.Duration(timeoutSeconds)*time.Second)
}

func defaultString(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

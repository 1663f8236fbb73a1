package caselaw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTable is the table holding decision records.
	DefaultTable = "decisions"

	// DefaultPageSize matches the default max-rows setting of hosted PostgREST.
	DefaultPageSize = 1000

	restPath = "/rest/v1/"
)

// Client is a client for a Supabase (PostgREST) table of decision records.
type Client struct {
	baseURL    string
	apiKey     string
	table      string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithTable sets the table name.
func WithTable(table string) Option {
	return func(client *Client) {
		if table != "" {
			client.table = table
		}
	}
}

// WithPageSize sets how many rows ListAllRecords fetches per request.
func WithPageSize(n int) Option {
	return func(client *Client) {
		if n > 0 {
			client.pageSize = n
		}
	}
}

// WithRateLimit paces requests to at most rps per second with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(client *Client) {
		if rps <= 0 {
			client.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new record store client.
// baseURL is the project URL (e.g., "https://xyz.supabase.co").
// apiKey is the project API key.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		table:    DefaultTable,
		pageSize: DefaultPageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Table returns the table the client reads and writes.
func (c *Client) Table() string {
	return c.table
}

// request describes a single call against the table endpoint.
type request struct {
	method string
	url    string
	body   interface{}
	prefer string
}

// wrapError wraps an error with an operation name if it's an API error.
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	apiErr, ok := err.(*Error)
	if ok {
		apiErr.Op = op
		return apiErr
	}
	return fmt.Errorf("%s: %w", op, err)
}

// buildURL constructs the table URL with select, order and paging parameters plus
// any row filters (PostgREST syntax, e.g. id=in.(1,2)).
func (c *Client) buildURL(opts *ListOptions, filters url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = restPath + c.table

	q := url.Values{}
	for key, values := range filters {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if opts != nil {
		if len(opts.Columns) > 0 {
			q.Set("select", strings.Join(opts.Columns, ","))
		}
		if opts.Ordering != "" {
			q.Set("order", opts.Ordering)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			q.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// doRequestWithURL performs an HTTP request using a full URL and decodes the JSON response.
// It returns the response headers so callers can read Content-Range.
func (c *Client) doRequestWithURL(ctx context.Context, r request, result interface{}) (http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, newAPIError(resp.StatusCode, data)
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return resp.Header, fmt.Errorf("decode response: %w", err)
		}
	}

	return resp.Header, nil
}

// newAPIError builds an *Error from a PostgREST error body, falling back to the raw body.
func newAPIError(status int, body []byte) *Error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg := payload.Message
		if payload.Details != "" {
			msg += ": " + payload.Details
		}
		return &Error{StatusCode: status, Message: msg, Code: payload.Code}
	}
	return &Error{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

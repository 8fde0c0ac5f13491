package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the public ESI root.
const DefaultBaseURL = "https://esi.evetech.net/latest"

// StatusError is returned for any non-200 ESI response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ESI %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries the given ESI status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration // per request, including body decode
	MaxConcurrency int
}

// Client is a rate-limited ESI HTTP client.
type Client struct {
	http       *http.Client
	sem        chan struct{}
	baseURL    string
	userAgent  string
	timeout    time.Duration
	orderCache *OrderCache
}

// NewClient creates an ESI client. Zero options fall back to the public
// endpoint, a 15s request timeout and 20 concurrent requests.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "eve-warehouse/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 20
	}
	return &Client{
		// Backstop only; each request carries its own deadline.
		http:       &http.Client{Timeout: 2 * opts.Timeout},
		sem:        make(chan struct{}, opts.MaxConcurrency),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		orderCache: NewOrderCache(nil),
	}
}

func (c *Client) endpoint(path string, q url.Values) string {
	v := url.Values{}
	for k, vals := range q {
		v[k] = append([]string(nil), vals...)
	}
	v.Set("datasource", "tranquility")
	return c.baseURL + path + "?" + v.Encode()
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() { <-c.sem }

// do performs one GET and decodes a 200 body into dst. token may be empty.
func (c *Client) do(ctx context.Context, rawURL, token string, dst interface{}) (http.Header, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return nil, fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return resp.Header, nil
}

// GetJSON fetches a public endpoint path (e.g. "/status/") into dst.
func (c *Client) GetJSON(ctx context.Context, path string, q url.Values, dst interface{}) error {
	_, err := c.do(ctx, c.endpoint(path, q), "", dst)
	return err
}

// HealthCheck pings ESI to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	var status struct {
		Players int `json:"players"`
	}
	return c.GetJSON(ctx, "/status/", nil, &status) == nil
}

// getPages fetches page 1, reads X-Pages, then fetches the remaining pages
// concurrently. Any failed page fails the whole call; a partial listing would
// silently understate holdings.
func getPages[T any](ctx context.Context, c *Client, path string, q url.Values, token string) ([]T, http.Header, error) {
	withPage := func(n int) url.Values {
		v := url.Values{}
		for k, vals := range q {
			v[k] = vals
		}
		v.Set("page", strconv.Itoa(n))
		return v
	}

	var first []T
	hdr, err := c.do(ctx, c.endpoint(path, withPage(1)), token, &first)
	if err != nil {
		return nil, nil, err
	}

	total := 1
	if p := hdr.Get("X-Pages"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 1 {
			total = n
		}
	}
	if total == 1 {
		return first, hdr, nil
	}

	pages := make([][]T, total)
	pages[0] = first
	g, gctx := errgroup.WithContext(ctx)
	for p := 2; p <= total; p++ {
		g.Go(func() error {
			var data []T
			if _, err := c.do(gctx, c.endpoint(path, withPage(p)), token, &data); err != nil {
				return fmt.Errorf("page %d: %w", p, err)
			}
			pages[p-1] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	n := 0
	for _, pg := range pages {
		n += len(pg)
	}
	all := make([]T, 0, n)
	for _, pg := range pages {
		all = append(all, pg...)
	}
	return all, hdr, nil
}

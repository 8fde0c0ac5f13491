// Package mokaam fetches yesterday's per-region market aggregates from mokaam.dk.
package mokaam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"eve-warehouse/internal/logger"
)

const DefaultBaseURL = "https://mokaam.dk/API"

// Client is a rate-limited mokaam.dk client.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	timeout   time.Duration

	mu      sync.Mutex
	lastReq time.Time
	minGap  time.Duration
}

// NewClient creates a client. Empty baseURL selects the public API; zero timeout means 10s.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: userAgent,
		timeout:   timeout,
		minGap:    200 * time.Millisecond,
	}
}

// ItemStat is one item's daily aggregate in a region.
type ItemStat struct {
	TypeID            int32
	AvgPriceYesterday float64
	VolYesterday      int64
}

type rawStat struct {
	TypeID            *number `json:"typeid"`
	AvgPriceYesterday number  `json:"avg_price_yesterday"`
	VolYesterday      number  `json:"vol_yesterday"`
}

// number accepts JSON numbers, numeric strings and null (as 0).
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("mokaam: bad number %q", b)
	}
	*n = number(v)
	return nil
}

// RegionStats fetches the aggregate for every item traded in a region. The payload is an
// object keyed by type id; malformed rows and rows without a usable typeid are dropped.
func (c *Client) RegionStats(ctx context.Context, regionID int32) ([]ItemStat, error) {
	q := url.Values{}
	q.Set("regionid", strconv.Itoa(int(regionID)))
	u := c.baseURL + "/market/all?" + q.Encode()

	var raw map[string]json.RawMessage
	if err := c.getJSON(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("mokaam region %d: %w", regionID, err)
	}

	out := make([]ItemStat, 0, len(raw))
	dropped := 0
	for _, msg := range raw {
		var r rawStat
		if err := json.Unmarshal(msg, &r); err != nil || r.TypeID == nil || *r.TypeID <= 0 {
			dropped++
			continue
		}
		out = append(out, ItemStat{
			TypeID:            int32(*r.TypeID),
			AvgPriceYesterday: float64(r.AvgPriceYesterday),
			VolYesterday:      int64(r.VolYesterday),
		})
	}
	if dropped > 0 {
		logger.Debug("Mokaam", fmt.Sprintf("region %d: dropped %d unusable rows", regionID, dropped))
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, dst interface{}) error {
	c.mu.Lock()
	if wait := c.minGap - time.Since(c.lastReq); wait > 0 {
		time.Sleep(wait)
	}
	c.lastReq = time.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		logger.Warn("Mokaam", "Rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mokaam %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"eve-warehouse/internal/cache"
	"eve-warehouse/internal/logger"
	"eve-warehouse/internal/mokaam"
)

// RegionStatsAPI reads daily per-region aggregates.
type RegionStatsAPI interface {
	RegionStats(ctx context.Context, regionID int32) ([]mokaam.ItemStat, error)
}

// Scanner builds cross-hub price deltas from daily aggregates. Raw per-hub stats are
// cached; filters are applied on every call.
type Scanner struct {
	api   RegionStatsAPI
	hubs  []Hub
	cache *cache.TTL[[]HubMarketStat]
}

// NewScanner creates a scanner. A nil cache disables caching.
func NewScanner(api RegionStatsAPI, hubs []Hub, c *cache.TTL[[]HubMarketStat]) *Scanner {
	if len(hubs) == 0 {
		hubs = DefaultHubs()
	}
	return &Scanner{api: api, hubs: hubs, cache: c}
}

// ScanResult is a filtered scan plus per-hub fetch errors.
type ScanResult struct {
	Opportunities []PriceDelta `json:"opportunities"`
	Hubs          []string     `json:"hubs"`
	Errors        []string     `json:"errors"`
}

// selectHubs resolves names into configured hubs, preserving configured order.
// An empty list selects every hub.
func (s *Scanner) selectHubs(names []string) ([]Hub, error) {
	if len(names) == 0 {
		return s.hubs, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		h, err := FindHub(s.hubs, n)
		if err != nil {
			return nil, err
		}
		want[h.Name] = true
	}
	var out []Hub
	for _, h := range s.hubs {
		if want[h.Name] {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Scanner) hubStats(ctx context.Context, hub Hub) ([]HubMarketStat, error) {
	load := func() ([]HubMarketStat, error) {
		rows, err := s.api.RegionStats(ctx, hub.RegionID)
		if err != nil {
			return nil, err
		}
		out := make([]HubMarketStat, 0, len(rows))
		for _, r := range rows {
			out = append(out, HubMarketStat{
				Hub:               hub.Name,
				TypeID:            r.TypeID,
				AvgPriceYesterday: r.AvgPriceYesterday,
				VolYesterday:      r.VolYesterday,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
		return out, nil
	}
	if s.cache == nil {
		return load()
	}
	stats, _, err := s.cache.GetOrCompute(hub.Name, load)
	return stats, err
}

// Stats fetches the selected hubs concurrently and concatenates them in hub order.
// A failed hub is reported and skipped; only a total failure is an error.
func (s *Scanner) Stats(ctx context.Context, hubNames []string) ([]HubMarketStat, []string, error) {
	hubs, err := s.selectHubs(hubNames)
	if err != nil {
		return nil, nil, err
	}

	perHub := make([][]HubMarketStat, len(hubs))
	errs := make([]error, len(hubs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, hub := range hubs {
		g.Go(func() error {
			stats, err := s.hubStats(gctx, hub)
			mu.Lock()
			perHub[i], errs[i] = stats, err
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	var all []HubMarketStat
	var msgs []string
	failed := 0
	for i, hub := range hubs {
		if errs[i] != nil {
			failed++
			msg := fmt.Sprintf("%s: %v", hub.Name, errs[i])
			logger.Warn("Scanner", msg)
			msgs = append(msgs, msg)
			continue
		}
		all = append(all, perHub[i]...)
	}
	if len(hubs) > 0 && failed == len(hubs) {
		return nil, msgs, fmt.Errorf("no market aggregates available: %s", strings.Join(msgs, "; "))
	}
	return all, msgs, nil
}

// Scan fetches, computes deltas and applies f. When f.Hubs is empty the scan covers
// every hub.
func (s *Scanner) Scan(ctx context.Context, f DeltaFilter, names ItemNames) (*ScanResult, error) {
	if names == nil {
		return nil, errors.New("item reference table not loaded")
	}
	hubs, err := s.selectHubs(f.Hubs)
	if err != nil {
		return nil, err
	}
	if len(f.Hubs) > 0 {
		f.Hubs = HubNames(hubs)
	}
	stats, msgs, err := s.Stats(ctx, f.Hubs)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []string{}
	}
	return &ScanResult{
		Opportunities: f.Apply(ComputeDeltas(stats, names)),
		Hubs:          HubNames(hubs),
		Errors:        msgs,
	}, nil
}

package engine

import (
	"math"
	"sort"
)

// HubMarketStat is one hub's daily aggregate for an item.
type HubMarketStat struct {
	Hub               string
	TypeID            int32
	AvgPriceYesterday float64
	VolYesterday      int64
}

// PriceDelta is the cross-hub price spread of one item.
type PriceDelta struct {
	TypeID          int32   `json:"typeid"`
	TypeName        string  `json:"typename"`
	MaxPrice        float64 `json:"max_price"`
	MinPrice        float64 `json:"min_price"`
	Delta           float64 `json:"delta"`
	DeltaPercentage float64 `json:"delta_percentage"`
	MaxTradeHub     string  `json:"max_tradehub"`
	MinTradeHub     string  `json:"min_tradehub"`
	MaxVolYesterday int64   `json:"max_vol_yesterday"`
	MinVolYesterday int64   `json:"min_vol_yesterday"`
}

// ComputeDeltas groups stats by type id in first-seen order and finds the most and least
// expensive hub of each item. On equal prices the earlier hub wins. Items without a
// resolvable name are dropped.
func ComputeDeltas(stats []HubMarketStat, names ItemNames) []PriceDelta {
	index := make(map[int32]int)
	var out []PriceDelta
	for _, s := range stats {
		i, ok := index[s.TypeID]
		if !ok {
			index[s.TypeID] = len(out)
			out = append(out, PriceDelta{
				TypeID:          s.TypeID,
				MaxPrice:        s.AvgPriceYesterday,
				MinPrice:        s.AvgPriceYesterday,
				MaxTradeHub:     s.Hub,
				MinTradeHub:     s.Hub,
				MaxVolYesterday: s.VolYesterday,
				MinVolYesterday: s.VolYesterday,
			})
			continue
		}
		d := &out[i]
		if s.AvgPriceYesterday > d.MaxPrice {
			d.MaxPrice, d.MaxTradeHub, d.MaxVolYesterday = s.AvgPriceYesterday, s.Hub, s.VolYesterday
		}
		if s.AvgPriceYesterday < d.MinPrice {
			d.MinPrice, d.MinTradeHub, d.MinVolYesterday = s.AvgPriceYesterday, s.Hub, s.VolYesterday
		}
	}

	kept := out[:0]
	for _, d := range out {
		name, ok := "", false
		if names != nil {
			name, ok = names.Lookup(d.TypeID)
		}
		if !ok {
			continue
		}
		d.TypeName = name
		d.Delta = d.MaxPrice - d.MinPrice
		if d.MinPrice != 0 {
			d.DeltaPercentage = roundTo(d.Delta/d.MinPrice*100, 2)
		}
		d.Delta = round2(d.Delta)
		kept = append(kept, d)
	}
	return kept
}

// DeltaFilter selects opportunities. Bounds are inclusive; a zero MaxVolume, MaxProfit
// or Limit means no ceiling, and MaxDeltaPct of +Inf leaves the band open.
type DeltaFilter struct {
	MinVolume   int64
	MaxVolume   int64
	MinDeltaPct float64
	MaxDeltaPct float64
	MinPrice    float64
	MinProfit   float64
	MaxProfit   float64
	// Hubs restricts both extremes to the listed hubs when more than one is given.
	Hubs  []string
	Limit int
}

// ReportFilter is the scheduled report's filter.
func ReportFilter() DeltaFilter {
	return DeltaFilter{MinVolume: 75, MinDeltaPct: 20, MaxDeltaPct: 1500, MinPrice: 100000}
}

// LiveFilter is the live endpoint's default: a wide band for client-side filtering.
func LiveFilter() DeltaFilter {
	return DeltaFilter{MinVolume: 75, MinDeltaPct: 0, MaxDeltaPct: math.Inf(1), MinPrice: 100000, Limit: 50}
}

func (f DeltaFilter) keep(d PriceDelta, hubs map[string]bool) bool {
	if d.MinVolYesterday < f.MinVolume || d.MaxVolYesterday < f.MinVolume {
		return false
	}
	if f.MaxVolume > 0 && (d.MinVolYesterday > f.MaxVolume || d.MaxVolYesterday > f.MaxVolume) {
		return false
	}
	if d.DeltaPercentage < f.MinDeltaPct || d.DeltaPercentage > f.MaxDeltaPct {
		return false
	}
	if d.MinPrice < f.MinPrice {
		return false
	}
	if d.Delta < f.MinProfit || (f.MaxProfit > 0 && d.Delta > f.MaxProfit) {
		return false
	}
	if hubs != nil && (!hubs[d.MinTradeHub] || !hubs[d.MaxTradeHub]) {
		return false
	}
	return true
}

// Apply filters deltas, sorts them by delta percentage descending and applies Limit.
// The input is not modified.
func (f DeltaFilter) Apply(deltas []PriceDelta) []PriceDelta {
	var hubs map[string]bool
	if len(f.Hubs) > 1 {
		hubs = make(map[string]bool, len(f.Hubs))
		for _, h := range f.Hubs {
			hubs[h] = true
		}
	}
	out := make([]PriceDelta, 0)
	for _, d := range deltas {
		if f.keep(d, hubs) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeltaPercentage > out[j].DeltaPercentage })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

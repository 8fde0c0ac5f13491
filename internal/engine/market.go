package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"eve-warehouse/internal/esi"
	"eve-warehouse/internal/logger"
)

const (
	avgBuyDepth   = 10
	topDepth      = 5
	defaultFanout = 8
)

// PriceSnapshot is the reduced view of one item's order book.
type PriceSnapshot struct {
	AvgBuyPrice     float64 `json:"avg_buy_price"`
	MinSellPrice    float64 `json:"min_sell_price"`
	BuyOrdersCount  int     `json:"buy_orders_count"`
	SellOrdersCount int     `json:"sell_orders_count"`
}

// MarketDepth describes the top of an order book.
type MarketDepth struct {
	BestBuyPrice       float64 `json:"best_buy_price"`
	BestSellPrice      float64 `json:"best_sell_price"`
	RealisticSellPrice float64 `json:"realistic_sell_price"`
	SpreadPercentage   float64 `json:"spread_percentage"`
	BuyVolumeTop5      int64   `json:"buy_volume_top5"`
	SellVolumeTop5     int64   `json:"sell_volume_top5"`
	TotalBuyOrders     int     `json:"total_buy_orders"`
	TotalSellOrders    int     `json:"total_sell_orders"`
}

// splitBook returns active buys sorted by price descending and active sells ascending.
func splitBook(orders []esi.MarketOrder) (buys, sells []esi.MarketOrder) {
	for _, o := range orders {
		if o.VolumeRemain <= 0 {
			continue
		}
		if o.IsBuyOrder {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}
	sort.SliceStable(buys, func(i, j int) bool { return buys[i].Price > buys[j].Price })
	sort.SliceStable(sells, func(i, j int) bool { return sells[i].Price < sells[j].Price })
	return buys, sells
}

// weightedPrice is Σ(price·volume)/Σ(volume) over orders; ok is false when volume is 0.
func weightedPrice(orders []esi.MarketOrder) (price float64, volume int64, ok bool) {
	var sum float64
	for _, o := range orders {
		sum += o.Price * float64(o.VolumeRemain)
		volume += int64(o.VolumeRemain)
	}
	if volume == 0 {
		return 0, 0, false
	}
	return sum / float64(volume), volume, true
}

// SummarizeOrders reduces an order book to a PriceSnapshot. Only orders with remaining
// volume count.
func SummarizeOrders(orders []esi.MarketOrder) PriceSnapshot {
	buys, sells := splitBook(orders)
	snap := PriceSnapshot{BuyOrdersCount: len(buys), SellOrdersCount: len(sells)}
	if avg, _, ok := weightedPrice(buys[:min(avgBuyDepth, len(buys))]); ok {
		snap.AvgBuyPrice = avg
	}
	if len(sells) > 0 {
		snap.MinSellPrice = sells[0].Price
	}
	return snap
}

// AnalyzeDepth computes best prices, top-5 volumes, spread and the realistic sell price
// (volume-weighted average of the five cheapest sells).
func AnalyzeDepth(orders []esi.MarketOrder) MarketDepth {
	buys, sells := splitBook(orders)
	d := MarketDepth{TotalBuyOrders: len(buys), TotalSellOrders: len(sells)}
	if len(buys) > 0 {
		d.BestBuyPrice = buys[0].Price
	}
	if len(sells) > 0 {
		d.BestSellPrice = sells[0].Price
	}
	for _, o := range buys[:min(topDepth, len(buys))] {
		d.BuyVolumeTop5 += int64(o.VolumeRemain)
	}
	top := sells[:min(topDepth, len(sells))]
	for _, o := range top {
		d.SellVolumeTop5 += int64(o.VolumeRemain)
	}
	if d.BestBuyPrice > 0 && d.BestSellPrice > 0 {
		d.SpreadPercentage = (d.BestSellPrice - d.BestBuyPrice) / d.BestSellPrice * 100
	}
	if len(sells) > 0 {
		if p, _, ok := weightedPrice(top); ok {
			d.RealisticSellPrice = p
		} else {
			d.RealisticSellPrice = d.BestSellPrice
		}
	}
	return d
}

// MarketEntry is the per-item result of a batch fetch. Err is set when the order book
// could not be read; the snapshot is then zero.
type MarketEntry struct {
	Snapshot PriceSnapshot
	Depth    *MarketDepth
	Err      error
}

// MarketFetcher reads order books for many items of one region in parallel.
type MarketFetcher struct {
	api         MarketAPI
	concurrency int
}

// NewMarketFetcher creates a fetcher that runs at most concurrency requests at once.
func NewMarketFetcher(api MarketAPI, concurrency int) *MarketFetcher {
	if concurrency <= 0 {
		concurrency = defaultFanout
	}
	return &MarketFetcher{api: api, concurrency: concurrency}
}

// Fetch returns one entry per type id. A failed item never fails the batch.
func (m *MarketFetcher) Fetch(ctx context.Context, regionID int32, typeIDs []int32, withDepth bool) map[int32]MarketEntry {
	out := make(map[int32]MarketEntry, len(typeIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, typeID := range typeIDs {
		g.Go(func() error {
			var entry MarketEntry
			orders, err := m.api.FetchRegionOrdersByType(gctx, regionID, typeID)
			if err != nil {
				logger.Warn("Market", fmt.Sprintf("orders for type %d in region %d: %v", typeID, regionID, err))
				entry.Err = err
			} else {
				entry.Snapshot = SummarizeOrders(orders)
				if withDepth {
					d := AnalyzeDepth(orders)
					entry.Depth = &d
				}
			}
			mu.Lock()
			out[typeID] = entry
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

package engine

import (
	"context"
	"sort"
)

// OrderSideTotals counts orders and their ISK value (price × remaining volume).
type OrderSideTotals struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// HubOrderBreakdown is the corporation's order book at one hub.
type HubOrderBreakdown struct {
	Hub        string          `json:"hub"`
	BuyOrders  OrderSideTotals `json:"buy_orders"`
	SellOrders OrderSideTotals `json:"sell_orders"`
}

// CorpOrderBreakdown summarizes corporation open orders.
type CorpOrderBreakdown struct {
	TotalOrders int                 `json:"total_orders"`
	BuyOrders   OrderSideTotals     `json:"buy_orders"`
	SellOrders  OrderSideTotals     `json:"sell_orders"`
	ByHub       []HubOrderBreakdown `json:"by_hub"`
	// OtherLocations counts orders outside the configured hubs.
	OtherLocations OrderSideTotals `json:"other_locations"`
	// InferredSide counts orders whose side was guessed from escrow or range.
	InferredSide int     `json:"inferred_side"`
	Orders       []Order `json:"orders"`
}

// BreakdownOrders aggregates orders per side and per hub. Hubs keep their configured
// order; orders are listed by ISK value descending.
func BreakdownOrders(orders []Order, hubs []Hub) CorpOrderBreakdown {
	b := CorpOrderBreakdown{TotalOrders: len(orders), ByHub: make([]HubOrderBreakdown, len(hubs))}
	idx := make(map[int64]int, len(hubs))
	for i, h := range hubs {
		b.ByHub[i].Hub = h.Name
		idx[h.StationID] = i
	}

	for _, o := range orders {
		value := o.Price * float64(o.VolumeRemain)
		side := &b.SellOrders
		if o.IsBuyOrder {
			side = &b.BuyOrders
		}
		side.Count++
		side.Value += value

		loc := &b.OtherLocations
		if i, ok := idx[o.LocationID]; ok {
			loc = &b.ByHub[i].SellOrders
			if o.IsBuyOrder {
				loc = &b.ByHub[i].BuyOrders
			}
		}
		loc.Count++
		loc.Value += value

		if o.Inferred {
			b.InferredSide++
		}
	}

	b.BuyOrders.Value = round2(b.BuyOrders.Value)
	b.SellOrders.Value = round2(b.SellOrders.Value)
	b.OtherLocations.Value = round2(b.OtherLocations.Value)
	for i := range b.ByHub {
		b.ByHub[i].BuyOrders.Value = round2(b.ByHub[i].BuyOrders.Value)
		b.ByHub[i].SellOrders.Value = round2(b.ByHub[i].SellOrders.Value)
	}

	b.Orders = make([]Order, len(orders))
	copy(b.Orders, orders)
	sort.SliceStable(b.Orders, func(i, j int) bool { return b.Orders[i].ISKValue > b.Orders[j].ISKValue })
	return b
}

// CorporationOrders fetches corporation orders and breaks them down by hub.
func (w *Warehouse) CorporationOrders(ctx context.Context) (CorpOrderBreakdown, error) {
	if !w.accounts.IsAuthenticated() {
		return CorpOrderBreakdown{}, ErrNotAuthenticated
	}
	orders, err := w.aggregator.FetchOrders(ctx, SourceCorporation)
	if err != nil {
		return CorpOrderBreakdown{}, err
	}
	return BreakdownOrders(orders, w.hubs), nil
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eve-warehouse/internal/esi"
)

// Source selects whose assets, orders and transactions are read.
type Source string

const (
	SourceCharacter   Source = "character"
	SourceCorporation Source = "corporation"
)

// ParseSource accepts "character" (default when empty) or "corporation".
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SourceCharacter):
		return SourceCharacter, nil
	case string(SourceCorporation):
		return SourceCorporation, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Asset is an item stack sitting in a hub station.
type Asset struct {
	TypeID     int32  `json:"type_id"`
	Quantity   int64  `json:"quantity"`
	LocationID int64  `json:"location_id"`
	TradeHub   string `json:"trade_hub"`
	Source     Source `json:"source"`
}

// Order is an open market order owned by the character or corporation.
type Order struct {
	OrderID      int64     `json:"order_id"`
	TypeID       int32     `json:"type_id"`
	LocationID   int64     `json:"location_id"`
	Price        float64   `json:"price"`
	VolumeRemain int64     `json:"volume_remain"`
	VolumeTotal  int64     `json:"volume_total"`
	IsBuyOrder   bool      `json:"is_buy_order"`
	Issued       time.Time `json:"issued"`
	Duration     int       `json:"duration"`
	Range        string    `json:"range,omitempty"`
	Escrow       float64   `json:"escrow,omitempty"`
	// Inferred is set when IsBuyOrder was guessed because the row lacked the flag.
	Inferred bool    `json:"inferred,omitempty"`
	ISKValue float64 `json:"isk_value"`
}

// Aggregator fetches hub-located assets and open orders.
type Aggregator struct {
	api      AccountAPI
	stations map[int64]Hub
	division int
}

// NewAggregator creates an aggregator over hubs. division selects the corporation wallet
// division used for corporation transactions.
func NewAggregator(api AccountAPI, hubs []Hub, division int) *Aggregator {
	return &Aggregator{api: api, stations: hubByStation(hubs), division: division}
}

// FetchAssets returns assets located in a hub station, tagged with hub and source.
// Unauthenticated clients get an empty result.
func (a *Aggregator) FetchAssets(ctx context.Context, src Source) ([]Asset, error) {
	if !a.api.IsAuthenticated() {
		return []Asset{}, nil
	}
	var rows []esi.Asset
	var err error
	switch src {
	case SourceCharacter:
		rows, err = a.api.CharacterAssets(ctx)
	case SourceCorporation:
		rows, err = a.api.CorporationAssets(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s assets: %w", src, err)
	}

	out := make([]Asset, 0, len(rows))
	for _, r := range rows {
		hub, ok := a.stations[r.LocationID]
		if !ok {
			continue
		}
		out = append(out, Asset{
			TypeID:     r.TypeID,
			Quantity:   r.Quantity,
			LocationID: r.LocationID,
			TradeHub:   hub.Name,
			Source:     src,
		})
	}
	return out, nil
}

// FetchOrders returns open market orders for src. Corporation orders come from the
// corporation endpoint; rows without is_buy_order are classified by escrow and range
// and marked Inferred.
func (a *Aggregator) FetchOrders(ctx context.Context, src Source) ([]Order, error) {
	if !a.api.IsAuthenticated() {
		return []Order{}, nil
	}
	switch src {
	case SourceCharacter:
		rows, err := a.api.CharacterOrders(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch character orders: %w", err)
		}
		out := make([]Order, 0, len(rows))
		for _, r := range rows {
			out = append(out, newOrder(r.OrderID, r.TypeID, r.LocationID, r.Price,
				r.VolumeRemain, r.VolumeTotal, r.IsBuyOrder, r.Issued, r.Duration, r.Range, r.Escrow))
		}
		return out, nil
	case SourceCorporation:
		rows, err := a.api.CorporationOrders(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch corporation orders: %w", err)
		}
		out := make([]Order, 0, len(rows))
		for _, r := range rows {
			isBuy, inferred := classifyCorpOrder(r)
			o := newOrder(r.OrderID, r.TypeID, r.LocationID, r.Price,
				r.VolumeRemain, r.VolumeTotal, isBuy, r.Issued, r.Duration, r.Range, r.Escrow)
			o.Inferred = inferred
			out = append(out, o)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
}

// classifyCorpOrder trusts is_buy_order when present. Otherwise escrow or a non-region
// range means a buy order; that path is an approximation.
func classifyCorpOrder(o esi.CorporationOrder) (isBuy, inferred bool) {
	if o.IsBuyOrder != nil {
		return *o.IsBuyOrder, false
	}
	if o.Escrow > 0 {
		return true, true
	}
	if o.Range != "" && o.Range != "region" {
		return true, true
	}
	return false, true
}

func newOrder(id int64, typeID int32, loc int64, price float64, remain, total int32,
	isBuy bool, issued string, duration int, rng string, escrow float64) Order {
	t, _ := time.Parse(time.RFC3339, issued)
	return Order{
		OrderID:      id,
		TypeID:       typeID,
		LocationID:   loc,
		Price:        price,
		VolumeRemain: int64(remain),
		VolumeTotal:  int64(total),
		IsBuyOrder:   isBuy,
		Issued:       t,
		Duration:     duration,
		Range:        rng,
		Escrow:       escrow,
		ISKValue:     price * float64(remain),
	}
}

package esi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// MarketOrder mirrors the ESI market order response.
type MarketOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int32   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	SystemID     int32   `json:"system_id"`
	Price        float64 `json:"price"`
	VolumeRemain int32   `json:"volume_remain"`
	VolumeTotal  int32   `json:"volume_total"`
	MinVolume    int32   `json:"min_volume"`
	IsBuyOrder   bool    `json:"is_buy_order"`
	Range        string  `json:"range"`
	Duration     int     `json:"duration"`
	Issued       string  `json:"issued"`
	RegionID     int32   `json:"-"` // set by us
}

// FetchRegionOrdersByType returns the live order book (both sides) of one type in a region.
// Identical concurrent calls share one request and results are kept until ESI's Expires.
func (c *Client) FetchRegionOrdersByType(ctx context.Context, regionID, typeID int32) ([]MarketOrder, error) {
	return c.orderCache.fetch(regionID, typeID, func() ([]MarketOrder, string, error) {
		q := url.Values{}
		q.Set("order_type", "all")
		q.Set("type_id", strconv.Itoa(int(typeID)))
		orders, hdr, err := getPages[MarketOrder](ctx, c, fmt.Sprintf("/markets/%d/orders/", regionID), q, "")
		if err != nil {
			return nil, "", fmt.Errorf("market orders region=%d type=%d: %w", regionID, typeID, err)
		}
		for i := range orders {
			orders[i].RegionID = regionID
		}
		return orders, hdr.Get("Expires"), nil
	})
}

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-warehouse/internal/esi"
)

func TestSummarizeOrders_TopTenWeightedBuy(t *testing.T) {
	var book []esi.MarketOrder
	// Twelve buys at 1..12; only 12..3 count.
	for p := 1; p <= 12; p++ {
		book = append(book, buy(float64(p), 1))
	}
	book = append(book, buy(1000, 0)) // no volume left
	book = append(book, sell(50, 3), sell(40, 1), sell(10, 0))

	snap := SummarizeOrders(book)
	assert.InDelta(t, 7.5, snap.AvgBuyPrice, 1e-9)
	assert.Equal(t, 40.0, snap.MinSellPrice)
	assert.Equal(t, 12, snap.BuyOrdersCount)
	assert.Equal(t, 2, snap.SellOrdersCount)
}

func TestSummarizeOrders_VolumeWeighted(t *testing.T) {
	snap := SummarizeOrders([]esi.MarketOrder{buy(100, 30), buy(90, 10)})
	assert.InDelta(t, 97.5, snap.AvgBuyPrice, 1e-9)
	assert.Zero(t, snap.MinSellPrice)
}

func TestSummarizeOrders_Empty(t *testing.T) {
	assert.Equal(t, PriceSnapshot{}, SummarizeOrders(nil))
}

func TestAnalyzeDepth(t *testing.T) {
	book := []esi.MarketOrder{
		buy(90, 5), buy(95, 1),
		sell(100, 10), sell(110, 10), sell(120, 0), sell(130, 5), sell(140, 5), sell(150, 5), sell(1000, 100),
	}
	d := AnalyzeDepth(book)
	assert.Equal(t, 95.0, d.BestBuyPrice)
	assert.Equal(t, 100.0, d.BestSellPrice)
	assert.Equal(t, int64(6), d.BuyVolumeTop5)
	assert.Equal(t, int64(35), d.SellVolumeTop5)
	assert.InDelta(t, 5.0, d.SpreadPercentage, 1e-9)
	// (100·10 + 110·10 + 130·5 + 140·5 + 150·5) / 35
	assert.InDelta(t, 4200.0/35, d.RealisticSellPrice, 1e-9)
	assert.Equal(t, 2, d.TotalBuyOrders)
	assert.Equal(t, 6, d.TotalSellOrders)
}

func TestAnalyzeDepth_NoSellsOrNoBuys(t *testing.T) {
	d := AnalyzeDepth([]esi.MarketOrder{buy(10, 1)})
	assert.Zero(t, d.RealisticSellPrice)
	assert.Zero(t, d.SpreadPercentage)

	d = AnalyzeDepth([]esi.MarketOrder{sell(10, 2), sell(20, 2)})
	assert.Zero(t, d.SpreadPercentage)
	assert.InDelta(t, 15, d.RealisticSellPrice, 1e-9)
}

func TestMarketFetcher_FailedItemDegrades(t *testing.T) {
	m := &fakeMarket{
		books: map[int32][]esi.MarketOrder{34: {buy(5, 10), sell(6, 10)}},
		fail:  map[int32]bool{35: true},
	}
	got := NewMarketFetcher(m, 2).Fetch(context.Background(), jitaRegion, []int32{34, 35, 36}, true)
	require.Len(t, got, 3)

	assert.NoError(t, got[34].Err)
	assert.Equal(t, 5.0, got[34].Snapshot.AvgBuyPrice)
	require.NotNil(t, got[34].Depth)
	assert.Equal(t, 6.0, got[34].Depth.RealisticSellPrice)

	assert.Error(t, got[35].Err)
	assert.Equal(t, PriceSnapshot{}, got[35].Snapshot)
	assert.Nil(t, got[35].Depth)

	assert.NoError(t, got[36].Err, "empty book is not an error")
}

func TestMarketFetcher_NoDepthWhenNotRequested(t *testing.T) {
	m := &fakeMarket{books: map[int32][]esi.MarketOrder{34: {sell(6, 10)}}}
	got := NewMarketFetcher(m, 0).Fetch(context.Background(), jitaRegion, []int32{34}, false)
	assert.Nil(t, got[34].Depth)
}

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-warehouse/internal/esi"
)

func TestBreakdownOrders(t *testing.T) {
	orders := []Order{
		{OrderID: 1, LocationID: jitaStation, Price: 10, VolumeRemain: 10, IsBuyOrder: true, ISKValue: 100},
		{OrderID: 2, LocationID: jitaStation, Price: 50, VolumeRemain: 10, ISKValue: 500},
		{OrderID: 3, LocationID: amarrStation, Price: 1, VolumeRemain: 5, IsBuyOrder: true, Inferred: true, ISKValue: 5},
		{OrderID: 4, LocationID: 30000142, Price: 2, VolumeRemain: 1, ISKValue: 2},
	}
	b := BreakdownOrders(orders, DefaultHubs())

	assert.Equal(t, 4, b.TotalOrders)
	assert.Equal(t, OrderSideTotals{Count: 2, Value: 105}, b.BuyOrders)
	assert.Equal(t, OrderSideTotals{Count: 2, Value: 502}, b.SellOrders)
	assert.Equal(t, OrderSideTotals{Count: 1, Value: 2}, b.OtherLocations)
	assert.Equal(t, 1, b.InferredSide)

	require.Len(t, b.ByHub, 5)
	assert.Equal(t, "Jita", b.ByHub[0].Hub)
	assert.Equal(t, OrderSideTotals{Count: 1, Value: 100}, b.ByHub[0].BuyOrders)
	assert.Equal(t, OrderSideTotals{Count: 1, Value: 500}, b.ByHub[0].SellOrders)
	assert.Equal(t, OrderSideTotals{Count: 1, Value: 5}, b.ByHub[1].BuyOrders)

	assert.Equal(t, int64(2), b.Orders[0].OrderID)
}

func TestWarehouseCorporationOrders_FetchesCorpEndpoint(t *testing.T) {
	acct := &fakeAccount{
		authed:     true,
		charOrders: []esi.CharacterOrder{{OrderID: 99, LocationID: jitaStation, Price: 1, VolumeRemain: 1}},
		corpOrders: []esi.CorporationOrder{{OrderID: 5, LocationID: jitaStation, Price: 3, VolumeRemain: 2, Escrow: 6}},
	}
	w := newTestWarehouse(acct, &fakeMarket{}, mapNames{})
	b, err := w.CorporationOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Orders, 1)
	assert.Equal(t, int64(5), b.Orders[0].OrderID)
	assert.True(t, b.Orders[0].IsBuyOrder)
	assert.Equal(t, 1, b.InferredSide)

	_, err = newTestWarehouse(&fakeAccount{}, &fakeMarket{}, mapNames{}).CorporationOrders(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"eve-warehouse/internal/esi"
	"eve-warehouse/internal/mokaam"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

const (
	jitaStation  int64 = 60003760
	amarrStation int64 = 60008494
	jitaRegion   int32 = 10000002
)

type fakeAccount struct {
	authed bool

	charAssets []esi.Asset
	corpAssets []esi.Asset
	charOrders []esi.CharacterOrder
	corpOrders []esi.CorporationOrder
	charTxns   []esi.WalletTransaction
	corpTxns   []esi.WalletTransaction
	contracts  []esi.Contract

	assetsErr error
	ordersErr error
	txnErr    error

	charWallet    float64
	corpWallet    float64
	charWalletErr error
	corpWalletErr error

	calls        atomic.Int32
	lastDivision int
}

func (f *fakeAccount) IsAuthenticated() bool { return f.authed }

func (f *fakeAccount) CharacterAssets(context.Context) ([]esi.Asset, error) {
	f.calls.Add(1)
	return f.charAssets, f.assetsErr
}

func (f *fakeAccount) CorporationAssets(context.Context) ([]esi.Asset, error) {
	f.calls.Add(1)
	return f.corpAssets, f.assetsErr
}

func (f *fakeAccount) CharacterOrders(context.Context) ([]esi.CharacterOrder, error) {
	f.calls.Add(1)
	return f.charOrders, f.ordersErr
}

func (f *fakeAccount) CorporationOrders(context.Context) ([]esi.CorporationOrder, error) {
	f.calls.Add(1)
	return f.corpOrders, f.ordersErr
}

func (f *fakeAccount) CharacterTransactions(context.Context) ([]esi.WalletTransaction, error) {
	f.calls.Add(1)
	return f.charTxns, f.txnErr
}

func (f *fakeAccount) CorporationTransactions(_ context.Context, division int) ([]esi.WalletTransaction, error) {
	f.calls.Add(1)
	f.lastDivision = division
	return f.corpTxns, f.txnErr
}

func (f *fakeAccount) CharacterWallet(context.Context) (float64, error) {
	return f.charWallet, f.charWalletErr
}

func (f *fakeAccount) CorporationWallet(context.Context) (float64, error) {
	return f.corpWallet, f.corpWalletErr
}

func (f *fakeAccount) CharacterContracts(context.Context) ([]esi.Contract, error) {
	return f.contracts, nil
}

func (f *fakeAccount) CorporationContracts(context.Context) ([]esi.Contract, error) {
	return f.contracts, nil
}

type fakeMarket struct {
	mu    sync.Mutex
	books map[int32][]esi.MarketOrder
	fail  map[int32]bool
	calls int
}

func (m *fakeMarket) FetchRegionOrdersByType(_ context.Context, regionID, typeID int32) ([]esi.MarketOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail[typeID] {
		return nil, errors.New("esi 502")
	}
	return m.books[typeID], nil
}

type mapNames map[int32]string

func (n mapNames) Lookup(id int32) (string, bool) {
	s, ok := n[id]
	return s, ok
}

type panicNames struct {
	mapNames
	panicOn int32
}

func (n panicNames) Lookup(id int32) (string, bool) {
	if id == n.panicOn {
		panic("corrupt name table")
	}
	return n.mapNames.Lookup(id)
}

type fakeRegionStats struct {
	mu    sync.Mutex
	stats map[int32][]mokaam.ItemStat
	fail  map[int32]bool
	calls map[int32]int
}

func (f *fakeRegionStats) RegionStats(_ context.Context, regionID int32) ([]mokaam.ItemStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int32]int{}
	}
	f.calls[regionID]++
	if f.fail[regionID] {
		return nil, errors.New("mokaam 503")
	}
	return f.stats[regionID], nil
}

func buy(price float64, vol int32) esi.MarketOrder {
	return esi.MarketOrder{Price: price, VolumeRemain: vol, IsBuyOrder: true}
}

func sell(price float64, vol int32) esi.MarketOrder {
	return esi.MarketOrder{Price: price, VolumeRemain: vol}
}

func walletTxn(daysAgo int, typeID int32, loc int64, isBuy bool, price float64, qty int32) esi.WalletTransaction {
	return esi.WalletTransaction{
		Date:       testNow.AddDate(0, 0, -daysAgo).Format(time.RFC3339),
		TypeID:     typeID,
		LocationID: loc,
		IsBuy:      isBuy,
		UnitPrice:  price,
		Quantity:   qty,
	}
}

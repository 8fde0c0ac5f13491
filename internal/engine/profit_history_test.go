package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"eve-warehouse/internal/esi"
)

func TestComputeProfitHistory_ZeroFillsAndSigns(t *testing.T) {
	txns := TransactionsFromESI([]esi.WalletTransaction{
		walletTxn(0, 34, jitaStation, false, 1000, 3), // today: +3000
		walletTxn(0, 34, jitaStation, true, 500, 2),   // today: -1000
		walletTxn(3, 35, jitaStation, true, 100, 1),   // -100
		walletTxn(9, 35, jitaStation, false, 1e6, 1),  // outside 7 days
	})
	h := ComputeProfitHistory(txns, testNow, 7)

	if len(h.DailyProfits) != 7 {
		t.Fatalf("days = %d, want 7", len(h.DailyProfits))
	}
	if h.DailyProfits[0].Date != "2026-03-04" || h.DailyProfits[6].Date != "2026-03-10" {
		t.Errorf("range = %s..%s", h.DailyProfits[0].Date, h.DailyProfits[6].Date)
	}
	today := h.DailyProfits[6]
	if today.Profit != 2000 || today.Trades != 2 || today.SellTotal != 3000 || today.BuyTotal != 1000 {
		t.Errorf("today = %+v", today)
	}
	if d := h.DailyProfits[3]; d.Profit != -100 || d.Trades != 1 {
		t.Errorf("day -3 = %+v", d)
	}
	for _, i := range []int{0, 1, 2, 4, 5} {
		if d := h.DailyProfits[i]; d.Profit != 0 || d.Trades != 0 {
			t.Errorf("day %s should be zero, got %+v", d.Date, d)
		}
	}
	if h.TotalProfit != 1900 {
		t.Errorf("TotalProfit = %v, want 1900", h.TotalProfit)
	}
	if h.AverageDailyProfit != 271.43 {
		t.Errorf("AverageDailyProfit = %v, want 271.43", h.AverageDailyProfit)
	}
	if h.BestDay != "2026-03-10" || h.WorstDay != "2026-03-07" {
		t.Errorf("best/worst = %s/%s", h.BestDay, h.WorstDay)
	}
	if h.ProfitableDays != 1 {
		t.Errorf("ProfitableDays = %d", h.ProfitableDays)
	}
	if h.DailyProfits[6].Cumulative != 1900 {
		t.Errorf("cumulative = %v", h.DailyProfits[6].Cumulative)
	}
}

func TestComputeProfitHistory_Empty(t *testing.T) {
	h := ComputeProfitHistory(nil, testNow, 0)
	if h.Days != 7 || len(h.DailyProfits) != 7 || h.TotalProfit != 0 || h.BestDay != "" {
		t.Errorf("empty history = %+v", h)
	}
}

func TestWarehouseProfitHistory_RequiresAuth(t *testing.T) {
	w := newTestWarehouse(&fakeAccount{}, &fakeMarket{}, mapNames{})
	if _, err := w.ProfitHistory(context.Background(), 7); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestWarehouseProfitHistory_UsesClock(t *testing.T) {
	acct := &fakeAccount{authed: true, charTxns: []esi.WalletTransaction{
		{Date: testNow.Add(-time.Hour).Format(time.RFC3339), TypeID: 1, Quantity: 1, UnitPrice: 10},
	}}
	w := newTestWarehouse(acct, &fakeMarket{}, mapNames{})
	h, err := w.ProfitHistory(context.Background(), 3)
	if err != nil {
		t.Fatalf("ProfitHistory: %v", err)
	}
	if h.TotalProfit != 10 || len(h.DailyProfits) != 3 {
		t.Errorf("history = %+v", h)
	}
}

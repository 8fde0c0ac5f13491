package engine

import (
	"context"
	"time"
)

// DailyProfit is one day's trading cash flow.
type DailyProfit struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Profit     float64 `json:"profit"`
	Trades     int     `json:"trades"`
	BuyTotal   float64 `json:"buy_total"`
	SellTotal  float64 `json:"sell_total"`
	Cumulative float64 `json:"cumulative_profit"`
}

// ProfitHistory covers the last Days calendar days, oldest first.
type ProfitHistory struct {
	Days               int           `json:"days"`
	DailyProfits       []DailyProfit `json:"daily_profits"`
	TotalProfit        float64       `json:"total_profit"`
	AverageDailyProfit float64       `json:"average_daily_profit"`
	BestDay            string        `json:"best_day,omitempty"`
	WorstDay           string        `json:"worst_day,omitempty"`
	ProfitableDays     int           `json:"profitable_days"`
}

// ComputeProfitHistory buckets transactions by UTC day over the last days days
// (today included). Profit is sells minus buys; days without trades are zero.
func ComputeProfitHistory(txns []Transaction, now time.Time, days int) ProfitHistory {
	if days <= 0 {
		days = 7
	}
	today := now.UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(days - 1))

	buckets := make(map[string]*DailyProfit, days)
	h := ProfitHistory{Days: days, DailyProfits: make([]DailyProfit, days)}
	for i := range h.DailyProfits {
		d := first.AddDate(0, 0, i).Format("2006-01-02")
		h.DailyProfits[i].Date = d
		buckets[d] = &h.DailyProfits[i]
	}

	for _, tx := range txns {
		b, ok := buckets[tx.Date.UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		b.Trades++
		if tx.IsBuy {
			b.BuyTotal += tx.Total()
		} else {
			b.SellTotal += tx.Total()
		}
	}

	var best, worst *DailyProfit
	for i := range h.DailyProfits {
		d := &h.DailyProfits[i]
		d.Profit = d.SellTotal - d.BuyTotal
		h.TotalProfit += d.Profit
		d.Cumulative = h.TotalProfit
		if d.Profit > 0 {
			h.ProfitableDays++
		}
		if d.Trades == 0 {
			continue
		}
		if best == nil || d.Profit > best.Profit {
			best = d
		}
		if worst == nil || d.Profit < worst.Profit {
			worst = d
		}
	}
	if best != nil {
		h.BestDay, h.WorstDay = best.Date, worst.Date
	}
	h.AverageDailyProfit = h.TotalProfit / float64(days)

	for i := range h.DailyProfits {
		d := &h.DailyProfits[i]
		d.Profit, d.BuyTotal, d.SellTotal, d.Cumulative = round2(d.Profit), round2(d.BuyTotal), round2(d.SellTotal), round2(d.Cumulative)
	}
	h.TotalProfit = round2(h.TotalProfit)
	h.AverageDailyProfit = round2(h.AverageDailyProfit)
	return h
}

// ProfitHistory fetches character transactions and buckets them. It never returns
// placeholder data: an unauthenticated client yields ErrNotAuthenticated.
func (w *Warehouse) ProfitHistory(ctx context.Context, days int) (ProfitHistory, error) {
	if !w.accounts.IsAuthenticated() {
		return ProfitHistory{}, ErrNotAuthenticated
	}
	rows, err := w.accounts.CharacterTransactions(ctx)
	if err != nil {
		return ProfitHistory{}, err
	}
	return ComputeProfitHistory(TransactionsFromESI(rows), w.now(), days), nil
}

package engine

import "time"

// RealizedProfit reconciles completed sales against their cost basis.
type RealizedProfit struct {
	WindowDays                     int     `json:"window_days"`
	GrossRevenue                   float64 `json:"gross_revenue"`
	Fees                           float64 `json:"fees"`
	CostOfGoodsSold                float64 `json:"cost_of_goods_sold"`
	RealizedProfit                 float64 `json:"realized_profit"`
	SellTransactions               int     `json:"sell_transactions"`
	SellsWithCostBasis             int     `json:"sells_with_cost_basis"`
	RevenueWithCostBasisPercentage float64 `json:"revenue_with_cost_basis_percentage"`
}

// CostLookup resolves the cost basis of (type, location).
type CostLookup func(typeID int32, locationID int64) (CostBasis, bool)

// ComputeRealizedProfit sums sell transactions from the trailing windowDays. Fees are
// charged at (broker + tax)% of revenue; sales without a cost basis add no COGS.
func ComputeRealizedProfit(txns []Transaction, costOf CostLookup, fees Fees, now time.Time, windowDays int) RealizedProfit {
	rp := RealizedProfit{WindowDays: windowDays}
	cutoff := now.UTC().AddDate(0, 0, -windowDays)
	rate := (fees.BrokerRate + fees.SalesTaxRate) / 100

	var coveredRevenue float64
	for _, tx := range txns {
		if tx.IsBuy || tx.Date.Before(cutoff) {
			continue
		}
		revenue := tx.Total()
		rp.SellTransactions++
		rp.GrossRevenue += revenue
		rp.Fees += revenue * rate
		if cb, ok := costOf(tx.TypeID, tx.LocationID); ok {
			rp.CostOfGoodsSold += float64(tx.Quantity) * cb.AverageCost
			rp.SellsWithCostBasis++
			coveredRevenue += revenue
		}
	}
	rp.RealizedProfit = rp.GrossRevenue - rp.Fees - rp.CostOfGoodsSold
	if rp.GrossRevenue > 0 {
		rp.RevenueWithCostBasisPercentage = coveredRevenue / rp.GrossRevenue * 100
	}
	return rp
}

func (rp RealizedProfit) rounded() RealizedProfit {
	rp.GrossRevenue = round2(rp.GrossRevenue)
	rp.Fees = round2(rp.Fees)
	rp.CostOfGoodsSold = round2(rp.CostOfGoodsSold)
	rp.RealizedProfit = round2(rp.RealizedProfit)
	rp.RevenueWithCostBasisPercentage = roundTo(rp.RevenueWithCostBasisPercentage, 1)
	return rp
}

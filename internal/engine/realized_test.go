package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"eve-warehouse/internal/esi"
)

func TestComputeRealizedProfit_HandComputed(t *testing.T) {
	tr := NewCostBasisTracker(fixedNow)
	tr.Load(TransactionsFromESI([]esi.WalletTransaction{
		walletTxn(10, 34, jitaStation, true, 600, 3),
		walletTxn(1, 34, jitaStation, false, 1000, 2),
	}))

	rp := ComputeRealizedProfit(tr.Transactions(), tr.CostBasis, Fees{BrokerRate: 2.5, SalesTaxRate: 4.5}, testNow, 30)
	assert.InDelta(t, 2000, rp.GrossRevenue, 1e-9)
	assert.InDelta(t, 140, rp.Fees, 1e-9)
	assert.InDelta(t, 1200, rp.CostOfGoodsSold, 1e-9)
	assert.InDelta(t, 660, rp.RealizedProfit, 1e-9)
	assert.Equal(t, 1, rp.SellsWithCostBasis)
}

func TestComputeRealizedProfit_UnknownCostAndWindow(t *testing.T) {
	txns := TransactionsFromESI([]esi.WalletTransaction{
		walletTxn(1, 34, jitaStation, false, 100, 10), // no cost basis
		walletTxn(2, 35, jitaStation, false, 300, 10), // covered
		walletTxn(40, 35, jitaStation, false, 1e6, 1), // outside window
	})
	costs := func(typeID int32, _ int64) (CostBasis, bool) {
		if typeID == 35 {
			return CostBasis{AverageCost: 250}, true
		}
		return CostBasis{}, false
	}
	rp := ComputeRealizedProfit(txns, costs, Fees{BrokerRate: 3, SalesTaxRate: 7}, testNow, 30)
	assert.Equal(t, 2, rp.SellTransactions)
	assert.Equal(t, 1, rp.SellsWithCostBasis)
	assert.InDelta(t, 4000, rp.GrossRevenue, 1e-9)
	assert.InDelta(t, 400, rp.Fees, 1e-9)
	assert.InDelta(t, 2500, rp.CostOfGoodsSold, 1e-9)
	assert.InDelta(t, 1100, rp.RealizedProfit, 1e-9)
	assert.InDelta(t, 75, rp.RevenueWithCostBasisPercentage, 1e-9)
}

func TestComputeRealizedProfit_NoSales(t *testing.T) {
	rp := ComputeRealizedProfit(nil, func(int32, int64) (CostBasis, bool) { return CostBasis{}, false }, Fees{}, testNow, 30)
	assert.Equal(t, RealizedProfit{WindowDays: 30}, rp)
}

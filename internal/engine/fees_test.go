package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeRates_BoundedAndMonotonic(t *testing.T) {
	prevBroker, prevTax := math.Inf(1), math.Inf(1)
	for lvl := 0; lvl <= 5; lvl++ {
		b, tx := BrokerFeeRate(lvl), SalesTaxRate(lvl)
		assert.GreaterOrEqual(t, b, 2.5)
		assert.LessOrEqual(t, b, 3.0)
		assert.GreaterOrEqual(t, tx, 4.5)
		assert.LessOrEqual(t, tx, 8.0)
		assert.LessOrEqual(t, b, prevBroker, "broker rate rose at level %d", lvl)
		assert.LessOrEqual(t, tx, prevTax, "tax rate rose at level %d", lvl)
		prevBroker, prevTax = b, tx
	}
	assert.InDelta(t, 3.0, BrokerFeeRate(0), 1e-9)
	assert.InDelta(t, 2.5, BrokerFeeRate(5), 1e-9)
	assert.InDelta(t, 8.0, SalesTaxRate(0), 1e-9)
	assert.InDelta(t, 4.5, SalesTaxRate(5), 1e-9)
}

func TestFeeRates_ClampOutOfRange(t *testing.T) {
	assert.Equal(t, BrokerFeeRate(5), BrokerFeeRate(9))
	assert.Equal(t, SalesTaxRate(0), SalesTaxRate(-3))
}

func TestFees_RoundTripLoses(t *testing.T) {
	for _, f := range []Fees{{2.5, 4.5}, {3.0, 8.0}, {2.7, 5.1}} {
		for _, p := range []float64{0.01, 1, 1234.5, 1e9} {
			assert.Less(t, f.EffectiveSellPrice(f.EffectiveBuyPrice(p)), p, "fees %+v price %v", f, p)
		}
	}
}

func TestFees_MinProfitableSellPrice(t *testing.T) {
	f := Fees{BrokerRate: 2.5, SalesTaxRate: 4.5}
	got := f.MinProfitableSellPrice(1_000_000, 0)
	assert.InDelta(t, 1_075_268.82, got, 0.01)

	// Selling at the minimum returns exactly buy·(1+margin).
	withMargin := f.MinProfitableSellPrice(500, 0.05)
	assert.InDelta(t, 525, f.EffectiveSellPrice(withMargin), 1e-9)
}

func TestFeesForSkills(t *testing.T) {
	s := NewSkillSet()
	f := FeesForSkills(s)
	assert.InDelta(t, 2.5, f.BrokerRate, 1e-9)
	assert.InDelta(t, 4.5, f.SalesTaxRate, 1e-9)

	require.NoError(t, s.Update(map[string]int{SkillBrokerRelations: 2, SkillAccounting: 1}))
	f = FeesForSkills(s)
	assert.InDelta(t, 2.8, f.BrokerRate, 1e-9)
	assert.InDelta(t, 7.12, f.SalesTaxRate, 1e-9)
}

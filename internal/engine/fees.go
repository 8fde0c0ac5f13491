package engine

import "math"

// BrokerFeeRate is the broker fee percentage for a Broker Relations level.
func BrokerFeeRate(level int) float64 {
	return math.Max(3.0-0.1*float64(clampLevel(level)), 2.5)
}

// SalesTaxRate is the sales tax percentage for an Accounting level.
func SalesTaxRate(level int) float64 {
	return math.Max(8.0*(1-0.11*float64(clampLevel(level))), 4.5)
}

// Fees holds broker and tax rates in percent.
type Fees struct {
	BrokerRate   float64
	SalesTaxRate float64
}

// FeesForSkills derives rates from the broker_relations and accounting levels.
func FeesForSkills(s *SkillSet) Fees {
	return Fees{
		BrokerRate:   BrokerFeeRate(s.Level(SkillBrokerRelations)),
		SalesTaxRate: SalesTaxRate(s.Level(SkillAccounting)),
	}
}

// sellFraction is the share of the sale price kept after tax and broker fee.
func (f Fees) sellFraction() float64 {
	return 1 - (f.SalesTaxRate+f.BrokerRate)/100
}

// EffectiveBuyPrice is the cost of buying at price p via a buy order.
func (f Fees) EffectiveBuyPrice(p float64) float64 {
	return p * (1 + f.BrokerRate/100)
}

// EffectiveSellPrice is what a sell order at price p nets.
func (f Fees) EffectiveSellPrice(p float64) float64 {
	return p * f.sellFraction()
}

// MinProfitableSellPrice is the listing price that returns buy·(1+margin) after fees.
func (f Fees) MinProfitableSellPrice(buy, margin float64) float64 {
	return buy * (1 + margin) / f.sellFraction()
}

package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// roundTo rounds half away from zero at places decimals. NaN and ±Inf become 0.
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func round2(v float64) float64 { return roundTo(v, 2) }

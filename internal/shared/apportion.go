package shared

import "github.com/shopspring/decimal"

// Apportion splits total across weights proportionally. Each share is
// rounded to places decimal places and the rounding remainder lands on
// the last positive weight, so the shares always sum back to total
// exactly. Zero or negative weights receive a zero share.
func Apportion(total decimal.Decimal, weights []decimal.Decimal, places int32) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	weightSum := decimal.Zero
	last := -1
	for i, w := range weights {
		if w.IsPositive() {
			weightSum = weightSum.Add(w)
			last = i
		}
	}
	if last < 0 || weightSum.IsZero() {
		return shares
	}

	assigned := decimal.Zero
	for i, w := range weights {
		if !w.IsPositive() || i == last {
			continue
		}
		share := total.Mul(w).Div(weightSum).Round(places)
		shares[i] = share
		assigned = assigned.Add(share)
	}
	shares[last] = total.Sub(assigned)
	return shares
}

// ApportionFloats is Apportion over float64 quantities, rounding each
// share to 3 decimal places.
func ApportionFloats(total float64, weights []float64) []float64 {
	dw := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		dw[i] = decimal.NewFromFloat(w)
	}
	split := Apportion(decimal.NewFromFloat(total), dw, 3)
	out := make([]float64, len(split))
	for i, s := range split {
		out[i], _ = s.Float64()
	}
	return out
}

package shared

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestApportionSumsExactly(t *testing.T) {
	total := decimal.RequireFromString("100")
	for n := 1; n <= 50; n++ {
		t.Run(fmt.Sprintf("contributors_%d", n), func(t *testing.T) {
			weights := make([]decimal.Decimal, n)
			for i := range weights {
				weights[i] = decimal.NewFromInt(int64(i + 1))
			}
			shares := Apportion(total, weights, 3)
			sum := decimal.Zero
			for _, s := range shares {
				sum = sum.Add(s)
			}
			require.True(t, sum.Equal(total), "sum %s != total %s", sum, total)
		})
	}
}

func TestApportionThirds(t *testing.T) {
	total := decimal.RequireFromString("10")
	weights := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1)}
	shares := Apportion(total, weights, 3)
	require.True(t, shares[0].Equal(decimal.RequireFromString("3.333")))
	require.True(t, shares[1].Equal(decimal.RequireFromString("3.333")))
	// Remainder lands on the last contributor.
	require.True(t, shares[2].Equal(decimal.RequireFromString("3.334")))
}

func TestApportionSkipsNonPositiveWeights(t *testing.T) {
	total := decimal.NewFromInt(12)
	weights := []decimal.Decimal{decimal.NewFromInt(2), decimal.Zero, decimal.NewFromInt(4)}
	shares := Apportion(total, weights, 3)
	require.True(t, shares[0].Equal(decimal.NewFromInt(4)))
	require.True(t, shares[1].IsZero())
	require.True(t, shares[2].Equal(decimal.NewFromInt(8)))
}

func TestApportionAllZeroWeights(t *testing.T) {
	shares := Apportion(decimal.NewFromInt(5), []decimal.Decimal{decimal.Zero, decimal.Zero}, 3)
	for _, s := range shares {
		require.True(t, s.IsZero())
	}
}

func TestApportionFloats(t *testing.T) {
	shares := ApportionFloats(12, []float64{10, 5})
	require.InDelta(t, 8.0, shares[0], 1e-9)
	require.InDelta(t, 4.0, shares[1], 1e-9)
	require.InDelta(t, 12.0, shares[0]+shares[1], 1e-9)
}

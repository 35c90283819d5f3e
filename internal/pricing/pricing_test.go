package pricing

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
)

func item(price string, qty int) models.CartItem {
	return models.CartItem{
		ProductID: fmt.Sprintf("p-%s-%d", price, qty),
		Price:     decimal.RequireFromString(price),
		Qty:       qty,
	}
}

func TestComputeSampleCart(t *testing.T) {
	items := []models.CartItem{
		item("19.99", 2),
		item("5.00", 1),
	}

	got := Compute(items)

	assert.Equal(t, "44.98", got.ItemsPrice.StringFixed(2))
	assert.Equal(t, "10.00", got.ShippingPrice.StringFixed(2))
	assert.Equal(t, "6.75", got.TaxPrice.StringFixed(2))
	assert.Equal(t, "61.73", got.TotalPrice.StringFixed(2))
}

func TestComputeTotalEqualsSumOfParts(t *testing.T) {
	carts := [][]models.CartItem{
		{item("0.01", 1)},
		{item("1.005", 1)}, // representation-error tie, nudged up by epsilon
		{item("19.99", 2), item("5.00", 1)},
		{item("33.33", 3)},
		{item("99.99", 1), item("0.01", 1)},
		{item("249.99", 4)},
		{item("10.00", 10)},
	}

	for _, items := range carts {
		got := Compute(items)
		sum := got.ItemsPrice.Add(got.ShippingPrice).Add(got.TaxPrice)
		assert.True(t, got.TotalPrice.Equal(sum),
			"total %s != items+shipping+tax %s", got.TotalPrice, sum)
	}
}

func TestComputeDeterministic(t *testing.T) {
	items := []models.CartItem{item("12.49", 3), item("0.99", 7)}

	first := Compute(items)
	for i := 0; i < 100; i++ {
		again := Compute(items)
		require.True(t, first.TotalPrice.Equal(again.TotalPrice))
		require.True(t, first.TaxPrice.Equal(again.TaxPrice))
	}
}

func TestComputeFreeShippingBoundary(t *testing.T) {
	// Exactly 100.00 is not above the threshold: the fee still applies.
	atThreshold := Compute([]models.CartItem{item("100.00", 1)})
	assert.Equal(t, "10.00", atThreshold.ShippingPrice.StringFixed(2))

	aboveThreshold := Compute([]models.CartItem{item("100.01", 1)})
	assert.Equal(t, "0.00", aboveThreshold.ShippingPrice.StringFixed(2))
}

func TestComputeEmptyCart(t *testing.T) {
	got := Compute(nil)

	assert.Equal(t, "0.00", got.ItemsPrice.StringFixed(2))
	assert.Equal(t, "10.00", got.ShippingPrice.StringFixed(2))
	assert.Equal(t, "0.00", got.TaxPrice.StringFixed(2))
	assert.Equal(t, "10.00", got.TotalPrice.StringFixed(2))
}

func TestZeroBreakdown(t *testing.T) {
	got := Zero()
	assert.True(t, got.ItemsPrice.IsZero())
	assert.True(t, got.ShippingPrice.IsZero())
	assert.True(t, got.TaxPrice.IsZero())
	assert.True(t, got.TotalPrice.IsZero())
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.005, 1.01}, // nudge counters the 1.00499... representation
		{44.98 * 0.15, 6.75},
		{10.4999, 10.5},
		{1.004, 1.0},
	}

	for _, tc := range cases {
		assert.InDelta(t, tc.want, Round2(tc.in), 1e-9, "Round2(%v)", tc.in)
	}
}

// Package pricing computes the derived price breakdown of a cart. It is pure:
// no I/O, no persistence, deterministic for a given item list.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
)

const (
	// FreeShippingThreshold is exclusive: an items price of exactly 100.00
	// still pays the shipping fee.
	FreeShippingThreshold = 100.0

	// ShippingFee charged below the free-shipping threshold.
	ShippingFee = 10.0

	// TaxRate applied to the items price.
	TaxRate = 0.15
)

// epsilon nudges values upward before rounding to counter binary
// floating-point representation error (e.g. 1.005 stored as 1.00499...).
// Matches the machine epsilon of an IEEE 754 double.
const epsilon = 2.220446049250313e-16

// Round2 rounds half away from zero to two decimal places, with the epsilon
// nudge applied first.
func Round2(v float64) float64 {
	return math.Round((v+epsilon)*100) / 100
}

// Compute derives the full price breakdown from a cart's item list.
//
// An empty item list yields an items price of 0 and still charges the
// shipping fee, so the total is the bare fee. Callers that need a zero total
// for an empty cart reset the stored fields explicitly instead.
func Compute(items []models.CartItem) models.PriceBreakdown {
	var itemsPrice float64
	for _, item := range items {
		itemsPrice += item.Price.InexactFloat64() * float64(item.Qty)
	}
	itemsPrice = Round2(itemsPrice)

	shippingPrice := ShippingFee
	if itemsPrice > FreeShippingThreshold {
		shippingPrice = 0
	}
	taxPrice := Round2(itemsPrice * TaxRate)
	totalPrice := Round2(itemsPrice + shippingPrice + taxPrice)

	return models.PriceBreakdown{
		ItemsPrice:    toDecimal(itemsPrice),
		ShippingPrice: toDecimal(shippingPrice),
		TaxPrice:      toDecimal(taxPrice),
		TotalPrice:    toDecimal(totalPrice),
	}
}

// Zero is the breakdown stored on a cart after it is emptied by a successful
// order placement. Unlike Compute(nil) it carries no shipping fee.
func Zero() models.PriceBreakdown {
	z := decimal.NewFromInt(0)
	return models.PriceBreakdown{ItemsPrice: z, ShippingPrice: z, TaxPrice: z, TotalPrice: z}
}

func toDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

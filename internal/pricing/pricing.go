// Package pricing computes per-line and aggregate order pricing. It is pure:
// no storage access, no clock, no mutation of its inputs.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/nilewear/api/internal/enum"
)

// Discount is an optional per-product price reduction.
type Discount struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Line is a fully priced order line. Monetary values are rounded to 2 decimal
// places at the point they are computed (per-unit first, then per-line), so
// intermediate rounding error is part of the contract and must stay stable.
type Line struct {
	PriceAfterDiscount decimal.Decimal
	DiscountPerUnit    decimal.Decimal
	LineDiscountTotal  decimal.Decimal
	LineTotal          decimal.Decimal
	LineOriginalTotal  decimal.Decimal
}

// Totals aggregates priced lines plus a shipping fee.
type Totals struct {
	SubTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	ShippingFee   decimal.Decimal
	FinalTotal    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// PriceLine prices a single line of quantity units at originalPrice with an
// optional discount. DiscountPerUnit is clamped so PriceAfterDiscount never
// goes below zero, which also guarantees LineDiscountTotal never exceeds
// LineOriginalTotal.
func PriceLine(originalPrice decimal.Decimal, discount *Discount, quantity int32) Line {
	perUnit := decimal.Zero
	if discount != nil {
		switch discount.Type {
		case enum.DiscountTypePercentage:
			perUnit = originalPrice.Mul(discount.Amount).Div(hundred)
		case enum.DiscountTypeFixed:
			perUnit = discount.Amount
		}
	}
	if perUnit.GreaterThan(originalPrice) {
		perUnit = originalPrice
	}
	perUnit = perUnit.Round(2)

	afterDiscount := originalPrice.Sub(perUnit).Round(2)
	if afterDiscount.IsNegative() {
		afterDiscount = decimal.Zero
	}

	qty := decimal.NewFromInt32(quantity)
	return Line{
		PriceAfterDiscount: afterDiscount,
		DiscountPerUnit:    perUnit,
		LineDiscountTotal:  perUnit.Mul(qty).Round(2),
		LineTotal:          afterDiscount.Mul(qty).Round(2),
		LineOriginalTotal:  originalPrice.Mul(qty).Round(2),
	}
}

// Aggregate sums priced lines into order totals:
//
//	subTotal      = Σ lineOriginalTotal
//	discountTotal = Σ lineDiscountTotal
//	finalTotal    = subTotal - discountTotal + shippingFee
//
// finalTotal cannot underflow: the per-unit clamp in PriceLine keeps every
// lineDiscountTotal at or below its lineOriginalTotal.
func Aggregate(lines []Line, shippingFee decimal.Decimal) Totals {
	subTotal := decimal.Zero
	discountTotal := decimal.Zero
	for _, l := range lines {
		subTotal = subTotal.Add(l.LineOriginalTotal)
		discountTotal = discountTotal.Add(l.LineDiscountTotal)
	}
	subTotal = subTotal.Round(2)
	discountTotal = discountTotal.Round(2)

	return Totals{
		SubTotal:      subTotal,
		DiscountTotal: discountTotal,
		ShippingFee:   shippingFee,
		FinalTotal:    subTotal.Sub(discountTotal).Add(shippingFee).Round(2),
	}
}

package service

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/pricing"
)

var decimalZero = decimal.Zero

// discountOf maps the nullable discount columns of a product row to a
// pricing discount. Both columns are set together or not at all.
func discountOf(discountType pgtype.Text, amount pgtype.Numeric) *pricing.Discount {
	if !discountType.Valid || !amount.Valid {
		return nil
	}
	return &pricing.Discount{
		Type:   discountType.String,
		Amount: database.NumericToDecimal(amount),
	}
}

package sale

import "github.com/shopspring/decimal"

// Quantity bounds for a single product line.
const (
	MinQuantity = 1
	MaxQuantity = 20
)

var (
	tenPercent    = decimal.RequireFromString("0.10")
	twentyPercent = decimal.RequireFromString("0.20")
)

// CalculateDiscount computes the tiered discount for a product line:
//
//	1-3 units   no discount
//	4-9 units   10% of the line subtotal
//	10-20 units 20% of the line subtotal
//
// Quantities outside 1-20 are a hard business rule violation; the engine
// refuses to compute rather than silently capping.
func CalculateDiscount(quantity int, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return decimal.Zero, &InvalidQuantityError{Quantity: quantity}
	}

	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))

	switch {
	case quantity >= 10:
		return subtotal.Mul(twentyPercent).Round(2), nil
	case quantity >= 4:
		return subtotal.Mul(tenPercent).Round(2), nil
	default:
		return decimal.Zero, nil
	}
}

package coupon

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount calculates the discount amount the coupon grants against the given
// subtotal.
//
// Percentage coupons take discount_value percent of the subtotal, capped at
// the coupon's max discount amount when one is set. Fixed coupons grant the
// full discount value even when it exceeds the subtotal; callers clamp the
// resulting total at zero instead of clamping the discount.
func Discount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountPercentage:
		amount := subtotal.Mul(c.DiscountValue).Div(hundred).Round(2)
		if c.MaxDiscountAmount != nil && amount.GreaterThan(*c.MaxDiscountAmount) {
			amount = *c.MaxDiscountAmount
		}
		return amount
	case DiscountFixed:
		return c.DiscountValue
	default:
		return decimal.Zero
	}
}

package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

// Validator is a stateless eligibility predicate over a coupon. It is run
// both when a coupon is applied to a cart and again at checkout, since time
// may have passed and the usage count may have changed in between.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a Validator using the wall clock.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// NewValidatorAt creates a Validator with a fixed clock, for tests.
func NewValidatorAt(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Validate checks the coupon's active flag, validity window, usage headroom,
// and (when subtotal is non-nil) the minimum order amount. It returns nil when
// the coupon is eligible, or the specific sentinel error describing why not.
func (v *Validator) Validate(c *Coupon, subtotal *decimal.Decimal) error {
	if !c.Active {
		return ErrInvalidCoupon
	}

	now := v.now()
	if now.Before(c.StartsAt) || now.After(c.ExpiresAt) {
		return ErrExpired
	}

	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return ErrUsageLimitReached
	}

	if subtotal != nil && c.MinOrderAmount != nil && subtotal.LessThan(*c.MinOrderAmount) {
		return ErrMinOrderNotMet
	}

	return nil
}

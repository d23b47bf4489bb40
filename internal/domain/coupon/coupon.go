package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed monetary amount from the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is unknown or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrExpired is returned when a coupon is outside its validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinOrderNotMet is returned when the cart subtotal is below the
	// coupon's minimum order amount.
	ErrMinOrderNotMet = errors.New("order amount below coupon minimum")
)

// Coupon defines a discount rule and its eligibility constraints.
// UsageLimit of zero means unlimited uses.
type Coupon struct {
	ID                string
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartsAt          time.Time
	ExpiresAt         time.Time
	UsageLimit        int
	UsageCount        int
	Active            bool
}

// Repository provides lookup and mutation of coupons. Codes are matched
// case-sensitively.
type Repository interface {
	// FindByCode returns the coupon with the given code, active or not.
	// Returns ErrInvalidCoupon when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// IncrementUsage atomically increments the coupon's usage count, bounded
	// by its usage limit. Returns ErrUsageLimitReached when the coupon has no
	// remaining headroom, so concurrent checkouts cannot overspend a coupon.
	IncrementUsage(ctx context.Context, code string) error
}

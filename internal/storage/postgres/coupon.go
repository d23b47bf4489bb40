package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/instrument-haven/backend/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount_value, min_order_amount,
			max_discount_amount, starts_at, expires_at, usage_limit, usage_count, is_active
		FROM coupons WHERE code = $1`

	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE code = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db *DB
}

// NewCouponRepository returns a CouponRepository that uses the given DB.
func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindByCode looks up a coupon by its exact, case-sensitive code.
// Returns coupon.ErrInvalidCoupon when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage is a compare-and-increment bounded by the usage limit: two
// concurrent checkouts racing on the last use of a coupon cannot both match
// the WHERE clause, so exactly one succeeds.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string) error {
	tag, err := r.db.q(ctx).Exec(ctx, incrementCouponUsageSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderAmount,
		&c.MaxDiscountAmount, &c.StartsAt, &c.ExpiresAt, &c.UsageLimit,
		&c.UsageCount, &c.Active,
	)
	return c, err
}

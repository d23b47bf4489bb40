package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/instrument-haven/backend/internal/domain/coupon"
	"github.com/instrument-haven/backend/internal/domain/product"
)

// Snapshot is a cart together with its derived monetary totals. Totals are
// computed on demand from the items and the attached coupon, never persisted,
// so they cannot go stale.
type Snapshot struct {
	Cart     *Cart
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Service maintains per-user cart contents and computes monetary derivations.
type Service struct {
	carts     Repository
	products  product.Repository
	coupons   coupon.Repository
	validator *coupon.Validator
}

// NewService creates a cart Service with the required dependencies.
func NewService(
	carts Repository,
	products product.Repository,
	coupons coupon.Repository,
	validator *coupon.Validator,
) *Service {
	return &Service{
		carts:     carts,
		products:  products,
		coupons:   coupons,
		validator: validator,
	}
}

// Get returns the user's cart snapshot, creating an empty cart on first use.
func (s *Service) Get(ctx context.Context, userID string) (*Snapshot, error) {
	c, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, c)
}

// AddProduct adds quantity units of a product to the user's cart. When the
// product is already in the cart its quantity is incremented in place and the
// original price snapshot is kept. A new item snapshots the product's current
// unit price.
func (s *Service) AddProduct(ctx context.Context, userID, productID string, quantity int) (*Snapshot, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	if existing := c.FindItemByProduct(p.ID); existing != nil {
		existing.Quantity += quantity
		if err := s.carts.UpdateItemQuantity(ctx, c.ID, existing.ID, existing.Quantity); err != nil {
			return nil, errors.Wrap(err, "update cart item")
		}
		return s.snapshot(ctx, c)
	}

	item := Item{
		ID:        uuid.New().String(),
		CartID:    c.ID,
		ProductID: p.ID,
		Quantity:  quantity,
		Price:     p.UnitPrice(),
	}
	if err := s.carts.AddItem(ctx, &item); err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}
	c.Items = append(c.Items, item)

	return s.snapshot(ctx, c)
}

// UpdateItemQuantity sets the quantity of a cart item. A quantity of zero
// removes the item: a zero-quantity row must never exist.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*Snapshot, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		return s.removeItem(ctx, c, itemID)
	}

	item := c.FindItem(itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	if err := s.carts.UpdateItemQuantity(ctx, c.ID, itemID, quantity); err != nil {
		return nil, err
	}
	item.Quantity = quantity

	return s.snapshot(ctx, c)
}

// RemoveItem deletes a cart item scoped to the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*Snapshot, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.removeItem(ctx, c, itemID)
}

// ApplyCoupon validates the coupon against the current subtotal and attaches
// it to the cart. The coupon's usage count is not touched here; it is only
// incremented when an order is actually created.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*Snapshot, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cpn, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	subtotal := c.Subtotal()
	if err := s.validator.Validate(cpn, &subtotal); err != nil {
		return nil, err
	}

	if err := s.carts.SetCouponCode(ctx, c.ID, cpn.Code); err != nil {
		return nil, errors.Wrap(err, "set coupon code")
	}
	c.CouponCode = cpn.Code

	return s.snapshot(ctx, c)
}

// RemoveCoupon detaches any coupon from the user's cart.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*Snapshot, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.carts.SetCouponCode(ctx, c.ID, ""); err != nil {
		return nil, errors.Wrap(err, "clear coupon code")
	}
	c.CouponCode = ""

	return s.snapshot(ctx, c)
}

func (s *Service) getOrCreate(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "get cart")
	}

	c = &Cart{
		ID:     uuid.New().String(),
		UserID: userID,
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

func (s *Service) removeItem(ctx context.Context, c *Cart, itemID string) (*Snapshot, error) {
	if c.FindItem(itemID) == nil {
		return nil, ErrItemNotFound
	}
	if err := s.carts.DeleteItem(ctx, c.ID, itemID); err != nil {
		return nil, err
	}

	items := c.Items[:0]
	for _, item := range c.Items {
		if item.ID != itemID {
			items = append(items, item)
		}
	}
	c.Items = items

	return s.snapshot(ctx, c)
}

// snapshot derives subtotal, discount, and total for the cart. The attached
// coupon is looked up and re-validated on every read; a coupon that became
// ineligible since it was applied simply contributes no discount.
func (s *Service) snapshot(ctx context.Context, c *Cart) (*Snapshot, error) {
	subtotal := c.Subtotal()
	discount := decimal.Zero

	if c.CouponCode != "" {
		cpn, err := s.coupons.FindByCode(ctx, c.CouponCode)
		switch {
		case err == nil:
			if s.validator.Validate(cpn, &subtotal) == nil {
				discount = coupon.Discount(cpn, subtotal)
			}
		case errors.Is(err, coupon.ErrInvalidCoupon):
			// Coupon was deleted after being applied; ignore it.
		default:
			return nil, errors.Wrap(err, "lookup coupon")
		}
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Snapshot{
		Cart:     c,
		Subtotal: subtotal,
		Discount: discount,
		Total:    total,
	}, nil
}

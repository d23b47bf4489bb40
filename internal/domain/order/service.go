package order

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/instrument-haven/backend/internal/domain/cart"
	"github.com/instrument-haven/backend/internal/domain/coupon"
	"github.com/instrument-haven/backend/internal/domain/product"
)

// maxNumberAttempts bounds the order number collision retry loop.
const maxNumberAttempts = 8

// CheckoutRequest holds the input for converting a cart into an order.
type CheckoutRequest struct {
	PaymentMethod   string
	PaymentID       string
	ShippingAddress Address
	BillingAddress  Address
}

// Config holds the pricing knobs applied at checkout.
type Config struct {
	// TaxRate is applied to the raw subtotal (before discount).
	TaxRate decimal.Decimal
	// ShippingCost is a flat amount added to every order.
	ShippingCost decimal.Decimal
}

// DefaultConfig returns the standard 6% tax rate and $10 flat shipping.
func DefaultConfig() Config {
	return Config{
		TaxRate:      decimal.New(6, -2),
		ShippingCost: decimal.New(10, 0),
	}
}

// Service converts carts into immutable orders. It is the only component
// that mutates product stock and coupon usage counts, and it does so through
// atomic conditional updates inside a single transaction.
type Service struct {
	carts     cart.Repository
	products  product.Repository
	coupons   coupon.Repository
	validator *coupon.Validator
	orders    Repository
	tx        Transactor
	cfg       Config

	// randInt is swappable in tests to force order number collisions.
	randInt func(n int) int
}

// NewService creates an order Service with the required dependencies.
func NewService(
	carts cart.Repository,
	products product.Repository,
	coupons coupon.Repository,
	validator *coupon.Validator,
	orders Repository,
	tx Transactor,
	cfg Config,
) *Service {
	return &Service{
		carts:     carts,
		products:  products,
		coupons:   coupons,
		validator: validator,
		orders:    orders,
		tx:        tx,
		cfg:       cfg,
		randInt:   rand.IntN,
	}
}

// CreateFromCart transactionally converts the user's cart into an order:
// it re-validates the coupon, snapshots cart items into order items,
// decrements product stock, increments coupon usage, and drains the cart.
// Any failure rolls back every write.
func (s *Service) CreateFromCart(ctx context.Context, userID string, req CheckoutRequest) (*Order, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := c.Subtotal()

	// Re-validate the coupon at checkout time: it may have expired or been
	// exhausted since it was applied to the cart.
	discount := decimal.Zero
	couponCode := ""
	if c.CouponCode != "" {
		cpn, err := s.coupons.FindByCode(ctx, c.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := s.validator.Validate(cpn, &subtotal); err != nil {
			return nil, err
		}
		discount = coupon.Discount(cpn, subtotal)
		couponCode = cpn.Code
	}

	// The discounted component is clamped at zero before tax and shipping,
	// so a fixed coupon larger than the subtotal can never produce a
	// negative order total.
	preTax := subtotal.Sub(discount)
	if preTax.IsNegative() {
		preTax = decimal.Zero
	}
	tax := subtotal.Mul(s.cfg.TaxRate).Round(2)
	total := preTax.Add(tax).Add(s.cfg.ShippingCost).Round(2)

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Status:          StatusProcessing,
		PaymentMethod:   req.PaymentMethod,
		PaymentID:       req.PaymentID,
		PaymentStatus:   "paid",
		Subtotal:        subtotal.Round(2),
		Discount:        discount.Round(2),
		CouponCode:      couponCode,
		Tax:             tax,
		ShippingCost:    s.cfg.ShippingCost,
		Total:           total,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		number, err := s.generateOrderNumber(ctx)
		if err != nil {
			return err
		}
		o.OrderNumber = number

		for _, item := range c.Items {
			p, err := s.products.GetByID(ctx, item.ProductID)
			if err != nil {
				return errors.Wrapf(err, "get product %s", item.ProductID)
			}

			lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			o.Items = append(o.Items, Item{
				ID:          uuid.New().String(),
				OrderID:     o.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				ProductSlug: p.Slug,
				Quantity:    item.Quantity,
				Price:       item.Price,
				Total:       lineTotal.Round(2),
			})

			if err := s.products.DecrementStock(ctx, p.ID, item.Quantity); err != nil {
				return errors.Wrapf(err, "decrement stock for %s", p.ID)
			}
		}

		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if couponCode != "" {
			if err := s.coupons.IncrementUsage(ctx, couponCode); err != nil {
				return errors.Wrap(err, "increment coupon usage")
			}
		}

		if err := s.carts.Clear(ctx, c.ID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// Cancel transitions a processing order owned by the user to cancelled.
// Stock is not restored; cancellation is a status change only.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusProcessing {
		return nil, ErrCannotCancel
	}

	if err := s.orders.UpdateStatus(ctx, o.ID, StatusCancelled); err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	o.Status = StatusCancelled
	return o, nil
}

// generateOrderNumber produces "ORD-" followed by six random digits, retrying
// on collision with existing orders. The small random space makes collisions
// likely at volume, so the loop is bounded and fails loudly rather than
// spinning.
func (s *Service) generateOrderNumber(ctx context.Context) (string, error) {
	for range maxNumberAttempts {
		number := fmt.Sprintf("ORD-%06d", s.randInt(1_000_000))
		exists, err := s.orders.ExistsByNumber(ctx, number)
		if err != nil {
			return "", errors.Wrap(err, "check order number")
		}
		if !exists {
			return number, nil
		}
	}
	return "", ErrNumberExhausted
}

package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrItemNotFound is returned when a cart item does not exist or belongs
	// to a different cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrNotFound is returned when a user has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidQuantity is returned when adding a product with a
	// non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Cart is a user's mutable pre-purchase collection of product selections.
// CouponCode weakly references a coupon; it is re-validated on every read
// and at checkout rather than trusted.
type Cart struct {
	ID         string
	UserID     string
	CouponCode string
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item is a single product selection in a cart. Price is snapshot at add
// time (price lock-in): later product price changes do not affect it.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Subtotal returns the sum of quantity * price over all items.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	return sum
}

// FindItem returns the cart item with the given ID, or nil.
func (c *Cart) FindItem(itemID string) *Item {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// FindItemByProduct returns the cart item referencing the given product, or nil.
func (c *Cart) FindItemByProduct(productID string) *Item {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// Repository defines persistence operations for carts and their items.
type Repository interface {
	// GetByUser returns the user's cart with all items.
	// Returns ErrNotFound when the user has no cart yet.
	GetByUser(ctx context.Context, userID string) (*Cart, error)

	// Create persists a new empty cart.
	Create(ctx context.Context, c *Cart) error

	// AddItem persists a new cart item.
	AddItem(ctx context.Context, item *Item) error

	// UpdateItemQuantity sets the quantity of an item scoped to the cart.
	// Returns ErrItemNotFound when no such item exists in that cart.
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error

	// DeleteItem removes an item scoped to the cart.
	// Returns ErrItemNotFound when no such item exists in that cart.
	DeleteItem(ctx context.Context, cartID, itemID string) error

	// SetCouponCode attaches a coupon code to the cart, or clears it when
	// code is empty.
	SetCouponCode(ctx context.Context, cartID, code string) error

	// Clear removes all items and any attached coupon code.
	Clear(ctx context.Context, cartID string) error
}

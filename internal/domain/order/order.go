package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states. Status is the only field of
// an order that may change after creation.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no cart items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned when a requested order does not exist or
	// belongs to another user.
	ErrNotFound = errors.New("order not found")
	// ErrCannotCancel is returned when an order is not in a cancellable state.
	ErrCannotCancel = errors.New("order cannot be cancelled")
	// ErrNumberExhausted is returned when order number generation keeps
	// colliding past the retry budget.
	ErrNumberExhausted = errors.New("could not generate unique order number")
)

// Address is a structured postal address frozen into an order at creation.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is the immutable historical record of a completed purchase. All
// monetary fields and the coupon code are snapshots frozen at creation;
// CouponCode is a plain string so the record survives coupon deletion.
type Order struct {
	ID              string
	UserID          string
	OrderNumber     string
	Status          Status
	PaymentMethod   string
	PaymentID       string
	PaymentStatus   string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	CouponCode      string
	Tax             decimal.Decimal
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress Address
	BillingAddress  Address
	Items           []Item
	CreatedAt       time.Time
}

// Item is a single order line. ProductName and ProductSlug are snapshots
// immune to later catalog renames; ProductID is a plain reference.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	ProductSlug string
	Quantity    int
	Price       decimal.Decimal
	Total       decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order with all its items.
	Create(ctx context.Context, o *Order) error

	// GetByID returns an order with its items, scoped to the given user.
	// Returns ErrNotFound when no such order exists for that user.
	GetByID(ctx context.Context, userID, orderID string) (*Order, error)

	// ListByUser returns the user's orders, newest first, with items.
	ListByUser(ctx context.Context, userID string) ([]Order, error)

	// UpdateStatus sets the order's status.
	UpdateStatus(ctx context.Context, orderID string, status Status) error

	// ExistsByNumber reports whether an order with the given number exists.
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}

// Transactor runs a function inside a storage transaction. Every repository
// call made with the context it passes to fn joins the same transaction; if
// fn returns an error all writes are rolled back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

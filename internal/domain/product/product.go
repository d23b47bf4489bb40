package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a stock decrement would drive
	// the stock level below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID        string
	Name      string
	Slug      string
	Price     decimal.Decimal
	SalePrice *decimal.Decimal
	OnSale    bool
	Stock     int
	Category  string
	CreatedAt time.Time
}

// UnitPrice returns the price a buyer pays right now: the sale price when the
// product is on sale and has one set, the regular price otherwise. Cart items
// snapshot this value at add time (price lock-in).
func (p *Product) UnitPrice() decimal.Decimal {
	if p.OnSale && p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// Repository defines catalog operations. Stock is read-only for everyone
// except the checkout path, which decrements it via DecrementStock.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)

	// DecrementStock atomically subtracts quantity from the product's stock.
	// It returns ErrInsufficientStock when the product has fewer than
	// quantity units left, and ErrNotFound when the product does not exist.
	DecrementStock(ctx context.Context, id string, quantity int) error
}

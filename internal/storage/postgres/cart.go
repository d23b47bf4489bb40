package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/instrument-haven/backend/internal/domain/cart"
)

const (
	getCartByUserSQL = `SELECT id, user_id, COALESCE(coupon_code, ''), created_at, updated_at
		FROM carts WHERE user_id = $1`

	listCartItemsSQL = `SELECT id, cart_id, product_id, quantity, price, created_at
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at`

	createCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)`

	addCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`

	updateCartItemSQL = `UPDATE cart_items SET quantity = $3
		WHERE id = $2 AND cart_id = $1`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`

	setCartCouponSQL = `UPDATE carts SET coupon_code = NULLIF($2, ''), updated_at = now()
		WHERE id = $1`

	clearCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository that uses the given DB.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetByUser returns the user's cart with all items.
func (r *CartRepository) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.db.q(ctx).QueryRow(ctx, getCartByUserSQL, userID).Scan(
		&c.ID, &c.UserID, &c.CouponCode, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}

	rows, err := r.db.q(ctx).Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	c.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}

	return &c, nil
}

// Create persists a new empty cart.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := r.db.q(ctx).Exec(ctx, createCartSQL, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("creating cart for user %q: %w", c.UserID, err)
	}
	return nil
}

// AddItem persists a new cart item with its add-time price snapshot.
func (r *CartRepository) AddItem(ctx context.Context, item *cart.Item) error {
	_, err := r.db.q(ctx).Exec(ctx, addCartItemSQL,
		item.ID, item.CartID, item.ProductID, item.Quantity, item.Price,
	)
	if err != nil {
		return fmt.Errorf("adding cart item: %w", err)
	}
	return nil
}

// UpdateItemQuantity sets the quantity of an item scoped to the cart.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateCartItemSQL, cartID, itemID, quantity)
	if err != nil {
		if isInvalidID(err) {
			return cart.ErrItemNotFound
		}
		return fmt.Errorf("updating cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// DeleteItem removes an item scoped to the cart.
func (r *CartRepository) DeleteItem(ctx context.Context, cartID, itemID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteCartItemSQL, cartID, itemID)
	if err != nil {
		if isInvalidID(err) {
			return cart.ErrItemNotFound
		}
		return fmt.Errorf("deleting cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// SetCouponCode attaches a coupon code to the cart, or clears it when empty.
func (r *CartRepository) SetCouponCode(ctx context.Context, cartID, code string) error {
	_, err := r.db.q(ctx).Exec(ctx, setCartCouponSQL, cartID, code)
	if err != nil {
		return fmt.Errorf("setting coupon on cart %q: %w", cartID, err)
	}
	return nil
}

// Clear drains the cart: all items are deleted and the coupon detached.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := r.db.q(ctx).Exec(ctx, clearCartItemsSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	if _, err := r.db.q(ctx).Exec(ctx, setCartCouponSQL, cartID, ""); err != nil {
		return fmt.Errorf("clearing cart coupon %q: %w", cartID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var item cart.Item
	err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
		&item.Price, &item.CreatedAt,
	)
	return item, err
}

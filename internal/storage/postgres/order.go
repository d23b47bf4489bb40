package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/instrument-haven/backend/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, order_number, status, payment_method,
			payment_id, payment_status, subtotal, discount, coupon_code, tax, shipping_cost,
			total, shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name,
			product_slug, quantity, price, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderSQL = `SELECT id, user_id, order_number, status, payment_method, payment_id,
			payment_status, subtotal, discount, COALESCE(coupon_code, ''), tax, shipping_cost,
			total, shipping_address, billing_address, created_at
		FROM orders WHERE id = $2 AND user_id = $1`

	listOrdersSQL = `SELECT id, user_id, order_number, status, payment_method, payment_id,
			payment_status, subtotal, discount, COALESCE(coupon_code, ''), tax, shipping_cost,
			total, shipping_address, billing_address, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrderItemsSQL = `SELECT id, order_id, product_id, product_name, product_slug,
			quantity, price, total
		FROM order_items WHERE order_id = ANY($1)`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	orderNumberExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
// Addresses are serialized to JSONB columns; items live in their own table.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository that uses the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order with all its items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}

	q := r.db.q(ctx)
	_, err = q.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.OrderNumber, o.Status, o.PaymentMethod, o.PaymentID,
		o.PaymentStatus, o.Subtotal, o.Discount, nullIfEmpty(o.CouponCode),
		o.Tax, o.ShippingCost, o.Total, shipping, billing,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err = q.Exec(ctx, createOrderItemSQL,
			item.ID, item.OrderID, item.ProductID, item.ProductName,
			item.ProductSlug, item.Quantity, item.Price, item.Total,
		)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", item.ID, err)
		}
	}

	return nil
}

// GetByID returns an order with its items, scoped to the given user.
func (r *OrderRepository) GetByID(ctx context.Context, userID, orderID string) (*order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, getOrderSQL, userID, orderID)
	if err != nil {
		if isInvalidID(err) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	items, err := r.listItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]

	return &o, nil
}

// ListByUser returns the user's orders, newest first, with items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.listItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// UpdateStatus sets the order's status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateOrderStatusSQL, orderID, status)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ExistsByNumber reports whether an order with the given number exists.
func (r *OrderRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.q(ctx).QueryRow(ctx, orderNumberExistsSQL, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking order number %q: %w", number, err)
	}
	return exists, nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderIDs []string) (map[string][]order.Item, error) {
	rows, err := r.db.q(ctx).Query(ctx, listOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}

	byOrder := make(map[string][]order.Item, len(orderIDs))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                 order.Order
		shipping, billing []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentMethod,
		&o.PaymentID, &o.PaymentStatus, &o.Subtotal, &o.Discount, &o.CouponCode,
		&o.Tax, &o.ShippingCost, &o.Total, &shipping, &billing, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling billing address: %w", err)
	}
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var item order.Item
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
		&item.ProductSlug, &item.Quantity, &item.Price, &item.Total,
	)
	return item, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

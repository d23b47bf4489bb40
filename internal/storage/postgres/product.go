package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/instrument-haven/backend/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, slug, price, sale_price, on_sale, stock, category, created_at
		FROM products ORDER BY name`

	getProductByIDSQL = `SELECT id, name, slug, price, sale_price, on_sale, stock, category, created_at
		FROM products WHERE id = $1`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository that uses the given DB.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products from the catalog ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier. A malformed id maps to
// product.ErrNotFound the same way a missing row does.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		if isInvalidID(err) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// DecrementStock atomically subtracts quantity from the product's stock. The
// WHERE clause guards the invariant stock >= 0: a concurrent checkout that
// would oversell matches zero rows instead of going negative.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, quantity int) error {
	tag, err := r.db.q(ctx).Exec(ctx, decrementStockSQL, id, quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.q(ctx).QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking product %q: %w", id, err)
	}
	if !exists {
		return product.ErrNotFound
	}
	return product.ErrInsufficientStock
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Price, &p.SalePrice,
		&p.OnSale, &p.Stock, &p.Category, &p.CreatedAt,
	)
	return p, err
}

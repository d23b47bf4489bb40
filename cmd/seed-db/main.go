// Command seed-db provisions a development database: it runs migrations,
// loads the product catalog from a JSON file, and creates demo coupons and
// an admin account.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/instrument-haven/backend/internal/storage/postgres"
)

type productJSON struct {
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"sale_price"`
	OnSale    bool             `json:"on_sale"`
	Stock     int              `json:"stock"`
	Category  string           `json:"category"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminEmail, "admin-email", "admin@instrumenthaven.test", "admin account email")
	flag.StringVar(&adminPassword, "admin-password", "", "admin account password (or HAVEN_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("HAVEN_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or HAVEN_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminEmail, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAdmin(ctx, pool, adminEmail, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin user")
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, name, slug, price, sale_price, on_sale, stock, category)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (slug) DO UPDATE SET
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    sale_price = EXCLUDED.sale_price,
    on_sale = EXCLUDED.on_sale,
    stock = EXCLUDED.stock,
    category = EXCLUDED.category`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			uuid.New(), p.Name, p.Slug, p.Price, p.SalePrice, p.OnSale, p.Stock, p.Category,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		slog.Info("upserted product", slog.String("slug", p.Slug), slog.String("name", p.Name))
	}

	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (id, code, discount_type, discount_value, min_order_amount,
                     max_discount_amount, starts_at, expires_at, usage_limit, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
ON CONFLICT (code) DO UPDATE SET
    discount_type = EXCLUDED.discount_type,
    discount_value = EXCLUDED.discount_value,
    min_order_amount = EXCLUDED.min_order_amount,
    max_discount_amount = EXCLUDED.max_discount_amount,
    starts_at = EXCLUDED.starts_at,
    expires_at = EXCLUDED.expires_at,
    usage_limit = EXCLUDED.usage_limit,
    is_active = TRUE`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	type couponSeed struct {
		code         string
		discountType string
		value        decimal.Decimal
		minOrder     *decimal.Decimal
		maxDiscount  *decimal.Decimal
		usageLimit   int
	}

	dec := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	coupons := []couponSeed{
		{code: "WELCOME10", discountType: "percentage", value: decimal.NewFromInt(10)},
		{code: "STRINGS15", discountType: "percentage", value: decimal.NewFromInt(15), maxDiscount: dec("30.00")},
		{code: "TAKE25", discountType: "fixed", value: decimal.RequireFromString("25.00"), minOrder: dec("100.00")},
		{code: "VIPDEAL", discountType: "fixed", value: decimal.RequireFromString("50.00"), minOrder: dec("250.00"), usageLimit: 100},
		{code: "ENCORE20", discountType: "percentage", value: decimal.NewFromInt(20), usageLimit: 1},
	}

	now := time.Now()
	startsAt := now.AddDate(0, 0, -1)
	expiresAt := now.AddDate(1, 0, 0)

	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			uuid.New(), c.code, c.discountType, c.value, c.minOrder, c.maxDiscount,
			startsAt, expiresAt, c.usageLimit,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("type", c.discountType))
	}

	return nil
}

const upsertAdminSQL = `
INSERT INTO users (id, name, email, password_hash, is_admin)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (email) DO UPDATE SET
    password_hash = EXCLUDED.password_hash,
    is_admin = TRUE`

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	slog.Info("seeding admin account", slog.String("email", email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}

	if _, err := pool.Exec(ctx, upsertAdminSQL, uuid.New(), "Admin", email, string(hash)); err != nil {
		return errors.Wrap(err, "upsert admin user")
	}

	return nil
}

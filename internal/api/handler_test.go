package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instrument-haven/backend/internal/domain/cart"
	"github.com/instrument-haven/backend/internal/domain/coupon"
	"github.com/instrument-haven/backend/internal/domain/order"
	"github.com/instrument-haven/backend/internal/domain/product"
	"github.com/instrument-haven/backend/internal/domain/user"
)

// --- In-memory repositories ---

type memUserRepo struct {
	byEmail map[string]*user.User
	byID    map[string]*user.User
}

func (m *memUserRepo) Create(_ context.Context, u *user.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return user.ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type memTokenRepo struct {
	byHash map[string]string
}

func (m *memTokenRepo) Create(_ context.Context, userID, tokenHash string) error {
	m.byHash[tokenHash] = userID
	return nil
}

func (m *memTokenRepo) FindUserIDByHash(_ context.Context, tokenHash string) (string, error) {
	userID, ok := m.byHash[tokenHash]
	if !ok {
		return "", user.ErrInvalidCredentials
	}
	return userID, nil
}

type memProductRepo struct {
	byID map[string]*product.Product
}

func (m *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *memProductRepo) DecrementStock(_ context.Context, id string, quantity int) error {
	p, ok := m.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock < quantity {
		return product.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

type memCartRepo struct {
	byUser map[string]*cart.Cart
	items  map[string][]cart.Item
}

func (m *memCartRepo) GetByUser(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := m.byUser[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return &cart.Cart{
		ID:         c.ID,
		UserID:     c.UserID,
		CouponCode: c.CouponCode,
		Items:      slices.Clone(m.items[c.ID]),
	}, nil
}

func (m *memCartRepo) Create(_ context.Context, c *cart.Cart) error {
	m.byUser[c.UserID] = &cart.Cart{ID: c.ID, UserID: c.UserID}
	return nil
}

func (m *memCartRepo) AddItem(_ context.Context, item *cart.Item) error {
	m.items[item.CartID] = append(m.items[item.CartID], *item)
	return nil
}

func (m *memCartRepo) UpdateItemQuantity(_ context.Context, cartID, itemID string, quantity int) error {
	for i := range m.items[cartID] {
		if m.items[cartID][i].ID == itemID {
			m.items[cartID][i].Quantity = quantity
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (m *memCartRepo) DeleteItem(_ context.Context, cartID, itemID string) error {
	items := m.items[cartID]
	for i := range items {
		if items[i].ID == itemID {
			m.items[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (m *memCartRepo) SetCouponCode(_ context.Context, cartID, code string) error {
	for _, c := range m.byUser {
		if c.ID == cartID {
			c.CouponCode = code
			return nil
		}
	}
	return cart.ErrNotFound
}

func (m *memCartRepo) Clear(_ context.Context, cartID string) error {
	delete(m.items, cartID)
	for _, c := range m.byUser {
		if c.ID == cartID {
			c.CouponCode = ""
		}
	}
	return nil
}

type memCouponRepo struct {
	byCode map[string]*coupon.Coupon
}

func (m *memCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return c, nil
}

func (m *memCouponRepo) IncrementUsage(_ context.Context, code string) error {
	c, ok := m.byCode[code]
	if !ok {
		return coupon.ErrInvalidCoupon
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return coupon.ErrUsageLimitReached
	}
	c.UsageCount++
	return nil
}

type memOrderRepo struct {
	orders []*order.Order
}

func (m *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.orders = append(m.orders, o)
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, userID, orderID string) (*order.Order, error) {
	for _, o := range m.orders {
		if o.ID == orderID && o.UserID == userID {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].UserID == userID {
			out = append(out, *m.orders[i])
		}
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, orderID string, status order.Status) error {
	for _, o := range m.orders {
		if o.ID == orderID {
			o.Status = status
			return nil
		}
	}
	return order.ErrNotFound
}

func (m *memOrderRepo) ExistsByNumber(_ context.Context, number string) (bool, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

type noopTx struct{}

func (noopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Test harness ---

type testEnv struct {
	mux      *http.ServeMux
	products *memProductRepo
	coupons  *memCouponRepo
	orders   *memOrderRepo
}

func newTestEnv() *testEnv {
	products := &memProductRepo{byID: map[string]*product.Product{}}
	coupons := &memCouponRepo{byCode: map[string]*coupon.Coupon{}}
	orders := &memOrderRepo{}
	carts := &memCartRepo{
		byUser: map[string]*cart.Cart{},
		items:  map[string][]cart.Item{},
	}

	validator := coupon.NewValidator()
	userSvc := user.NewService(
		&memUserRepo{byEmail: map[string]*user.User{}, byID: map[string]*user.User{}},
		&memTokenRepo{byHash: map[string]string{}},
		[]byte("test-pepper"),
	)
	cartSvc := cart.NewService(carts, products, coupons, validator)
	orderSvc := order.NewService(carts, products, coupons, validator, orders, noopTx{}, order.DefaultConfig())

	h := NewHandler(userSvc, products, cartSvc, orderSvc, orders)
	mux := http.NewServeMux()
	h.Routes(mux)

	return &testEnv{mux: mux, products: products, coupons: coupons, orders: orders}
}

func (e *testEnv) addProduct(id, name, price string, stock int) {
	e.products.byID[id] = &product.Product{
		ID:    id,
		Name:  name,
		Slug:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func (e *testEnv) addCoupon(c *coupon.Coupon) {
	e.coupons.byCode[c.Code] = c
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "long-enough-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Tests ---

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[authResponse](t, rec)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.Token)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_ShortPassword(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCartRequiresAuth(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cart", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProducts(t *testing.T) {
	env := newTestEnv()
	env.addProduct("p1", "strat", "849.99", 5)

	rec := env.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]productResponse](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, "strat", products[0].Name)

	rec = env.do(t, http.MethodGet, "/api/products/p1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv()
	env.addProduct("p1", "strat", "100.00", 5)
	token := env.register(t, "buyer@example.com")

	// Empty cart on first read.
	rec := env.do(t, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[cartResponse](t, rec)
	assert.Empty(t, c.Items)

	// Add two units.
	rec = env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": "p1",
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c = decode[cartResponse](t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("200.00").Equal(c.Subtotal))

	// Adding the same product again merges.
	rec = env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": "p1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	c = decode[cartResponse](t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	// Update the quantity.
	itemID := c.Items[0].ID
	rec = env.do(t, http.MethodPut, "/api/cart/items/"+itemID, token, map[string]int{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	c = decode[cartResponse](t, rec)
	assert.Equal(t, 1, c.Items[0].Quantity)

	// Remove the item.
	rec = env.do(t, http.MethodDelete, "/api/cart/items/"+itemID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c = decode[cartResponse](t, rec)
	assert.Empty(t, c.Items)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	env := newTestEnv()
	token := env.register(t, "buyer@example.com")

	rec := env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyCoupon(t *testing.T) {
	env := newTestEnv()
	env.addProduct("p1", "strat", "200.00", 5)
	env.addCoupon(&coupon.Coupon{
		ID:            "c1",
		Code:          "SAVE10",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		ExpiresAt:     farFuture(),
		Active:        true,
	})
	token := env.register(t, "buyer@example.com")

	rec := env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown code is rejected.
	rec = env.do(t, http.MethodPost, "/api/cart/apply-coupon", token, map[string]string{"code": "BOGUS"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Codes are case-sensitive.
	rec = env.do(t, http.MethodPost, "/api/cart/apply-coupon", token, map[string]string{"code": "save10"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/cart/apply-coupon", token, map[string]string{"code": "SAVE10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[cartResponse](t, rec)
	assert.Equal(t, "SAVE10", c.CouponCode)
	assert.True(t, decimal.RequireFromString("20.00").Equal(c.Discount), "got %s", c.Discount)
	assert.True(t, decimal.RequireFromString("180.00").Equal(c.Total), "got %s", c.Total)

	rec = env.do(t, http.MethodPost, "/api/cart/remove-coupon", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c = decode[cartResponse](t, rec)
	assert.Empty(t, c.CouponCode)
	assert.True(t, c.Discount.IsZero())
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv()
	env.addProduct("p1", "strat", "100.00", 5)
	token := env.register(t, "buyer@example.com")

	rec := env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": "p1",
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/orders", token, map[string]any{
		"payment_method": "card",
		"shipping_address": map[string]string{
			"name": "Ada", "line1": "1 Main St", "city": "Springfield",
			"state": "IL", "postal_code": "62701", "country": "US",
		},
		"billing_address": map[string]string{
			"name": "Ada", "line1": "1 Main St", "city": "Springfield",
			"state": "IL", "postal_code": "62701", "country": "US",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[orderResponse](t, rec)

	// subtotal 200, tax 12.00, shipping 10.00
	assert.Regexp(t, `^ORD-\d{6}$`, o.OrderNumber)
	assert.Equal(t, "processing", o.Status)
	assert.True(t, decimal.RequireFromString("222.00").Equal(o.Total), "got %s", o.Total)

	// Stock was decremented and the cart drained.
	assert.Equal(t, 3, env.products.byID["p1"].Stock)
	rec = env.do(t, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[cartResponse](t, rec)
	assert.Empty(t, c.Items)

	// The order shows up in history and can be fetched.
	rec = env.do(t, http.MethodGet, "/api/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]orderResponse](t, rec)
	require.Len(t, list, 1)

	rec = env.do(t, http.MethodGet, "/api/orders/"+o.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Cancel while processing.
	rec = env.do(t, http.MethodPut, "/api/orders/"+o.ID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[orderResponse](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)

	// Cancelling twice fails.
	rec = env.do(t, http.MethodPut, "/api/orders/"+o.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv()
	token := env.register(t, "buyer@example.com")

	rec := env.do(t, http.MethodPost, "/api/orders", token, map[string]any{"payment_method": "card"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	env.addProduct("p1", "strat", "100.00", 1)
	token := env.register(t, "buyer@example.com")

	rec := env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": "p1",
		"quantity":   3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/orders", token, map[string]any{"payment_method": "card"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrders_ScopedToUser(t *testing.T) {
	env := newTestEnv()
	env.addProduct("p1", "strat", "100.00", 5)
	buyer := env.register(t, "buyer@example.com")
	other := env.register(t, "other@example.com")

	rec := env.do(t, http.MethodPost, "/api/cart/items", buyer, map[string]any{"product_id": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/orders", buyer, map[string]any{"payment_method": "card"})
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decode[orderResponse](t, rec)

	rec = env.do(t, http.MethodGet, "/api/orders/"+o.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func farFuture() time.Time {
	return time.Now().AddDate(10, 0, 0)
}

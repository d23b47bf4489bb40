//go:build integration

package integration

import (
	"math"
	"net/http"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func TestProducts_MalformedID(t *testing.T) {
	resp := doGet(t, "/api/products/not-a-uuid")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCart_RequiresAuth(t *testing.T) {
	resp := doGet(t, "/api/cart")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCart_EmptyOnFirstUse(t *testing.T) {
	token := registerUser(t, "cart-empty@example.com")

	resp := doRequest(t, http.MethodGet, "/api/cart", token, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	c := decodeJSON[cartResponse](t, resp)
	if len(c.Items) != 0 {
		t.Errorf("expected empty cart, got %d items", len(c.Items))
	}
	if c.Total != 0 {
		t.Errorf("total: got %v, want 0", c.Total)
	}
}

func TestCart_AddUpdateRemove(t *testing.T) {
	token := registerUser(t, "cart-flow@example.com")
	mic := findProduct(t, "shure-sm58-vocal-microphone") // $99.00

	resp := doRequest(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": mic.ID,
		"quantity":   2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", resp.StatusCode)
	}
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if len(c.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(c.Items))
	}
	if !approxEqual(c.Subtotal, 198.00) {
		t.Errorf("subtotal: got %v, want 198.00", c.Subtotal)
	}

	// Same product again merges into the existing line.
	resp = doRequest(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": mic.ID,
		"quantity":   1,
	})
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", c.Items)
	}

	// Shrink the line back down.
	itemID := c.Items[0].ID
	resp = doRequest(t, http.MethodPut, "/api/cart/items/"+itemID, token, map[string]int{"quantity": 1})
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if c.Items[0].Quantity != 1 {
		t.Errorf("quantity: got %d, want 1", c.Items[0].Quantity)
	}
	if !approxEqual(c.Subtotal, 99.00) {
		t.Errorf("subtotal: got %v, want 99.00", c.Subtotal)
	}

	// Remove the line.
	resp = doRequest(t, http.MethodDelete, "/api/cart/items/"+itemID, token, nil)
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if len(c.Items) != 0 {
		t.Errorf("expected empty cart, got %d items", len(c.Items))
	}
}

func TestCart_SalePriceSnapshot(t *testing.T) {
	token := registerUser(t, "cart-sale@example.com")
	pedal := findProduct(t, "boss-ds1-distortion-pedal") // on sale at $54.99

	resp := doRequest(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": pedal.ID,
	})
	defer resp.Body.Close()

	c := decodeJSON[cartResponse](t, resp)
	if len(c.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(c.Items))
	}
	if !approxEqual(c.Items[0].Price, 54.99) {
		t.Errorf("price snapshot: got %v, want the sale price 54.99", c.Items[0].Price)
	}
}

func TestCart_ApplyPercentageCoupon(t *testing.T) {
	token := registerUser(t, "cart-coupon@example.com")
	mic := findProduct(t, "shure-sm58-vocal-microphone") // $99.00

	resp := doRequest(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": mic.ID,
		"quantity":   2,
	})
	resp.Body.Close()

	// WELCOME10 is seeded: 10% off, no constraints.
	resp = doRequest(t, http.MethodPost, "/api/cart/apply-coupon", token, map[string]string{"code": "WELCOME10"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply coupon: expected 200, got %d", resp.StatusCode)
	}
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if c.CouponCode != "WELCOME10" {
		t.Errorf("coupon_code: got %q", c.CouponCode)
	}
	if !approxEqual(c.Discount, 19.80) {
		t.Errorf("discount: got %v, want 19.80", c.Discount)
	}
	if !approxEqual(c.Total, 178.20) {
		t.Errorf("total: got %v, want 178.20", c.Total)
	}

	resp = doRequest(t, http.MethodPost, "/api/cart/remove-coupon", token, nil)
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if c.CouponCode != "" || c.Discount != 0 {
		t.Errorf("coupon not removed: %+v", c)
	}
}

func TestCart_CouponUnknownCode(t *testing.T) {
	token := registerUser(t, "cart-badcoupon@example.com")

	resp := doRequest(t, http.MethodPost, "/api/cart/apply-coupon", token, map[string]string{"code": "NOPE123"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCart_CouponMinOrderNotMet(t *testing.T) {
	token := registerUser(t, "cart-minorder@example.com")
	strings := findProduct(t, "ernie-ball-regular-slinky-strings") // $6.99

	resp := doRequest(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": strings.ID,
	})
	resp.Body.Close()

	// TAKE25 requires a $100.00 subtotal.
	resp = doRequest(t, http.MethodPost, "/api/cart/apply-coupon", token, map[string]string{"code": "TAKE25"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

// Package api exposes the storefront over HTTP+JSON. Handlers decode
// requests, delegate to the domain services, and map domain errors to the
// {code, message} error body shared by every endpoint.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/instrument-haven/backend/internal/domain/cart"
	"github.com/instrument-haven/backend/internal/domain/order"
	"github.com/instrument-haven/backend/internal/domain/product"
	"github.com/instrument-haven/backend/internal/domain/user"
)

// Handler implements all API endpoints, delegating business logic to the
// injected domain services and repositories.
type Handler struct {
	users    *user.Service
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	history  order.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	users *user.Service,
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	history order.Repository,
) *Handler {
	return &Handler{
		users:    users,
		products: products,
		carts:    carts,
		orders:   orders,
		history:  history,
	}
}

// Routes registers every endpoint on the mux. Cart and order routes require
// a bearer token; auth and catalog routes are public.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.Handle("GET /api/cart", h.requireAuth(h.GetCart))
	mux.Handle("POST /api/cart/items", h.requireAuth(h.AddCartItem))
	mux.Handle("PUT /api/cart/items/{id}", h.requireAuth(h.UpdateCartItem))
	mux.Handle("DELETE /api/cart/items/{id}", h.requireAuth(h.RemoveCartItem))
	mux.Handle("POST /api/cart/apply-coupon", h.requireAuth(h.ApplyCoupon))
	mux.Handle("POST /api/cart/remove-coupon", h.requireAuth(h.RemoveCoupon))

	mux.Handle("POST /api/orders", h.requireAuth(h.CreateOrder))
	mux.Handle("GET /api/orders", h.requireAuth(h.ListOrders))
	mux.Handle("GET /api/orders/{id}", h.requireAuth(h.GetOrder))
	mux.Handle("PUT /api/orders/{id}/cancel", h.requireAuth(h.CancelOrder))
}

// errorResponse is the JSON error body for every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: message})
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

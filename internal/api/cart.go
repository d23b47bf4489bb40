package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/instrument-haven/backend/internal/domain/cart"
)

type cartItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type cartResponse struct {
	ID         string             `json:"id"`
	Items      []cartItemResponse `json:"items"`
	CouponCode string             `json:"coupon_code,omitempty"`
	Subtotal   decimal.Decimal    `json:"subtotal"`
	Discount   decimal.Decimal    `json:"discount"`
	Total      decimal.Decimal    `json:"total"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

// GetCart returns the caller's cart snapshot, creating an empty cart on
// first use.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.Get(r.Context(), userID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(snap))
}

// AddCartItem adds a product to the caller's cart. Quantity defaults to 1.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "quantity must be greater than 0")
		return
	}

	snap, err := h.carts.AddProduct(r.Context(), userID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(snap))
}

// UpdateCartItem sets a cart item's quantity. A quantity below 1 is rejected
// here; removal goes through DELETE.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity < 1 {
		writeError(w, r, http.StatusUnprocessableEntity, "quantity must be greater than 0")
		return
	}

	snap, err := h.carts.UpdateItemQuantity(r.Context(), userID(r.Context()), r.PathValue("id"), req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(snap))
}

// RemoveCartItem deletes a cart item.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.RemoveItem(r.Context(), userID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(snap))
}

// ApplyCoupon validates a coupon against the cart and attaches it.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "code is required")
		return
	}

	snap, err := h.carts.ApplyCoupon(r.Context(), userID(r.Context()), req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(snap))
}

// RemoveCoupon detaches any coupon from the cart.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.RemoveCoupon(r.Context(), userID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(snap))
}

func toCartResponse(snap *cart.Snapshot) cartResponse {
	items := make([]cartItemResponse, len(snap.Cart.Items))
	for i, item := range snap.Cart.Items {
		items[i] = cartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return cartResponse{
		ID:         snap.Cart.ID,
		Items:      items,
		CouponCode: snap.Cart.CouponCode,
		Subtotal:   snap.Subtotal,
		Discount:   snap.Discount,
		Total:      snap.Total,
	}
}

package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/instrument-haven/backend/internal/domain/order"
)

type createOrderRequest struct {
	PaymentMethod   string        `json:"payment_method"`
	PaymentID       string        `json:"payment_id"`
	ShippingAddress order.Address `json:"shipping_address"`
	BillingAddress  order.Address `json:"billing_address"`
}

type orderItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSlug string          `json:"product_slug"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Discount        decimal.Decimal     `json:"discount"`
	CouponCode      string              `json:"coupon_code,omitempty"`
	Tax             decimal.Decimal     `json:"tax"`
	ShippingCost    decimal.Decimal     `json:"shipping_cost"`
	Total           decimal.Decimal     `json:"total"`
	ShippingAddress order.Address       `json:"shipping_address"`
	BillingAddress  order.Address       `json:"billing_address"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

// CreateOrder converts the caller's cart into an order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "payment_method is required")
		return
	}

	o, err := h.orders.CreateFromCart(r.Context(), userID(r.Context()), order.CheckoutRequest{
		PaymentMethod:   req.PaymentMethod,
		PaymentID:       req.PaymentID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.history.ListByUser(r.Context(), userID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, r, http.StatusOK, out)
}

// GetOrder returns one of the caller's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.history.GetByID(r.Context(), userID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// CancelOrder transitions a processing order to cancelled.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), userID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSlug: item.ProductSlug,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Total:       item.Total,
		}
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		CouponCode:      o.CouponCode,
		Tax:             o.Tax,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

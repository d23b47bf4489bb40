package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/instrument-haven/backend/internal/domain/product"
)

type productResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	OnSale    bool             `json:"on_sale"`
	Stock     int              `json:"stock"`
	Category  string           `json:"category"`
	CreatedAt time.Time        `json:"created_at"`
}

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(&p)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProductResponse(p))
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Price:     p.Price,
		SalePrice: p.SalePrice,
		OnSale:    p.OnSale,
		Stock:     p.Stock,
		Category:  p.Category,
		CreatedAt: p.CreatedAt,
	}
}

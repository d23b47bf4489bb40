package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/instrument-haven/backend/internal/domain/cart"
	"github.com/instrument-haven/backend/internal/domain/coupon"
	"github.com/instrument-haven/backend/internal/domain/order"
	"github.com/instrument-haven/backend/internal/domain/product"
	"github.com/instrument-haven/backend/internal/domain/user"
)

// respondError maps a domain error to its HTTP status and message. Coupon
// failures keep their specific reason (expired, below minimum, exhausted) so
// the storefront can show it to the buyer. Unrecognized errors are logged and
// returned as an opaque 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		writeError(w, r, http.StatusNotFound, rootMessage(err))

	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrMinOrderNotMet),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrCannotCancel):
		writeError(w, r, http.StatusUnprocessableEntity, rootMessage(err))

	case errors.Is(err, product.ErrInsufficientStock):
		writeError(w, r, http.StatusConflict, rootMessage(err))

	case errors.Is(err, user.ErrEmailTaken):
		writeError(w, r, http.StatusUnprocessableEntity, rootMessage(err))

	case errors.Is(err, user.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, rootMessage(err))

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage unwraps to the innermost error so wrapped context like
// "increment coupon usage: ..." does not leak into user-facing messages.
func rootMessage(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}

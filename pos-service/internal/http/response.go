package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_pos/pos-service/internal/cart"
	"github.com/fjod/go_pos/pos-service/internal/catalog"
	"github.com/fjod/go_pos/pos-service/internal/checkout"
	"github.com/fjod/go_pos/pos-service/internal/orders"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, "")
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// errorStatus maps engine errors to HTTP status, error code and details.
func errorStatus(err error) (int, string, string) {
	var stockChanged *checkout.StockChangedError
	var declined *checkout.PaymentDeclinedError
	var persist *checkout.PostPaymentPersistenceError

	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "not_found", ""
	case errors.Is(err, catalog.ErrInvalidBarcode), errors.Is(err, cart.ErrMerchantRequired):
		return http.StatusBadRequest, "invalid_request", ""
	case errors.Is(err, cart.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock", ""
	case errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, "line_not_found", ""
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart", ""
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		return http.StatusBadRequest, "invalid_payment_method", ""
	case errors.As(err, &stockChanged):
		return http.StatusConflict, "stock_changed", fmt.Sprintf("barcode=%s available=%d", stockChanged.Line.Barcode, stockChanged.Available)
	case errors.As(err, &declined):
		return http.StatusPaymentRequired, "payment_declined", declined.Reason
	case errors.As(err, &persist):
		return http.StatusInternalServerError, "post_payment_persistence_failure",
			fmt.Sprintf("order_id=%s payment_ref=%s", persist.Order.ID, persist.Order.PaymentRef)
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "busy", "merchant cart is locked by another operation"
	default:
		return http.StatusInternalServerError, "internal_error", ""
	}
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError && code == "internal_error" {
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal server error"
	}
	respondErrorDetails(w, status, code, message, details)
}

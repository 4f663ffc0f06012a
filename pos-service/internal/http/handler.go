package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/fjod/go_pos/pos-service/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MerchantHeader = "X-Merchant-ID"

type CartService interface {
	Scan(ctx context.Context, merchantID, barcode string) (*domain.Cart, error)
	Remove(ctx context.Context, merchantID, barcode string) (*domain.Cart, error)
	Clear(ctx context.Context, merchantID string) (*domain.Cart, error)
	Summary(ctx context.Context, merchantID string) (*domain.Cart, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, merchantID string, method domain.PaymentMethod) (*domain.Order, error)
}

type AnalyticsReader interface {
	Snapshot(merchantID string) domain.AnalyticsSnapshot
	Global() domain.AnalyticsSnapshot
}

type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.Order, error)
}

type EventSubscriber interface {
	Subscribe(merchantID string) *events.Subscription
}

type Handler struct {
	carts     CartService
	checkout  CheckoutService
	analytics AnalyticsReader
	orders    OrderReader
	events    EventSubscriber
	log       *zap.Logger

	maxBodyBytes int64
	heartbeat    time.Duration
}

type Deps struct {
	Carts     CartService
	Checkout  CheckoutService
	Analytics AnalyticsReader
	Orders    OrderReader
	Events    EventSubscriber
	Log       *zap.Logger
}

func NewHandler(d Deps, maxBodyBytes int64, heartbeat time.Duration) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Handler{
		carts:        d.Carts,
		checkout:     d.Checkout,
		analytics:    d.Analytics,
		orders:       d.Orders,
		events:       d.Events,
		log:          log,
		maxBodyBytes: maxBodyBytes,
		heartbeat:    heartbeat,
	}
}

type BarcodeRequestDTO struct {
	Barcode    string `json:"barcode"`
	MerchantID string `json:"merchantId"`
}

type CheckoutRequestDTO struct {
	MerchantID    string `json:"merchantId"`
	PaymentMethod string `json:"paymentMethod"`
}

type MerchantRequestDTO struct {
	MerchantID string `json:"merchantId"`
}

type CartResponseDTO struct {
	Cart *domain.Cart `json:"cart"`
}

type OrderResponseDTO struct {
	Order *domain.Order `json:"order"`
}

type OrdersResponseDTO struct {
	Orders []*domain.Order `json:"orders"`
}

var errBadJSON = errors.New("invalid JSON body")

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadJSON
	}
	return nil
}

// merchantID prefers the explicit value and falls back to the header set by
// the upstream gateway.
func merchantID(r *http.Request, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("merchantId")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(MerchantHeader))
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req BarcodeRequestDTO
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mid := merchantID(r, req.MerchantID)
	if mid == "" || strings.TrimSpace(req.Barcode) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "barcode and merchantId are required")
		return
	}

	c, err := h.carts.Scan(r.Context(), mid, strings.TrimSpace(req.Barcode))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponseDTO{Cart: c})
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	var req BarcodeRequestDTO
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mid := merchantID(r, req.MerchantID)
	if mid == "" || strings.TrimSpace(req.Barcode) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "barcode and merchantId are required")
		return
	}

	c, err := h.carts.Remove(r.Context(), mid, strings.TrimSpace(req.Barcode))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponseDTO{Cart: c})
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	var req MerchantRequestDTO
	if r.Body != nil && r.Body != http.NoBody {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		// empty body is allowed, the merchant may come from the query or header
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid_request", errBadJSON.Error())
			return
		}
	}
	mid := merchantID(r, req.MerchantID)
	if mid == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "merchantId is required")
		return
	}

	c, err := h.carts.Clear(r.Context(), mid)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponseDTO{Cart: c})
}

func (h *Handler) CartSummary(w http.ResponseWriter, r *http.Request) {
	mid := merchantID(r, "")
	if mid == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "merchantId is required")
		return
	}

	c, err := h.carts.Summary(r.Context(), mid)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponseDTO{Cart: c})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mid := merchantID(r, req.MerchantID)
	if mid == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "merchantId is required")
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
		return
	}

	order, err := h.checkout.Checkout(r.Context(), mid, method)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderResponseDTO{Order: order})
}

// Analytics returns the merchant's counters, or the global roll-up when no
// merchant is given.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	mid := merchantID(r, "")
	if mid == "" {
		respondJSON(w, http.StatusOK, h.analytics.Global())
		return
	}
	respondJSON(w, http.StatusOK, h.analytics.Snapshot(mid))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	mid := merchantID(r, "")
	if mid == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "merchantId is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.orders.ListOrdersByMerchant(r.Context(), mid, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: list})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if mid := merchantID(r, ""); mid != "" && mid != order.MerchantID {
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, OrderResponseDTO{Order: order})
}

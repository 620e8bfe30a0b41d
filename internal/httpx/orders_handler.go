package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (orders.Order, error)
	TransitionStatus(ctx context.Context, orderID string, status orders.Status, estimatedMinutes *int) (orders.Order, error)
	UpdatePayment(ctx context.Context, orderID string, ps orders.PaymentStatus) (orders.Order, error)
	Order(ctx context.Context, id string) (orders.Order, error)
	StoreOrders(ctx context.Context, slug string, since time.Time, limit int) ([]orders.Order, error)
}

// Idempotency is satisfied by *redisx.Idempotency.
type Idempotency interface {
	Lookup(ctx context.Context, key string) ([]byte, bool)
	Remember(ctx context.Context, key string, resp []byte) error
}

type OrdersHandler struct {
	Orders  OrderService
	Idem    Idempotency // optional
	Limiter *RateLimiter
	Log     *zap.Logger
}

type CreateOrderResp struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"orderNumber"`
	Status        orders.Status `json:"status"`
	Subtotal      float64       `json:"subtotal"`
	Tax           float64       `json:"tax"`
	Discount      float64       `json:"discount"`
	Total         float64       `json:"total"`
	EstimatedTime int           `json:"estimatedTime"`
}

type UpdateStatusReq struct {
	Status        orders.Status `json:"status"`
	EstimatedTime *int          `json:"estimatedTime,omitempty"`
}

type UpdateStatusResp struct {
	ID            string        `json:"id"`
	Status        orders.Status `json:"status"`
	EstimatedTime int           `json:"estimatedTime"`
	DeliveredAt   *time.Time    `json:"deliveredAt"`
}

type UpdatePaymentReq struct {
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
}

type UpdatePaymentResp struct {
	ID            string               `json:"id"`
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
	Status        orders.Status        `json:"status"`
}

type ItemView struct {
	MenuItemID string  `json:"menuItemId"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	Notes      string  `json:"notes,omitempty"`
}

type OrderView struct {
	ID            string               `json:"id"`
	OrderNumber   string               `json:"orderNumber"`
	StoreSlug     string               `json:"storeSlug"`
	CustomerName  string               `json:"customerName"`
	Status        orders.Status        `json:"status"`
	PaymentMethod orders.PaymentMethod `json:"paymentMethod"`
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
	Subtotal      float64              `json:"subtotal"`
	Tax           float64              `json:"tax"`
	Discount      float64              `json:"discount"`
	Total         float64              `json:"total"`
	Notes         string               `json:"notes,omitempty"`
	EstimatedTime int                  `json:"estimatedTime"`
	DeliveredAt   *time.Time           `json:"deliveredAt"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
	Items         []ItemView           `json:"items"`
}

func toView(o orders.Order) OrderView {
	v := OrderView{
		ID:            o.ID,
		OrderNumber:   o.Number,
		StoreSlug:     o.StoreSlug,
		CustomerName:  o.CustomerName,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Subtotal:      o.Subtotal.InexactFloat64(),
		Tax:           o.Tax.InexactFloat64(),
		Discount:      o.Discount.InexactFloat64(),
		Total:         o.Total.InexactFloat64(),
		Notes:         o.Notes,
		EstimatedTime: o.EstimatedMinutes,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Items:         make([]ItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, ItemView{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.InexactFloat64(),
			Notes:      it.Notes,
		})
	}
	return v
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		if h.Limiter != nil {
			r.With(h.Limiter.Middleware).Post("/orders", h.createOrder)
		} else {
			r.Post("/orders", h.createOrder)
		}
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}/status", h.updateStatus)
		r.Put("/orders/{id}/payment", h.updatePayment)
		r.Get("/stores/{slug}/orders", h.listStoreOrders)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if msg := validateBody(createOrderLoader, body); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	var req orders.CreateOrderInput
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	idemKey := r.Header.Get("Idempotency-Key")
	if h.Idem != nil && idemKey != "" {
		if cached, ok := h.Idem.Lookup(ctx, idemKey); ok {
			w.Header().Set("Idempotent-Replay", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(cached)
			return
		}
	}

	o, err := h.Orders.CreateOrder(ctx, req)
	if err != nil {
		h.writeCreateError(w, r, err)
		return
	}

	resp := CreateOrderResp{
		ID:            o.ID,
		OrderNumber:   o.Number,
		Status:        o.Status,
		Subtotal:      o.Subtotal.InexactFloat64(),
		Tax:           o.Tax.InexactFloat64(),
		Discount:      o.Discount.InexactFloat64(),
		Total:         o.Total.InexactFloat64(),
		EstimatedTime: o.EstimatedMinutes,
	}
	if h.Idem != nil && idemKey != "" {
		if b, err := json.Marshal(resp); err == nil {
			_ = h.Idem.Remember(ctx, idemKey, b)
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrdersHandler) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrValidation),
		errors.Is(err, orders.ErrInvalidItem),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidCoupon):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error("create order failed",
			zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(orders.Cause(err)))
		writeError(w, http.StatusInternalServerError, orders.ErrTransactionAborted.Error())
	}
}

// writeUpdateError keeps staff-facing failures generic apart from a missing
// order.
func (h *OrdersHandler) writeUpdateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "update failed")
	case errors.Is(err, orders.ErrValidation):
		writeError(w, http.StatusBadRequest, "update failed")
	default:
		h.Log.Error("order update failed",
			zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(orders.Cause(err)))
		writeError(w, http.StatusInternalServerError, "update failed")
	}
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.TransitionStatus(ctx, id, req.Status, req.EstimatedTime)
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateStatusResp{
		ID:            o.ID,
		Status:        o.Status,
		EstimatedTime: o.EstimatedMinutes,
		DeliveredAt:   o.DeliveredAt,
	})
}

func (h *OrdersHandler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdatePayment(ctx, id, req.PaymentStatus)
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdatePaymentResp{ID: o.ID, PaymentStatus: o.PaymentStatus, Status: o.Status})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Order(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.Log.Error("load order failed", zap.String("order_id", id), zap.Error(orders.Cause(err)))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toView(o))
}

func (h *OrdersHandler) listStoreOrders(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	since := orders.StartOfDay(time.Now())
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.StoreOrders(ctx, slug, since, limit)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "store not found")
		return
	}
	if err != nil {
		h.Log.Error("list store orders failed", zap.String("store", slug), zap.Error(orders.Cause(err)))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, toView(o))
	}
	writeJSON(w, http.StatusOK, out)
}

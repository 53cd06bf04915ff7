package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront/orderflow/internal/order/application"
	"github.com/storefront/orderflow/internal/order/domain"
	"github.com/storefront/orderflow/pkg/apperr"
	"github.com/storefront/orderflow/pkg/auth"
	"github.com/storefront/orderflow/pkg/metrics"
)

type Handler struct {
	log     *slog.Logger
	service *application.Orchestrator
	tracer  trace.Tracer
	metrics *metrics.ServerMetrics
}

func NewHandler(log *slog.Logger, service *application.Orchestrator, m *metrics.ServerMetrics) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
		metrics: m,
	}
}

// Routes returns the authenticated order API. The JWT middleware is mounted
// by the caller so the secret stays in main. Creation and history are
// customer routes; confirm/cancel rely on the ownership check instead, and
// reads admit admins so the shipment guard can verify orders.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleCustomer))
		r.Post("/orders", h.createOrder)
		r.Get("/orders/history", h.listHistory)
	})
	r.Put("/orders/confirm", h.confirmOrder)
	r.Put("/orders/cancel", h.cancelOrder)
	r.Get("/orders/{id}", h.getOrder)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()
	start := time.Now()

	claims, ok := auth.FromContext(ctx)
	if !ok {
		h.writeError(w, "create_order", start, apperr.New(apperr.Unauthenticated, "missing credentials"))
		return
	}

	o, err := h.service.CreateOrder(ctx, claims.UserID)
	if err != nil {
		h.writeError(w, "create_order", start, err)
		return
	}
	h.writeJSON(w, "create_order", start, http.StatusCreated, map[string]any{"order": o})
}

type orderIDReq struct {
	OrderID string `json:"order_id"`
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmOrder")
	defer span.End()
	h.transition(ctx, w, r, "confirm_order", h.service.ConfirmOrder)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()
	h.transition(ctx, w, r, "cancel_order", h.service.CancelOrder)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()
	start := time.Now()

	claims, ok := auth.FromContext(ctx)
	if !ok {
		h.writeError(w, "get_order", start, apperr.New(apperr.Unauthenticated, "missing credentials"))
		return
	}

	o, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "get_order", start, err)
		return
	}
	if o.UserID != claims.UserID && claims.Role != auth.RoleAdmin {
		// Hide existence from non-owners.
		h.writeError(w, "get_order", start, apperr.New(apperr.NotFound, "order not found"))
		return
	}
	h.writeJSON(w, "get_order", start, http.StatusOK, map[string]any{"order": o})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListHistory")
	defer span.End()
	start := time.Now()

	claims, ok := auth.FromContext(ctx)
	if !ok {
		h.writeError(w, "list_history", start, apperr.New(apperr.Unauthenticated, "missing credentials"))
		return
	}

	orders, err := h.service.ListHistory(ctx, claims.UserID)
	if err != nil {
		h.writeError(w, "list_history", start, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{} // keep "orders":[] in the response
	}
	h.writeJSON(w, "list_history", start, http.StatusOK, map[string]any{"orders": orders})
}

type transitionFunc func(ctx context.Context, orderID, callerID string) (domain.Order, error)

func (h *Handler) transition(ctx context.Context, w http.ResponseWriter, r *http.Request, name string, fn transitionFunc) {
	start := time.Now()

	claims, ok := auth.FromContext(ctx)
	if !ok {
		h.writeError(w, name, start, apperr.New(apperr.Unauthenticated, "missing credentials"))
		return
	}

	var req orderIDReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		h.writeError(w, name, start, apperr.New(apperr.Validation, "order_id is required"))
		return
	}

	o, err := fn(ctx, req.OrderID, claims.UserID)
	if err != nil {
		h.writeError(w, name, start, err)
		return
	}
	h.writeJSON(w, name, start, http.StatusOK, map[string]any{"order": o})
}

func (h *Handler) writeJSON(w http.ResponseWriter, handler string, start time.Time, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
	h.observe(handler, status, start)
}

func (h *Handler) writeError(w http.ResponseWriter, handler string, start time.Time, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "handler", handler, "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": apperr.KindOf(err).String()})
	h.observe(handler, status, start)
}

func (h *Handler) observe(handler string, status int, start time.Time) {
	if h.metrics != nil {
		h.metrics.Observe(handler, status, time.Since(start))
	}
}

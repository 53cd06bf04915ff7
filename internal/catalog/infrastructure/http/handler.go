package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront/orderflow/internal/catalog/application"
	"github.com/storefront/orderflow/pkg/apperr"
	"github.com/storefront/orderflow/pkg/metrics"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
	metrics *metrics.ServerMetrics
}

func NewHandler(log *slog.Logger, service *application.Service, m *metrics.ServerMetrics) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("catalog-http"),
		metrics: m,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}/stock", h.adjustStock)
	return r
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()
	start := time.Now()

	p, err := h.service.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "get_product", start, err)
		return
	}
	h.writeJSON(w, "get_product", start, http.StatusOK, p)
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdjustStock")
	defer span.End()
	start := time.Now()

	var req adjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "adjust_stock", start, apperr.New(apperr.Validation, "invalid body"))
		return
	}

	adj, err := h.service.AdjustStock(ctx, chi.URLParam(r, "id"), req.Delta, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.writeError(w, "adjust_stock", start, err)
		return
	}
	h.writeJSON(w, "adjust_stock", start, http.StatusOK, adj)
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

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront/orderflow/internal/shipment/application"
	"github.com/storefront/orderflow/internal/shipment/domain"
	"github.com/storefront/orderflow/pkg/apperr"
	"github.com/storefront/orderflow/pkg/auth"
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
		tracer:  otel.Tracer("shipment-http"),
		metrics: m,
	}
}

// Routes returns the authenticated shipment API. Creation is a customer
// route; status and carrier updates are restricted to administrators.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.With(auth.RequireRole(auth.RoleCustomer)).Post("/shipments", h.createShipment)
	r.Get("/shipments/{id}", h.getShipment)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Put("/shipments/status", h.updateStatus)
		r.Put("/shipments/carrier", h.assignCarrier)
	})
	return r
}

type createShipmentReq struct {
	OrderID string `json:"order_id"`
	Address string `json:"address"`
}

func (h *Handler) createShipment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateShipment")
	defer span.End()
	start := time.Now()

	var req createShipmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "create_shipment", start, apperr.New(apperr.Validation, "invalid body"))
		return
	}

	shipment, err := h.service.CreateShipment(ctx, req.OrderID, req.Address)
	if err != nil {
		h.writeError(w, "create_shipment", start, err)
		return
	}
	h.writeJSON(w, "create_shipment", start, http.StatusCreated, map[string]any{"shipment": shipment})
}

type updateStatusReq struct {
	ShipmentID string `json:"shipment_id"`
	Status     string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateShipmentStatus")
	defer span.End()
	start := time.Now()

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ShipmentID == "" {
		h.writeError(w, "update_status", start, apperr.New(apperr.Validation, "shipment_id and status are required"))
		return
	}

	shipment, err := h.service.UpdateStatus(ctx, req.ShipmentID, domain.ShipmentStatus(req.Status))
	if err != nil {
		h.writeError(w, "update_status", start, err)
		return
	}
	h.writeJSON(w, "update_status", start, http.StatusOK, map[string]any{"shipment": shipment})
}

type assignCarrierReq struct {
	ShipmentID string `json:"shipment_id"`
	Carrier    string `json:"carrier"`
}

func (h *Handler) assignCarrier(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AssignCarrier")
	defer span.End()
	start := time.Now()

	var req assignCarrierReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ShipmentID == "" {
		h.writeError(w, "assign_carrier", start, apperr.New(apperr.Validation, "shipment_id and carrier are required"))
		return
	}

	shipment, err := h.service.AssignCarrier(ctx, req.ShipmentID, req.Carrier)
	if err != nil {
		h.writeError(w, "assign_carrier", start, err)
		return
	}
	h.writeJSON(w, "assign_carrier", start, http.StatusOK, map[string]any{"shipment": shipment})
}

func (h *Handler) getShipment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetShipment")
	defer span.End()
	start := time.Now()

	shipment, err := h.service.GetShipment(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "get_shipment", start, err)
		return
	}
	h.writeJSON(w, "get_shipment", start, http.StatusOK, map[string]any{"shipment": shipment})
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

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/verone/fulfillment/internal/fulfillment/application"
	"github.com/verone/fulfillment/internal/fulfillment/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("fulfillment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders/{id}/fulfillments", h.createFulfillment)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/fulfillments", h.listFulfillments)
	return r
}

func (h *Handler) createFulfillment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateFulfillment")
	defer span.End()

	var req application.FulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.OrderID = chi.URLParam(r, "id")
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	res, err := h.service.Fulfill(ctx, req)
	if err != nil {
		writeJSON(w, statusFor(res.Error), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	order, err := h.service.Order(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) listFulfillments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListFulfillments")
	defer span.End()

	orderID := chi.URLParam(r, "id")
	if _, err := h.service.Order(ctx, orderID); err != nil {
		h.writeError(w, err)
		return
	}
	events, err := h.service.Events(ctx, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.FulfillmentEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindPersistence {
		h.log.Error("store failure", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var body struct {
		Error   domain.ErrorKind `json:"error"`
		Message string           `json:"message"`
	}
	body.Error = kind
	body.Message = err.Error()
	writeJSON(w, statusFor(kind), body)
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateConflict, domain.KindQuantityOverflow:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"courierconnect/internal/domain"
	"courierconnect/internal/http/middleware"
	"courierconnect/internal/logx"
)

// DeliveryHandler handles HTTP requests for delivery resources.
type DeliveryHandler struct {
	usecase deliveryUsecase
	logger  logx.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, uc deliveryUsecase) *DeliveryHandler {
	return &DeliveryHandler{usecase: uc, logger: logger}
}

// Create handles POST /deliveries.
func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.usecase.Create(r.Context(), req.toModel())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, deliveryToResponse(d))
}

// Track handles GET /deliveries/{trackingID}. No identity required: the
// tracking identifier is the capability.
func (h *DeliveryHandler) Track(w http.ResponseWriter, r *http.Request) {
	d, err := h.usecase.Track(r.Context(), chi.URLParam(r, "trackingID"))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// List handles GET /deliveries.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := domain.Status(raw)
		status = &st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.usecase.List(r.Context(), status, limit)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveriesToResponse(list))
}

// Available handles GET /deliveries/available - pending deliveries a
// courier can pick from.
func (h *DeliveryHandler) Available(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.usecase.Available(r.Context(), limit)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveriesToResponse(list))
}

// Accept handles POST /deliveries/{trackingID}/accept.
func (h *DeliveryHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(h.logger, w, r)
	if !ok {
		return
	}

	d, err := h.usecase.Accept(r.Context(), id, chi.URLParam(r, "trackingID"))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Advance handles PATCH /deliveries/{trackingID}/status.
func (h *DeliveryHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(h.logger, w, r)
	if !ok {
		return
	}

	var req advanceDeliveryRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.usecase.Advance(r.Context(), id, chi.URLParam(r, "trackingID"), domain.Status(req.Status))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Cancel handles POST /deliveries/{trackingID}/cancel. A pending delivery
// needs no identity; anything later does.
func (h *DeliveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	var req cancelDeliveryRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.usecase.Cancel(r.Context(), id, chi.URLParam(r, "trackingID"), req.Reason)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

func requireIdentity(logger logx.Logger, w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(logger, w, r, http.StatusForbidden, "identity required")
		return domain.Identity{}, false
	}
	return id, true
}

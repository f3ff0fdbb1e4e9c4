package handlers

import (
	"net/http"

	"courierconnect/internal/domain"
	"courierconnect/internal/logx"
	"courierconnect/internal/pricing"
	"courierconnect/internal/service/delivery"
)

// PricingHandler serves price quotes and the public pricing constants.
type PricingHandler struct {
	usecase deliveryUsecase
	cfg     pricing.Config
	logger  logx.Logger
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(logger logx.Logger, uc deliveryUsecase, cfg pricing.Config) *PricingHandler {
	return &PricingHandler{usecase: uc, cfg: cfg, logger: logger}
}

// Quote handles POST /prices/quote.
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	qr := delivery.QuoteRequest{
		DistanceKm:        req.DistanceKm,
		Urgency:           domain.Urgency(req.Urgency),
		Size:              domain.PackageSize(req.PackageSize),
		ScheduledPickupAt: req.ScheduledPickupAt,
	}
	if req.Origin != nil {
		qr.Origin = &domain.Location{Lat: req.Origin.Lat, Lng: req.Origin.Lng}
	}
	if req.Destination != nil {
		qr.Dest = &domain.Location{Lat: req.Destination.Lat, Lng: req.Destination.Lng}
	}

	q, err := h.usecase.Quote(r.Context(), qr)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, quoteResponse{
		DistanceKm:          q.Route.DistanceKm,
		DurationMinutes:     q.Route.DurationMinutes,
		DistanceEstimated:   q.Route.Estimated,
		Price:               priceToResponse(q.Price),
		EstimatedDeliveryAt: q.ETA,
	})
}

// Config handles GET /prices/config.
func (h *PricingHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, r, http.StatusOK, pricingConfigResponse{
		BasePrice:          h.cfg.BasePrice,
		PricePerKm:         h.cfg.PricePerKm,
		MinimumPrice:       h.cfg.MinimumPrice,
		CourierShare:       h.cfg.CourierShare,
		UrgencyMultipliers: pricing.UrgencyMultipliers(),
		SizeMultipliers:    pricing.SizeMultipliers(),
	})
}

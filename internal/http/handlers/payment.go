package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"courierconnect/internal/domain"
	"courierconnect/internal/logx"
)

// PaymentHandler handles checkout creation, the processor webhook and the
// admin release endpoint.
type PaymentHandler struct {
	escrow        escrowUsecase
	webhookSecret string
	logger        logx.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(logger logx.Logger, uc escrowUsecase, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{escrow: uc, webhookSecret: webhookSecret, logger: logger}
}

// CreateCheckout handles POST /deliveries/{trackingID}/checkout.
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	res, err := h.escrow.CreateCheckout(r.Context(), chi.URLParam(r, "trackingID"))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, checkoutResponse{
		SessionID: res.SessionID,
		URL:       res.URL,
	})
}

// Release handles POST /payments/release - an admin forcing a stuck
// capture-and-payout or refund through without waiting for the sweep.
func (h *PaymentHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(h.logger, w, r)
	if !ok {
		return
	}
	if id.Role != domain.RoleAdmin {
		writeError(h.logger, w, r, http.StatusForbidden, "admin only")
		return
	}

	var req releasePaymentRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	var err error
	switch req.Action {
	case "capture":
		err = h.escrow.CaptureAndPayout(r.Context(), req.TrackingID)
	case "refund":
		err = h.escrow.Refund(r.Context(), req.TrackingID)
	default:
		writeError(h.logger, w, r, http.StatusBadRequest, "action must be capture or refund")
		return
	}
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

const webhookBodyLimit = 1 << 16

// Webhook handles POST /payments/webhook. The signature check is the trust
// boundary: an unverifiable payload is rejected before anything is parsed
// out of it. Handler errors return 5xx so the processor redelivers.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "unreadable payload")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "signature verification failed")
		return
	}

	if err := h.handleEvent(r, event); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"received": "true"})
}

func (h *PaymentHandler) handleEvent(r *http.Request, event stripe.Event) error {
	ctx := r.Context()

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.logger.Warn("malformed checkout.session.completed payload", logx.Err(err))
			return nil
		}
		trackingID := sess.Metadata["trackingId"]
		if trackingID == "" {
			h.logger.Warn("session completed without tracking metadata",
				logx.String("session_id", sess.ID))
			return nil
		}
		intentID := ""
		if sess.PaymentIntent != nil {
			intentID = sess.PaymentIntent.ID
		}
		return h.escrow.HandleSessionCompleted(ctx, trackingID, sess.ID, intentID)

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.logger.Warn("malformed checkout.session.expired payload", logx.Err(err))
			return nil
		}
		if trackingID := sess.Metadata["trackingId"]; trackingID != "" {
			return h.escrow.HandleSessionExpired(ctx, trackingID, sess.ID)
		}
		return nil

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			h.logger.Warn("malformed payment_intent.payment_failed payload", logx.Err(err))
			return nil
		}
		if trackingID := pi.Metadata["trackingId"]; trackingID != "" {
			return h.escrow.HandlePaymentFailed(ctx, trackingID)
		}
		return nil

	default:
		// Unsubscribed event types are acknowledged so the processor
		// stops redelivering them.
		h.logger.Debug("ignoring webhook event", logx.String("type", string(event.Type)))
		return nil
	}
}

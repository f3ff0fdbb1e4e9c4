package handlers

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"courierconnect/internal/apperr"
	"courierconnect/internal/service/escrow"
	"courierconnect/internal/testutil/testlog"
)

const testWebhookSecret = "whsec_test"

// signedWebhookRequest builds a webhook request carrying a valid signature
// over the payload, the same way the processor signs real deliveries.
func signedWebhookRequest(t *testing.T, payload string) *http.Request {
	t.Helper()

	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), testWebhookSecret)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature",
		fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	return req
}

func eventPayload(eventType, object string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"api_version": %q,
		"type": %q,
		"data": {"object": %s}
	}`, stripe.APIVersion, eventType, object)
}

func TestPaymentHandler_Webhook_RejectsBadSignature(t *testing.T) {
	t.Parallel()

	h := NewPaymentHandler(testlog.New().Logger(), &stubEscrowUsecase{}, testWebhookSecret)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook",
		strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error": "signature verification failed"}`, rr.Body.String())
}

func TestPaymentHandler_Webhook_SessionCompleted(t *testing.T) {
	t.Parallel()

	var gotTracking, gotSession, gotIntent string
	uc := &stubEscrowUsecase{completedFn: func(_ context.Context, trackingID, sessionID, intentID string) error {
		gotTracking, gotSession, gotIntent = trackingID, sessionID, intentID
		return nil
	}}
	h := NewPaymentHandler(testlog.New().Logger(), uc, testWebhookSecret)

	payload := eventPayload("checkout.session.completed",
		`{"id": "cs_1", "metadata": {"trackingId": "CC-ABC123"}, "payment_intent": "pi_1"}`)
	rr := httptest.NewRecorder()
	h.Webhook(rr, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CC-ABC123", gotTracking)
	assert.Equal(t, "cs_1", gotSession)
	assert.Equal(t, "pi_1", gotIntent)
}

func TestPaymentHandler_Webhook_SessionCompletedWithoutMetadataIsAcked(t *testing.T) {
	t.Parallel()

	h := NewPaymentHandler(testlog.New().Logger(), &stubEscrowUsecase{}, testWebhookSecret)

	payload := eventPayload("checkout.session.completed", `{"id": "cs_1"}`)
	rr := httptest.NewRecorder()
	h.Webhook(rr, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, rr.Code, "a foreign session is acknowledged, not redelivered")
}

func TestPaymentHandler_Webhook_SessionExpired(t *testing.T) {
	t.Parallel()

	var gotTracking, gotSession string
	uc := &stubEscrowUsecase{expiredFn: func(_ context.Context, trackingID, sessionID string) error {
		gotTracking, gotSession = trackingID, sessionID
		return nil
	}}
	h := NewPaymentHandler(testlog.New().Logger(), uc, testWebhookSecret)

	payload := eventPayload("checkout.session.expired",
		`{"id": "cs_old", "metadata": {"trackingId": "CC-ABC123"}}`)
	rr := httptest.NewRecorder()
	h.Webhook(rr, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CC-ABC123", gotTracking)
	assert.Equal(t, "cs_old", gotSession)
}

func TestPaymentHandler_Webhook_PaymentFailed(t *testing.T) {
	t.Parallel()

	var gotTracking string
	uc := &stubEscrowUsecase{failedFn: func(_ context.Context, trackingID string) error {
		gotTracking = trackingID
		return nil
	}}
	h := NewPaymentHandler(testlog.New().Logger(), uc, testWebhookSecret)

	payload := eventPayload("payment_intent.payment_failed",
		`{"id": "pi_1", "metadata": {"trackingId": "CC-ABC123"}}`)
	rr := httptest.NewRecorder()
	h.Webhook(rr, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CC-ABC123", gotTracking)
}

func TestPaymentHandler_Webhook_UnknownEventIsAcked(t *testing.T) {
	t.Parallel()

	h := NewPaymentHandler(testlog.New().Logger(), &stubEscrowUsecase{}, testWebhookSecret)

	payload := eventPayload("invoice.created", `{"id": "in_1"}`)
	rr := httptest.NewRecorder()
	h.Webhook(rr, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPaymentHandler_Webhook_HandlerErrorTriggersRedelivery(t *testing.T) {
	t.Parallel()

	uc := &stubEscrowUsecase{completedFn: func(context.Context, string, string, string) error {
		return fmt.Errorf("write refs: %w", apperr.ErrUnavailable)
	}}
	h := NewPaymentHandler(testlog.New().Logger(), uc, testWebhookSecret)

	payload := eventPayload("checkout.session.completed",
		`{"id": "cs_1", "metadata": {"trackingId": "CC-ABC123"}, "payment_intent": "pi_1"}`)
	rr := httptest.NewRecorder()
	h.Webhook(rr, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPaymentHandler_CreateCheckout(t *testing.T) {
	t.Parallel()

	uc := &stubEscrowUsecase{createCheckoutFn: func(_ context.Context, trackingID string) (*escrow.Checkout, error) {
		require.Equal(t, "CC-ABC123", trackingID)
		return &escrow.Checkout{SessionID: "cs_42", URL: "https://pay.example/cs_42"}, nil
	}}
	h := NewPaymentHandler(testlog.New().Logger(), uc, testWebhookSecret)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/deliveries/CC-ABC123/checkout", nil), "trackingID", "CC-ABC123")
	rr := httptest.NewRecorder()
	h.CreateCheckout(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"session_id": "cs_42", "url": "https://pay.example/cs_42"}`, rr.Body.String())
}

func TestPaymentHandler_Release_AdminOnly(t *testing.T) {
	t.Parallel()

	h := NewPaymentHandler(testlog.New().Logger(), &stubEscrowUsecase{}, testWebhookSecret)

	body := `{"tracking_id": "CC-ABC123", "action": "capture"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/release", strings.NewReader(body))
	rr := serveWithIdentity(h.Release, req, "7", "courier")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error": "admin only"}`, rr.Body.String())
}

func TestPaymentHandler_Release_Capture(t *testing.T) {
	t.Parallel()

	var gotTracking string
	uc := &stubEscrowUsecase{captureFn: func(_ context.Context, trackingID string) error {
		gotTracking = trackingID
		return nil
	}}
	h := NewPaymentHandler(testlog.New().Logger(), uc, testWebhookSecret)

	body := `{"tracking_id": "CC-ABC123", "action": "capture"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/release", strings.NewReader(body))
	rr := serveWithIdentity(h.Release, req, "1", "admin")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CC-ABC123", gotTracking)
}

func TestPaymentHandler_Release_UnknownAction(t *testing.T) {
	t.Parallel()

	h := NewPaymentHandler(testlog.New().Logger(), &stubEscrowUsecase{}, testWebhookSecret)

	body := `{"tracking_id": "CC-ABC123", "action": "void"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/release", strings.NewReader(body))
	rr := serveWithIdentity(h.Release, req, "1", "admin")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

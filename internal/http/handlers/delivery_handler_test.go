package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
	"courierconnect/internal/http/middleware"
	"courierconnect/internal/repository"
	"courierconnect/internal/service/delivery"
	"courierconnect/internal/service/escrow"
	"courierconnect/internal/testutil/testlog"
)

type stubDeliveryUsecase struct {
	createFn    func(ctx context.Context, req delivery.CreateRequest) (*domain.Delivery, error)
	acceptFn    func(ctx context.Context, id domain.Identity, trackingID string) (*domain.Delivery, error)
	advanceFn   func(ctx context.Context, id domain.Identity, trackingID string, target domain.Status) (*domain.Delivery, error)
	cancelFn    func(ctx context.Context, id domain.Identity, trackingID, reason string) (*domain.Delivery, error)
	trackFn     func(ctx context.Context, trackingID string) (*domain.Delivery, error)
	listFn      func(ctx context.Context, status *domain.Status, limit int) ([]domain.Delivery, error)
	availableFn func(ctx context.Context, limit int) ([]domain.Delivery, error)
	quoteFn     func(ctx context.Context, req delivery.QuoteRequest) (*delivery.Quote, error)
}

func (s *stubDeliveryUsecase) Create(ctx context.Context, req delivery.CreateRequest) (*domain.Delivery, error) {
	if s.createFn == nil {
		panic("Create not expected in this test")
	}
	return s.createFn(ctx, req)
}

func (s *stubDeliveryUsecase) Accept(ctx context.Context, id domain.Identity, trackingID string) (*domain.Delivery, error) {
	if s.acceptFn == nil {
		panic("Accept not expected in this test")
	}
	return s.acceptFn(ctx, id, trackingID)
}

func (s *stubDeliveryUsecase) Advance(ctx context.Context, id domain.Identity, trackingID string, target domain.Status) (*domain.Delivery, error) {
	if s.advanceFn == nil {
		panic("Advance not expected in this test")
	}
	return s.advanceFn(ctx, id, trackingID, target)
}

func (s *stubDeliveryUsecase) Cancel(ctx context.Context, id domain.Identity, trackingID, reason string) (*domain.Delivery, error) {
	if s.cancelFn == nil {
		panic("Cancel not expected in this test")
	}
	return s.cancelFn(ctx, id, trackingID, reason)
}

func (s *stubDeliveryUsecase) Track(ctx context.Context, trackingID string) (*domain.Delivery, error) {
	if s.trackFn == nil {
		panic("Track not expected in this test")
	}
	return s.trackFn(ctx, trackingID)
}

func (s *stubDeliveryUsecase) List(ctx context.Context, status *domain.Status, limit int) ([]domain.Delivery, error) {
	if s.listFn == nil {
		panic("List not expected in this test")
	}
	return s.listFn(ctx, status, limit)
}

func (s *stubDeliveryUsecase) Available(ctx context.Context, limit int) ([]domain.Delivery, error) {
	if s.availableFn == nil {
		panic("Available not expected in this test")
	}
	return s.availableFn(ctx, limit)
}

func (s *stubDeliveryUsecase) Quote(ctx context.Context, req delivery.QuoteRequest) (*delivery.Quote, error) {
	if s.quoteFn == nil {
		panic("Quote not expected in this test")
	}
	return s.quoteFn(ctx, req)
}

type stubEscrowUsecase struct {
	createCheckoutFn func(ctx context.Context, trackingID string) (*escrow.Checkout, error)
	completedFn      func(ctx context.Context, trackingID, sessionID, intentID string) error
	expiredFn        func(ctx context.Context, trackingID, sessionID string) error
	failedFn         func(ctx context.Context, trackingID string) error
	captureFn        func(ctx context.Context, trackingID string) error
	refundFn         func(ctx context.Context, trackingID string) error
}

func (s *stubEscrowUsecase) CreateCheckout(ctx context.Context, trackingID string) (*escrow.Checkout, error) {
	if s.createCheckoutFn == nil {
		panic("CreateCheckout not expected in this test")
	}
	return s.createCheckoutFn(ctx, trackingID)
}

func (s *stubEscrowUsecase) HandleSessionCompleted(ctx context.Context, trackingID, sessionID, intentID string) error {
	if s.completedFn == nil {
		panic("HandleSessionCompleted not expected in this test")
	}
	return s.completedFn(ctx, trackingID, sessionID, intentID)
}

func (s *stubEscrowUsecase) HandleSessionExpired(ctx context.Context, trackingID, sessionID string) error {
	if s.expiredFn == nil {
		panic("HandleSessionExpired not expected in this test")
	}
	return s.expiredFn(ctx, trackingID, sessionID)
}

func (s *stubEscrowUsecase) HandlePaymentFailed(ctx context.Context, trackingID string) error {
	if s.failedFn == nil {
		panic("HandlePaymentFailed not expected in this test")
	}
	return s.failedFn(ctx, trackingID)
}

func (s *stubEscrowUsecase) CaptureAndPayout(ctx context.Context, trackingID string) error {
	if s.captureFn == nil {
		panic("CaptureAndPayout not expected in this test")
	}
	return s.captureFn(ctx, trackingID)
}

func (s *stubEscrowUsecase) Refund(ctx context.Context, trackingID string) error {
	if s.refundFn == nil {
		panic("Refund not expected in this test")
	}
	return s.refundFn(ctx, trackingID)
}

type stubCourierUsecase struct {
	registerFn  func(ctx context.Context, name, phone string) (*domain.Courier, error)
	getFn       func(ctx context.Context, id int64) (*domain.Courier, error)
	setPayoutFn func(ctx context.Context, id domain.Identity, courierID int64, dest domain.PayoutDestination) error
	earningsFn  func(ctx context.Context, id domain.Identity, courierID int64) (*repository.EarningsSummary, error)
}

func (s *stubCourierUsecase) Register(ctx context.Context, name, phone string) (*domain.Courier, error) {
	if s.registerFn == nil {
		panic("Register not expected in this test")
	}
	return s.registerFn(ctx, name, phone)
}

func (s *stubCourierUsecase) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	if s.getFn == nil {
		panic("Get not expected in this test")
	}
	return s.getFn(ctx, id)
}

func (s *stubCourierUsecase) SetPayoutDestination(ctx context.Context, id domain.Identity, courierID int64, dest domain.PayoutDestination) error {
	if s.setPayoutFn == nil {
		panic("SetPayoutDestination not expected in this test")
	}
	return s.setPayoutFn(ctx, id, courierID, dest)
}

func (s *stubCourierUsecase) Earnings(ctx context.Context, id domain.Identity, courierID int64) (*repository.EarningsSummary, error) {
	if s.earningsFn == nil {
		panic("Earnings not expected in this test")
	}
	return s.earningsFn(ctx, id, courierID)
}

// withURLParam attaches a chi route parameter for direct handler invocation.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// serveWithIdentity runs the handler behind the real identity middleware.
func serveWithIdentity(h http.HandlerFunc, r *http.Request, userID, role string) *httptest.ResponseRecorder {
	if userID != "" {
		r.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		r.Header.Set("X-User-Role", role)
	}
	rr := httptest.NewRecorder()
	middleware.Identity(h).ServeHTTP(rr, r)
	return rr
}

func sampleDelivery(tracking string) *domain.Delivery {
	return &domain.Delivery{
		ID:            1,
		TrackingID:    tracking,
		Status:        domain.StatusPending,
		Sender:        domain.Party{Name: "Alice", Address: "1 First St"},
		Receiver:      domain.Party{Name: "Bob", Address: "2 Second Ave"},
		PackageSize:   domain.SizeSmall,
		Urgency:       domain.UrgencyStandard,
		DistanceKm:    10,
		Price:         domain.PriceBreakdown{Base: 3, Distance: 8, Total: 11, CourierEarnings: 7.70, PlatformFee: 3.30},
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestDeliveryHandler_Track_OK(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{trackFn: func(_ context.Context, trackingID string) (*domain.Delivery, error) {
		require.Equal(t, "CC-ABC123", trackingID)
		return sampleDelivery(trackingID), nil
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/deliveries/CC-ABC123", nil), "trackingID", "CC-ABC123")
	rr := httptest.NewRecorder()
	h.Track(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "CC-ABC123", resp["tracking_id"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "unpaid", resp["payment_status"])
}

func TestDeliveryHandler_Track_NotFound(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{trackFn: func(context.Context, string) (*domain.Delivery, error) {
		return nil, apperr.ErrNotFound
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/deliveries/CC-ZZZZZZ", nil), "trackingID", "CC-ZZZZZZ")
	rr := httptest.NewRecorder()
	h.Track(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeliveryHandler_Create_OK(t *testing.T) {
	t.Parallel()

	body := `{
		"sender": {"name": "Alice", "address": "1 First St"},
		"receiver": {"name": "Bob", "address": "2 Second Ave"},
		"package_size": "small",
		"urgency": "standard",
		"distance_km": 10
	}`
	uc := &stubDeliveryUsecase{createFn: func(_ context.Context, req delivery.CreateRequest) (*domain.Delivery, error) {
		require.Equal(t, "Alice", req.Sender.Name)
		require.Equal(t, domain.SizeSmall, req.PackageSize)
		require.Equal(t, 10.0, req.DistanceKm)
		return sampleDelivery("CC-NEW001"), nil
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := httptest.NewRequest(http.MethodPost, "/deliveries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestDeliveryHandler_Create_InvalidJSON(t *testing.T) {
	t.Parallel()

	h := NewDeliveryHandler(testlog.New().Logger(), &stubDeliveryUsecase{})

	req := httptest.NewRequest(http.MethodPost, "/deliveries", strings.NewReader(`{"sender":`))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error": "invalid json"}`, rr.Body.String())
}

func TestDeliveryHandler_Create_UnknownField(t *testing.T) {
	t.Parallel()

	h := NewDeliveryHandler(testlog.New().Logger(), &stubDeliveryUsecase{})

	req := httptest.NewRequest(http.MethodPost, "/deliveries", strings.NewReader(`{"surprise": true}`))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveryHandler_Accept_RequiresIdentity(t *testing.T) {
	t.Parallel()

	h := NewDeliveryHandler(testlog.New().Logger(), &stubDeliveryUsecase{})

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/deliveries/CC-ABC123/accept", nil), "trackingID", "CC-ABC123")
	rr := serveWithIdentity(h.Accept, req, "", "")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error": "identity required"}`, rr.Body.String())
}

func TestDeliveryHandler_Accept_PassesIdentity(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{acceptFn: func(_ context.Context, id domain.Identity, trackingID string) (*domain.Delivery, error) {
		require.Equal(t, domain.Identity{UserID: 7, Role: domain.RoleCourier}, id)
		require.Equal(t, "CC-ABC123", trackingID)
		return sampleDelivery(trackingID), nil
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/deliveries/CC-ABC123/accept", nil), "trackingID", "CC-ABC123")
	rr := serveWithIdentity(h.Accept, req, "7", "courier")

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDeliveryHandler_Advance_MapsStatus(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{advanceFn: func(_ context.Context, id domain.Identity, trackingID string, target domain.Status) (*domain.Delivery, error) {
		require.Equal(t, domain.StatusPickedUp, target)
		return sampleDelivery(trackingID), nil
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := withURLParam(
		httptest.NewRequest(http.MethodPatch, "/deliveries/CC-ABC123/status", strings.NewReader(`{"status":"picked_up"}`)),
		"trackingID", "CC-ABC123",
	)
	rr := serveWithIdentity(h.Advance, req, "7", "courier")

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDeliveryHandler_Cancel_AnonymousAllowed(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{cancelFn: func(_ context.Context, id domain.Identity, trackingID, reason string) (*domain.Delivery, error) {
		require.Equal(t, domain.Identity{}, id)
		require.Equal(t, "changed my mind", reason)
		return sampleDelivery(trackingID), nil
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := withURLParam(
		httptest.NewRequest(http.MethodPost, "/deliveries/CC-ABC123/cancel", strings.NewReader(`{"reason":"changed my mind"}`)),
		"trackingID", "CC-ABC123",
	)
	rr := serveWithIdentity(h.Cancel, req, "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDeliveryHandler_Conflict(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{acceptFn: func(context.Context, domain.Identity, string) (*domain.Delivery, error) {
		return nil, apperr.ErrConflict
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/deliveries/CC-ABC123/accept", nil), "trackingID", "CC-ABC123")
	rr := serveWithIdentity(h.Accept, req, "7", "courier")

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestDeliveryHandler_UnavailableHidesDetail(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{trackFn: func(context.Context, string) (*domain.Delivery, error) {
		return nil, apperr.ErrUnavailable
	}}
	h := NewDeliveryHandler(testlog.New().Logger(), uc)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/deliveries/CC-ABC123", nil), "trackingID", "CC-ABC123")
	rr := httptest.NewRecorder()
	h.Track(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"error": "temporarily unavailable"}`, rr.Body.String())
}

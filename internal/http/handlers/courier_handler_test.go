package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierconnect/internal/domain"
	"courierconnect/internal/repository"
	"courierconnect/internal/testutil/testlog"
)

func TestCourierHandler_Register_OK(t *testing.T) {
	t.Parallel()

	uc := &stubCourierUsecase{registerFn: func(_ context.Context, name, phone string) (*domain.Courier, error) {
		require.Equal(t, "Dana", name)
		require.Equal(t, "+15550100", phone)
		return &domain.Courier{ID: 7, Name: name, Phone: phone, Payout: domain.PayoutDestination{State: domain.PayoutNone}}, nil
	}}
	h := NewCourierHandler(testlog.New().Logger(), uc)

	body := `{"name": "Dana", "phone": "+15550100"}`
	req := httptest.NewRequest(http.MethodPost, "/couriers", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{
		"id": 7,
		"name": "Dana",
		"phone": "+15550100",
		"payout_state": "none",
		"active_deliveries": 0,
		"total_deliveries": 0,
		"earnings": 0
	}`, rr.Body.String())
}

func TestCourierHandler_Get_InvalidID(t *testing.T) {
	t.Parallel()

	h := NewCourierHandler(testlog.New().Logger(), &stubCourierUsecase{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/couriers/abc", nil), "id", "abc")
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error": "invalid id"}`, rr.Body.String())
}

func TestCourierHandler_SetPayout_PassesDestination(t *testing.T) {
	t.Parallel()

	var gotActor domain.Identity
	var gotDest domain.PayoutDestination
	uc := &stubCourierUsecase{setPayoutFn: func(_ context.Context, actor domain.Identity, courierID int64, dest domain.PayoutDestination) error {
		require.Equal(t, int64(7), courierID)
		gotActor, gotDest = actor, dest
		return nil
	}}
	h := NewCourierHandler(testlog.New().Logger(), uc)

	body := `{"state": "ready", "account_ref": "acct_1"}`
	req := withURLParam(httptest.NewRequest(http.MethodPut, "/couriers/7/payout", strings.NewReader(body)), "id", "7")
	rr := serveWithIdentity(h.SetPayout, req, "7", "courier")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.Identity{UserID: 7, Role: domain.RoleCourier}, gotActor)
	assert.Equal(t, domain.PayoutDestination{State: domain.PayoutReady, AccountRef: "acct_1"}, gotDest)
}

func TestCourierHandler_Earnings(t *testing.T) {
	t.Parallel()

	uc := &stubCourierUsecase{earningsFn: func(_ context.Context, actor domain.Identity, courierID int64) (*repository.EarningsSummary, error) {
		return &repository.EarningsSummary{
			Courier:        domain.Courier{ID: courierID, Name: "Dana", Earnings: 42.50, TotalDeliveries: 6},
			DeliveredCount: 5,
			InFlightCount:  1,
		}, nil
	}}
	h := NewCourierHandler(testlog.New().Logger(), uc)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/couriers/7/earnings", nil), "id", "7")
	rr := serveWithIdentity(h.Earnings, req, "7", "courier")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"courier": {
			"id": 7,
			"name": "Dana",
			"payout_state": "",
			"active_deliveries": 0,
			"total_deliveries": 6,
			"earnings": 42.5
		},
		"delivered_count": 5,
		"in_flight_count": 1
	}`, rr.Body.String())
}

func TestCourierHandler_Earnings_RequiresIdentity(t *testing.T) {
	t.Parallel()

	h := NewCourierHandler(testlog.New().Logger(), &stubCourierUsecase{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/couriers/7/earnings", nil), "id", "7")
	rr := serveWithIdentity(h.Earnings, req, "", "")

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

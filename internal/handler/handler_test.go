package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/refund"
	"github.com/iliyamo/seat-booking/internal/repository/memory"
	"github.com/iliyamo/seat-booking/internal/router"
	"github.com/iliyamo/seat-booking/internal/service"
	"github.com/iliyamo/seat-booking/internal/utils"
)

const secret = "handler-test-secret"

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type api struct {
	t     *testing.T
	e     *echo.Echo
	clock *clock.Manual
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := memory.New(time.Second)
	seats := make([]model.Seat, 10)
	for i := range seats {
		seats[i] = model.Seat{ID: uint64(i + 1)}
	}
	store.AddShow(model.Show{ID: 7, Title: "Matinee", StartsAt: start.Add(30 * time.Hour), IsActive: true, BasePriceCents: 1000}, seats)

	log, _ := test.NewNullLogger()
	clk := clock.NewManual(start)
	deps := service.Deps{Store: store, Clock: clk, Log: log}
	limits := service.Limits{ReservationTTL: 5 * time.Minute, MaxExtensions: 2, MaxSeatsPerBooking: 10}
	policy, err := refund.NewPolicy([]refund.Tier{{HoursBeforeShow: 24, Percentage: 100}, {HoursBeforeShow: 12, Percentage: 75}, {HoursBeforeShow: 2, Percentage: 50}, {HoursBeforeShow: 0, Percentage: 0}}, 2)
	require.NoError(t, err)

	inv := service.NewInventory(deps)
	res := service.NewReservations(deps, inv, limits)
	bookings := service.NewBookings(deps, inv, res, policy, limits)

	e := echo.New()
	router.RegisterRoutes(e, router.Handlers{
		Customer: handler.NewCustomerHandler(res, bookings),
		Public:   handler.NewPublicHandler(inv, res),
		Health:   handler.Health(nil),
	}, secret, nil)
	return &api{t: t, e: e, clock: clk}
}

func (a *api) do(method, path, subject string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		payload = string(raw)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if subject != "" {
		tok, err := utils.NewAccessToken(secret, subject, router.CustomerRole, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *api) hold(subject string, seats ...uint64) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/holds", subject, map[string]any{"showId": 7, "seatIds": seats})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(a.t, rec)["reservationId"].(string)
}

func passengers(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"name": "Guest", "age": 30}
	}
	return out
}

func TestHoldEndpoints(t *testing.T) {
	a := newAPI(t)
	id := a.hold("alice", 1, 2)

	rec := a.do(http.MethodPost, "/v1/holds", "bob", map[string]any{"showId": 7, "seatIds": []uint64{2, 3}})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "SEAT_CONFLICT", body["error"])
	seats := body["seats"].([]any)
	require.Len(t, seats, 1)
	assert.Equal(t, float64(2), seats[0].(map[string]any)["seatId"])
	assert.Equal(t, "reserved", seats[0].(map[string]any)["reason"])
	assert.NotEmpty(t, seats[0].(map[string]any)["availableAt"])

	rec = a.do(http.MethodPatch, "/v1/holds/"+id, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPatch, "/v1/holds/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decode(t, rec)["extensions"])

	rec = a.do(http.MethodPatch, "/v1/holds/"+id, "alice", map[string]any{"expiresAt": "2099-01-01T00:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["error"])

	rec = a.do(http.MethodPatch, "/v1/holds/"+id, "alice", map[string]any{"reservationId": "something-else"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/v1/holds/"+id, "alice", nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/v1/holds/"+id, "alice", nil).Code)

	a.hold("bob", 2, 3)
}

func TestHoldRequiresMatchingIdentity(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/holds", "", map[string]any{"showId": 7, "seatIds": []uint64{1}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/v1/holds", "alice", map[string]any{"showId": 7, "seatIds": []uint64{1}, "holderId": "bob"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_HOLDER", decode(t, rec)["error"])
}

func TestHoldRejectsBadInput(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"no show", map[string]any{"seatIds": []uint64{1}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty selection", map[string]any{"showId": 7, "seatIds": []uint64{}}, http.StatusBadRequest, "EMPTY_SELECTION"},
		{"zero seat", map[string]any{"showId": 7, "seatIds": []uint64{0}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown seat", map[string]any{"showId": 7, "seatIds": []uint64{1, 42}}, http.StatusNotFound, "SEAT_NOT_FOUND"},
		{"unknown show", map[string]any{"showId": 8, "seatIds": []uint64{1}}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/v1/holds", "alice", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode(t, rec)["error"])
		})
	}
}

func TestBookingEndpoints(t *testing.T) {
	a := newAPI(t)
	id := a.hold("alice", 1, 2)

	rec := a.do(http.MethodPost, "/v1/bookings", "alice", map[string]any{
		"reservationId": id,
		"passengers":    passengers(2),
		"contact":       map[string]any{"email": "alice@example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decode(t, rec)
	assert.Equal(t, "CONFIRMED", booking["status"])
	assert.Equal(t, float64(2000), booking["totalPrice"])
	assert.True(t, strings.HasPrefix(booking["reference"].(string), "BK-"))
	bookingID := booking["bookingId"].(string)

	rec = a.do(http.MethodGet, "/v1/bookings/"+bookingID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bookingID, decode(t, rec)["bookingId"])
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/bookings/"+bookingID, "bob", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/bookings/nope", "alice", nil).Code)

	rec = a.do(http.MethodGet, "/v1/shows/7/availability?seatIds=1,3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode(t, rec)
	assert.Equal(t, false, report["available"])
	assert.Equal(t, "booked", report["seats"].([]any)[0].(map[string]any)["reason"])

	rec = a.do(http.MethodPost, "/v1/bookings/"+bookingID+"/cancel", "alice", map[string]any{"holderId": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)
	assert.Equal(t, "CANCELLED", result["status"])
	assert.Equal(t, float64(2000), result["refundAmount"])

	rec = a.do(http.MethodGet, "/v1/bookings/"+bookingID, "alice", nil)
	assert.Equal(t, float64(2000), decode(t, rec)["refundAmount"])
}

func TestDirectBookingAndPriceCheck(t *testing.T) {
	a := newAPI(t)
	body := map[string]any{
		"showId":             7,
		"seatIds":            []uint64{5},
		"passengers":         passengers(1),
		"contact":            map[string]any{"email": "bob@example.com"},
		"expectedTotalCents": 900,
	}

	rec := a.do(http.MethodPost, "/v1/bookings", "bob", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PRICE_MISMATCH", decode(t, rec)["error"])

	body["expectedTotalCents"] = 1000
	rec = a.do(http.MethodPost, "/v1/bookings", "bob", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, decode(t, rec)["reservationId"])
}

func TestBookingRequestShape(t *testing.T) {
	a := newAPI(t)
	contact := map[string]any{"email": "alice@example.com"}

	tests := []struct {
		name string
		body map[string]any
	}{
		{"both sources", map[string]any{"showId": 7, "reservationId": "0b9f2a3e-8d55-4c1e-9a61-0d7f1b7e4a10", "passengers": passengers(1), "contact": contact}},
		{"no source", map[string]any{"seatIds": []uint64{1}, "passengers": passengers(1), "contact": contact}},
		{"bad email", map[string]any{"showId": 7, "seatIds": []uint64{1}, "passengers": passengers(1), "contact": map[string]any{"email": "nope"}}},
		{"no passengers", map[string]any{"showId": 7, "seatIds": []uint64{1}, "contact": contact}},
		{"nameless passenger", map[string]any{"showId": 7, "seatIds": []uint64{1}, "passengers": []map[string]any{{"age": 3}}, "contact": contact}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/v1/bookings", "alice", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["error"])
		})
	}
}

func TestCommitExpiredHoldIsGone(t *testing.T) {
	a := newAPI(t)
	id := a.hold("alice", 4)

	a.clock.Advance(6 * time.Minute)
	rec := a.do(http.MethodPost, "/v1/bookings", "alice", map[string]any{
		"reservationId": id,
		"passengers":    passengers(1),
		"contact":       map[string]any{"email": "alice@example.com"},
	})
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "RESERVATION_EXPIRED", decode(t, rec)["error"])
}

func TestCancelBookingTooLate(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/bookings", "alice", map[string]any{
		"showId":     7,
		"seatIds":    []uint64{6},
		"passengers": passengers(1),
		"contact":    map[string]any{"email": "alice@example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["bookingId"].(string)

	a.clock.Advance(29 * time.Hour)
	rec = a.do(http.MethodPost, "/v1/bookings/"+id+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CANCELLATION_CLOSED", decode(t, rec)["error"])
}

func TestShowAvailability(t *testing.T) {
	a := newAPI(t)
	a.hold("alice", 3)

	rec := a.do(http.MethodGet, "/v1/shows/7/availability", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	layout := decode(t, rec)
	seats := layout["seats"].([]any)
	require.Len(t, seats, 10)
	assert.Equal(t, "AVAILABLE", seats[0].(map[string]any)["status"])
	assert.Equal(t, "RESERVED", seats[2].(map[string]any)["status"])

	rec = a.do(http.MethodGet, "/v1/shows/7/availability?seatIds=1,99", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode(t, rec)
	assert.Equal(t, false, report["available"])
	assert.Equal(t, "unknown", report["seats"].([]any)[1].(map[string]any)["reason"])

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/shows/7/availability?seatIds=a,b", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/shows/x/availability", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/shows/8/availability", "", nil).Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	e := echo.New()
	e.GET("/healthz", handler.Health(pinger{err: errors.New("down")}))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

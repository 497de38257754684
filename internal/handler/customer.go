package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/service"
)

// CustomerHandler exposes holds and bookings to authenticated customers.
// Request shape is validated here; the services check business rules.
type CustomerHandler struct {
	reservations *service.Reservations
	bookings     *service.Bookings
}

// NewCustomerHandler returns the customer endpoints.
func NewCustomerHandler(reservations *service.Reservations, bookings *service.Bookings) *CustomerHandler {
	if reservations == nil || bookings == nil {
		panic("nil service passed to NewCustomerHandler")
	}
	return &CustomerHandler{reservations: reservations, bookings: bookings}
}

type holdRequest struct {
	ShowID     uint64   `json:"showId" validate:"required"`
	SeatIDs    []uint64 `json:"seatIds" validate:"dive,gt=0"`
	HolderID   string   `json:"holderId"`
	TTLSeconds int      `json:"ttlSeconds" validate:"gte=0,lte=1800"`
}

type extendRequest struct {
	ReservationID string     `json:"reservationId"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

type holdResponse struct {
	ReservationID string                  `json:"reservationId"`
	ShowID        uint64                  `json:"showId"`
	SeatIDs       []uint64                `json:"seatIds"`
	Status        model.ReservationStatus `json:"status"`
	ExpiresAt     time.Time               `json:"expiresAt"`
	Extensions    int                     `json:"extensions"`
}

func newHoldResponse(r model.Reservation) holdResponse {
	return holdResponse{
		ReservationID: r.ID,
		ShowID:        r.ShowID,
		SeatIDs:       r.SeatIDs,
		Status:        r.Status,
		ExpiresAt:     r.ExpiresAt,
		Extensions:    r.Extensions,
	}
}

type passengerRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Age    int    `json:"age" validate:"gte=0,lte=130"`
	Gender string `json:"gender" validate:"omitempty,oneof=male female other"`
}

type contactRequest struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// bookingRequest names exactly one source: a reservation to convert or a
// show to book directly.
type bookingRequest struct {
	ShowID             uint64             `json:"showId" validate:"required_without=ReservationID,excluded_with=ReservationID"`
	ReservationID      string             `json:"reservationId" validate:"omitempty,uuid"`
	SeatIDs            []uint64           `json:"seatIds" validate:"dive,gt=0"`
	Passengers         []passengerRequest `json:"passengers" validate:"required,min=1,dive"`
	Contact            contactRequest     `json:"contact"`
	HolderID           string             `json:"holderId"`
	ExpectedTotalCents *int64             `json:"expectedTotalCents" validate:"omitempty,gte=0"`
}

func (r bookingRequest) source() service.BookingSource {
	if r.ReservationID != "" {
		return service.HoldSource{ReservationID: r.ReservationID}
	}
	return service.DirectSource{ShowID: r.ShowID}
}

type cancelBookingRequest struct {
	HolderID string `json:"holderId"`
}

type bookingResponse struct {
	BookingID     string              `json:"bookingId"`
	Reference     string              `json:"reference"`
	ShowID        uint64              `json:"showId"`
	ReservationID string              `json:"reservationId,omitempty"`
	SeatIDs       []uint64            `json:"seatIds"`
	Passengers    []model.Passenger   `json:"passengers"`
	Contact       model.Contact       `json:"contact"`
	TotalPrice    int64               `json:"totalPrice"`
	Status        model.BookingStatus `json:"status"`
	RefundAmount  *int64              `json:"refundAmount,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	CancelledAt   *time.Time          `json:"cancelledAt,omitempty"`
}

func newBookingResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		BookingID:     b.ID,
		Reference:     b.Reference,
		ShowID:        b.ShowID,
		ReservationID: b.ReservationID,
		SeatIDs:       b.SeatIDs,
		Passengers:    b.Passengers,
		Contact:       b.Contact,
		TotalPrice:    b.TotalCents,
		Status:        b.Status,
		RefundAmount:  b.RefundCents,
		CreatedAt:     b.CreatedAt,
		CancelledAt:   b.CancelledAt,
	}
}

// HoldSeats handles POST /v1/holds.  It returns 201 with the new hold, or
// 409 with the seats that could not be held.
func (h *CustomerHandler) HoldSeats(c echo.Context) error {
	var req holdRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	holderID, err := holder(c, req.HolderID)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.reservations.Create(c.Request().Context(), service.HoldRequest{
		ShowID:   req.ShowID,
		SeatIDs:  req.SeatIDs,
		HolderID: holderID,
		TTL:      time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newHoldResponse(res))
}

// ExtendHold handles PATCH /v1/holds/:id.  Without expiresAt the hold is
// extended by the default hold time counted from now.
func (h *CustomerHandler) ExtendHold(c echo.Context) error {
	id := c.Param("id")
	var req extendRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	if req.ReservationID != "" && req.ReservationID != id {
		return respondError(c, apperror.New(apperror.CodeValidation, "reservationId does not match the path"))
	}
	holderID, err := holder(c, "")
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	var res model.Reservation
	if req.ExpiresAt != nil {
		res, err = h.reservations.Extend(ctx, id, holderID, req.ExpiresAt.UTC())
	} else {
		res, err = h.reservations.ExtendDefault(ctx, id, holderID)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newHoldResponse(res))
}

// ReleaseHold handles DELETE /v1/holds/:id.  Releasing a hold that is
// already gone still answers 204.
func (h *CustomerHandler) ReleaseHold(c echo.Context) error {
	holderID, err := holder(c, "")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.reservations.Cancel(c.Request().Context(), c.Param("id"), holderID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateBooking handles POST /v1/bookings for both the hold and the
// direct path.
func (h *CustomerHandler) CreateBooking(c echo.Context) error {
	var req bookingRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	holderID, err := holder(c, req.HolderID)
	if err != nil {
		return respondError(c, err)
	}
	passengers := make([]model.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = model.Passenger{Name: p.Name, Age: p.Age, Gender: p.Gender}
	}
	booking, err := h.bookings.Commit(c.Request().Context(), service.CommitRequest{
		Source:             req.source(),
		SeatIDs:            req.SeatIDs,
		HolderID:           holderID,
		Passengers:         passengers,
		Contact:            model.Contact{Email: req.Contact.Email, Phone: req.Contact.Phone},
		ExpectedTotalCents: req.ExpectedTotalCents,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id.
func (h *CustomerHandler) GetBooking(c echo.Context) error {
	holderID, err := holder(c, "")
	if err != nil {
		return respondError(c, err)
	}
	booking, err := h.bookings.Get(c.Request().Context(), c.Param("id"), holderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newBookingResponse(booking))
}

// CancelBooking handles POST /v1/bookings/:id/cancel.
func (h *CustomerHandler) CancelBooking(c echo.Context) error {
	var req cancelBookingRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	holderID, err := holder(c, req.HolderID)
	if err != nil {
		return respondError(c, err)
	}
	result, err := h.bookings.Cancel(c.Request().Context(), c.Param("id"), holderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

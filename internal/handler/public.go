package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/service"
)

// PublicHandler serves seat availability to guests.  Responses are read
// from the store on every request.
type PublicHandler struct {
	inventory    *service.Inventory
	reservations *service.Reservations
}

// NewPublicHandler returns the public endpoints.
func NewPublicHandler(inventory *service.Inventory, reservations *service.Reservations) *PublicHandler {
	return &PublicHandler{inventory: inventory, reservations: reservations}
}

type layoutResponse struct {
	ShowID uint64             `json:"showId"`
	Seats  []service.SeatView `json:"seats"`
}

type selectionResponse struct {
	ShowID uint64 `json:"showId"`
	service.AvailabilityReport
}

// GetShowAvailability handles GET /v1/shows/:id/availability.  Without
// seatIds it returns the whole layout; with ?seatIds=1,2 it explains per
// seat whether the selection can be held.
func (h *PublicHandler) GetShowAvailability(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return respondError(c, apperror.New(apperror.CodeValidation, "invalid show id"))
	}
	ctx := c.Request().Context()

	raw := strings.TrimSpace(c.QueryParam("seatIds"))
	if raw == "" {
		seats, err := h.inventory.GetLayout(ctx, showID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, layoutResponse{ShowID: showID, Seats: seats})
	}

	seatIDs, err := parseIDs(raw)
	if err != nil {
		return respondError(c, apperror.New(apperror.CodeValidation, "seatIds must be a comma separated list of positive integers"))
	}
	report, err := h.reservations.CheckDetailedAvailability(ctx, showID, seatIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, selectionResponse{ShowID: showID, AvailabilityReport: report})
}

func parseIDs(raw string) ([]uint64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || id == 0 {
			return nil, strconv.ErrSyntax
		}
		ids = append(ids, id)
	}
	return ids, nil
}

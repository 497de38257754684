package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking/internal/apperror"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   string               `json:"error"`
	Message string               `json:"message"`
	Seats   []apperror.SeatIssue `json:"seats,omitempty"`
	Fields  map[string]string    `json:"fields,omitempty"`
}

// statusOf maps an error code to its HTTP status.
func statusOf(code apperror.Code) int {
	switch code {
	case apperror.CodeSeatConflict, apperror.CodePriceMismatch, apperror.CodeCancellationClosed:
		return http.StatusConflict
	case apperror.CodeReservationExpired:
		return http.StatusGone
	case apperror.CodeNotFound, apperror.CodeSeatNotFound:
		return http.StatusNotFound
	case apperror.CodeValidation, apperror.CodeEmptySelection:
		return http.StatusBadRequest
	case apperror.CodeNotHolder:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an errorBody.  Anything that is not an
// apperror.Error is reported as an internal error without its text.
func respondError(c echo.Context, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		c.Logger().Error(err)
		appErr = apperror.Internal("handle request", err)
	}
	body := errorBody{Error: string(appErr.Code), Message: appErr.Message, Seats: appErr.Seats}
	if appErr.Code == apperror.CodeInternal {
		body.Message = "internal error"
	}
	return c.JSON(statusOf(appErr.Code), body)
}

// badRequest reports a malformed or invalid request body.
func badRequest(c echo.Context, err error) error {
	body := errorBody{Error: string(apperror.CodeValidation), Message: "invalid request body"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body.Message = "request validation failed"
		body.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			body.Fields[fe.Field()] = fe.Tag()
		}
	}
	return c.JSON(http.StatusBadRequest, body)
}

// bind decodes the request into req and validates it with the echo
// validator.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/middleware"
)

// holder returns the authenticated holder.  A holder id sent in the body
// must name the same subject as the token.
func holder(c echo.Context, claimed string) (string, error) {
	id := middleware.HolderID(c)
	if id == "" {
		return "", apperror.New(apperror.CodeNotHolder, "no authenticated holder")
	}
	if claimed != "" && claimed != id {
		return "", apperror.New(apperror.CodeNotHolder, "holderId does not match the authenticated user")
	}
	return id, nil
}

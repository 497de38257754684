// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/middleware"
)

// CustomerRole is the role claim required for holds and bookings.
const CustomerRole = "CUSTOMER"

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Customer *handler.CustomerHandler
	Public   *handler.PublicHandler
	Health   echo.HandlerFunc
}

// RegisterRoutes wires the public and customer routes.  limiter guards
// the mutating customer endpoints; pass nil to run without one.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	if e.Validator == nil {
		e.Validator = handler.NewValidator()
	}
	if h.Health != nil {
		e.GET("/healthz", h.Health)
	}

	// Availability is public so guests can look before signing in.
	e.GET("/v1/shows/:id/availability", h.Public.GetShowAvailability)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(CustomerRole))
	mutating := []echo.MiddlewareFunc{}
	if limiter != nil {
		mutating = append(mutating, limiter)
	}

	g.POST("/holds", h.Customer.HoldSeats, mutating...)
	g.PATCH("/holds/:id", h.Customer.ExtendHold, mutating...)
	g.DELETE("/holds/:id", h.Customer.ReleaseHold, mutating...)

	g.POST("/bookings", h.Customer.CreateBooking, mutating...)
	g.GET("/bookings/:id", h.Customer.GetBooking)
	g.POST("/bookings/:id/cancel", h.Customer.CancelBooking, mutating...)
}

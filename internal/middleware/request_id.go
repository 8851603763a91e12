package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/txctx"
)

// CarryRequestID copies the id assigned by echo's RequestID middleware into
// the request context so handlers and services can log it.
func CarryRequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if rid == "" {
			rid = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		if rid != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(txctx.WithRID(req.Context(), rid)))
		}
		return next(c)
	}
}

package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/service"
	"github.com/shinyyama/retail-orders-backend/internal/txctx"
)

var domainStatus = []struct {
	err    error
	status int
}{
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrInvalidItem, http.StatusBadRequest},
	{service.ErrInvalidVariation, http.StatusBadRequest},
	{service.ErrInvalidOrder, http.StatusNotFound},
	{service.ErrInvalidCustomer, http.StatusBadRequest},
	{service.ErrInvalidLoan, http.StatusBadRequest},
	{service.ErrInvalidUnit, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrOrderEmpty, http.StatusBadRequest},
	{service.ErrOrderQuantity, http.StatusConflict},
	{service.ErrOrderExceedDownPayment, http.StatusBadRequest},
	{service.ErrOrderForbidden, http.StatusConflict},
	{service.ErrOrderDetailMismatch, http.StatusBadRequest},
	{service.ErrInventoryUnavailable, http.StatusConflict},
	{service.ErrInventoryWrongVariation, http.StatusBadRequest},
	{service.ErrCartConflict, http.StatusConflict},
	{service.ErrPaymentGateway, http.StatusBadGateway},
}

// writeError renders domain errors with their stable code and hides
// everything else behind internal_error.
func writeError(c echo.Context, err error) error {
	for _, d := range domainStatus {
		if errors.Is(err, d.err) {
			return c.JSON(d.status, NewErrorResponse(d.err.Error(), err.Error()))
		}
	}
	log.Printf("[http] rid=%s method=%s path=%s stage=internal_error err=%v", txctx.RID(c.Request().Context()), c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "internal error"))
}

func currentUID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}

func isStaff(c echo.Context) bool {
	staff, _ := c.Get("staff").(bool)
	return staff
}

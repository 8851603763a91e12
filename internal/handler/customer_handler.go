package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/service"
)

type CustomerHandler struct {
	svc service.CustomerService
}

func NewCustomerHandler(svc service.CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

type CustomerResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func toCustomerResponse(cu *model.Customer) CustomerResponse {
	return CustomerResponse{
		ID:      cu.ID,
		Name:    cu.Name,
		Email:   strPtrOrNil(cu.Email),
		Phone:   strPtrOrNil(cu.Phone),
		Address: strPtrOrNil(cu.Address),
	}
}

func (h *CustomerHandler) GetMe(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	cu, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCustomerResponse(cu))
}

// PutMe creates or replaces the profile of the signed-in customer. A profile
// must exist before the customer can check out.
func (h *CustomerHandler) PutMe(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req billingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	cu, err := h.svc.SaveProfile(c.Request().Context(), uid, req.billing())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCustomerResponse(cu))
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/service"
)

type InventoryHandler struct {
	svc service.InventoryService
}

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

type UnitResponse struct {
	ID          uint64 `json:"id"`
	ItemID      uint64 `json:"itemId"`
	VariationID uint64 `json:"variationId"`
	State       string `json:"state"`
}

func toUnitResponse(u *model.InventoryUnit) UnitResponse {
	return UnitResponse{ID: u.ID, ItemID: u.ItemID, VariationID: u.VariationID, State: string(u.State)}
}

func (h *InventoryHandler) ListUnits(c echo.Context) error {
	variationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid variation id"))
	}
	state := model.UnitState(c.QueryParam("state"))
	switch state {
	case "", model.UnitStateInStock, model.UnitStateReserved, model.UnitStateSold, model.UnitStateDelivered:
	default:
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid state"))
	}
	units, err := h.svc.ListUnits(c.Request().Context(), variationID, state)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]UnitResponse, 0, len(units))
	for i := range units {
		resp = append(resp, toUnitResponse(&units[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

type stockRequest struct {
	ItemID      uint64 `json:"itemId"`
	VariationID uint64 `json:"variationId"`
	Count       int    `json:"count"`
}

func (h *InventoryHandler) Stock(c echo.Context) error {
	var req stockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	units, err := h.svc.StockUnits(c.Request().Context(), req.ItemID, req.VariationID, req.Count)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]UnitResponse, 0, len(units))
	for i := range units {
		resp = append(resp, toUnitResponse(&units[i]))
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *InventoryHandler) Hold(c echo.Context) error {
	return h.move(c, h.svc.HoldUnit)
}

func (h *InventoryHandler) Release(c echo.Context) error {
	return h.move(c, h.svc.ReleaseUnit)
}

func (h *InventoryHandler) move(c echo.Context, fn func(ctx context.Context, id uint64) (*model.InventoryUnit, error)) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid unit id"))
	}
	u, err := fn(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUnitResponse(u))
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/service"
)

type CartHandler struct {
	svc service.CartService
}

func NewCartHandler(svc service.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

type CartLineResponse struct {
	ItemID        uint64  `json:"itemId"`
	VariationID   uint64  `json:"variationId"`
	Quantity      int     `json:"quantity"`
	ItemName      string  `json:"itemName"`
	VariationName string  `json:"variationName"`
	Price         string  `json:"price"`
	PriceSale     string  `json:"priceSale"`
	PromotionID   *uint64 `json:"promotionId,omitempty"`
	Subtotal      string  `json:"subtotal"`
}

type CartResponse struct {
	Cart    []CartLineResponse `json:"cart"`
	Total   string             `json:"total"`
	Version int64              `json:"version"`
}

func toCartResponse(v *service.CartView) CartResponse {
	lines := make([]CartLineResponse, 0, len(v.Lines))
	for _, l := range v.Lines {
		lines = append(lines, CartLineResponse{
			ItemID:        l.ItemID,
			VariationID:   l.VariationID,
			Quantity:      l.Quantity,
			ItemName:      l.ItemName,
			VariationName: l.VariationName,
			Price:         l.Price.StringFixed(2),
			PriceSale:     l.PriceSale.StringFixed(2),
			PromotionID:   l.PromotionID,
			Subtotal:      l.Subtotal.StringFixed(2),
		})
	}
	return CartResponse{Cart: lines, Total: v.Total.StringFixed(2), Version: v.Version}
}

type cartRequest struct {
	Cart []model.CartLine `json:"cart"`
}

type cartLineRequest struct {
	ItemID      uint64           `json:"itemId"`
	VariationID uint64           `json:"variationId"`
	Quantity    int              `json:"quantity"`
	Cart        []model.CartLine `json:"cart"`
}

func (r cartLineRequest) line() model.CartLine {
	return model.CartLine{ItemID: r.ItemID, VariationID: r.VariationID, Quantity: r.Quantity}
}

func (h *CartHandler) Resolve(c echo.Context) error {
	var req cartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	view, err := h.svc.Resolve(c.Request().Context(), currentUID(c), req.Cart)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(view))
}

func (h *CartHandler) Get(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	view, err := h.svc.Resolve(c.Request().Context(), uid, nil)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(view))
}

func (h *CartHandler) Add(c echo.Context) error {
	var req cartLineRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	view, err := h.svc.Add(c.Request().Context(), currentUID(c), req.Cart, req.line())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(view))
}

func (h *CartHandler) Update(c echo.Context) error {
	var req cartLineRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	view, err := h.svc.Update(c.Request().Context(), currentUID(c), req.Cart, req.line())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(view))
}

func (h *CartHandler) Remove(c echo.Context) error {
	itemID, err := strconv.ParseUint(c.Param("itemId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	variationID, err := strconv.ParseUint(c.Param("variationId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid variation id"))
	}
	var req cartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	view, err := h.svc.Remove(c.Request().Context(), currentUID(c), req.Cart, itemID, variationID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(view))
}

func (h *CartHandler) Sync(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req cartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	view, err := h.svc.Sync(c.Request().Context(), uid, req.Cart)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(view))
}

func (h *CartHandler) Clear(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	if err := h.svc.Clear(c.Request().Context(), uid); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

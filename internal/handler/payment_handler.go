package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/gateway"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/service"
	"github.com/shinyyama/retail-orders-backend/internal/txctx"
)

const maxWebhookBody = 1 << 16

// EventParser authenticates a raw webhook delivery.
type EventParser interface {
	ParseEvent(payload []byte, signature string) (*gateway.Event, error)
}

type PaymentHandler struct {
	payments service.PaymentService
	carts    service.CartService
	parser   EventParser
}

func NewPaymentHandler(payments service.PaymentService, carts service.CartService, parser EventParser) *PaymentHandler {
	return &PaymentHandler{payments: payments, carts: carts, parser: parser}
}

type PaymentStartResponse struct {
	OrderID      string `json:"orderId"`
	IntentID     string `json:"paymentIntentId"`
	ClientSecret string `json:"clientSecret"`
	AmountMinor  int64  `json:"amount"`
	Currency     string `json:"currency"`
}

func (h *PaymentHandler) Start(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	ctx := c.Request().Context()
	fromStore, err := checkoutCart(ctx, h.carts, uid, &req)
	if err != nil {
		return writeError(c, err)
	}
	start, err := h.payments.StartPayment(ctx, req.input(uid, model.OrderChannelOnline))
	if err != nil {
		return writeError(c, err)
	}
	if fromStore {
		clearCart(ctx, h.carts, uid)
	}
	return c.JSON(http.StatusCreated, PaymentStartResponse{
		OrderID:      start.OrderID,
		IntentID:     start.IntentID,
		ClientSecret: start.ClientSecret,
		AmountMinor:  start.AmountMinor,
		Currency:     start.Currency,
	})
}

// Webhook acknowledges every authentic event it understands, even when
// applying it failed; Reconcile settles whatever was missed.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unreadable body"))
	}
	ev, err := h.parser.ParseEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("[webhook] stage=parse_fail err=%v", err)
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid event"))
	}
	if err := h.payments.HandleEvent(c.Request().Context(), *ev); err != nil {
		if errors.Is(err, service.ErrUnknownEvent) {
			return c.JSON(http.StatusBadRequest, NewErrorResponse(service.ErrUnknownEvent.Error(), ev.Type))
		}
		log.Printf("[webhook] rid=%s event=%s type=%s stage=apply_fail err=%v", txctx.RID(c.Request().Context()), ev.ID, ev.Type, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

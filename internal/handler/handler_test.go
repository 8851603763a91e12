package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/gateway"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCarts struct {
	service.CartService
	stored  []model.CartLine
	cleared []string
	added   []model.CartLine
}

func (s *stubCarts) Resolve(ctx context.Context, identity string, clientLines []model.CartLine) (*service.CartView, error) {
	lines := clientLines
	if identity != "" {
		lines = append(append([]model.CartLine{}, s.stored...), clientLines...)
	}
	return viewOf(lines), nil
}

func (s *stubCarts) Add(ctx context.Context, identity string, clientLines []model.CartLine, line model.CartLine) (*service.CartView, error) {
	if line.Quantity > 3 {
		return nil, fmt.Errorf("%w: only 3 left", service.ErrOrderQuantity)
	}
	s.added = append(s.added, line)
	return viewOf(append(clientLines, line)), nil
}

func (s *stubCarts) Remove(ctx context.Context, identity string, clientLines []model.CartLine, itemID, variationID uint64) (*service.CartView, error) {
	var kept []model.CartLine
	for _, l := range clientLines {
		if l.ItemID != itemID || l.VariationID != variationID {
			kept = append(kept, l)
		}
	}
	return viewOf(kept), nil
}

func (s *stubCarts) Clear(ctx context.Context, identity string) error {
	s.cleared = append(s.cleared, identity)
	return nil
}

func viewOf(lines []model.CartLine) *service.CartView {
	v := &service.CartView{Total: decimal.Zero}
	for _, l := range lines {
		sub := decimal.NewFromInt(int64(10 * l.Quantity))
		v.Lines = append(v.Lines, service.CartLineView{
			ItemID: l.ItemID, VariationID: l.VariationID, Quantity: l.Quantity,
			Price: decimal.NewFromInt(10), PriceSale: decimal.NewFromInt(10), Subtotal: sub,
		})
		v.Total = v.Total.Add(sub)
	}
	return v
}

type stubOrders struct {
	service.OrderService
	orders map[string]*model.Order
	input  *service.CreateOrderInput
	err    error
}

func (s *stubOrders) CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.input = &in
	return &model.Order{ID: "o-1", CustomerID: in.CustomerID, Status: model.OrderStatusOrdered, Channel: in.Channel, TotalPrice: decimal.NewFromInt(20)}, nil
}

func (s *stubOrders) Get(ctx context.Context, id string) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, service.ErrInvalidOrder
	}
	return o, nil
}

type stubPayments struct {
	service.PaymentService
	handled []gateway.Event
	err     error
}

func (s *stubPayments) HandleEvent(ctx context.Context, ev gateway.Event) error {
	s.handled = append(s.handled, ev)
	return s.err
}

type stubParser struct{}

func (stubParser) ParseEvent(payload []byte, signature string) (*gateway.Event, error) {
	if signature != "good" {
		return nil, gateway.ErrInvalidSignature
	}
	var ev gateway.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func newContext(method, target, body string, uid string, staff bool) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != "" {
		c.Set("uid", uid)
		c.Set("staff", staff)
	}
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("%w: variation 3", service.ErrOrderQuantity), http.StatusConflict, "ORDER_QUANTITY"},
		{service.ErrOrderExceedDownPayment, http.StatusBadRequest, "ORDER_EXCEEDDOWNPAYMENT"},
		{service.ErrInventoryWrongVariation, http.StatusBadRequest, "INVENTORY_INCORRECTVARIATION"},
		{service.ErrPaymentGateway, http.StatusBadGateway, "PAYMENT_GATEWAY"},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/", "", "", false)
			require.NoError(t, writeError(c, tt.err))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestWebhook(t *testing.T) {
	body := `{"ID":"evt_1","Type":"payment_intent.succeeded","IntentID":"pi_1"}`
	tests := []struct {
		name       string
		signature  string
		handleErr  error
		wantStatus int
		wantCalls  int
	}{
		{"bad signature", "forged", nil, http.StatusBadRequest, 0},
		{"applied", "good", nil, http.StatusOK, 1},
		{"unknown type", "good", service.ErrUnknownEvent, http.StatusBadRequest, 1},
		{"apply failure is acknowledged", "good", errors.New("deadlock"), http.StatusOK, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &stubPayments{err: tt.handleErr}
			h := NewPaymentHandler(payments, &stubCarts{}, stubParser{})
			c, rec := newContext(http.MethodPost, "/webhooks/payment", body, "", false)
			c.Request().Header.Set("Stripe-Signature", tt.signature)

			require.NoError(t, h.Webhook(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Len(t, payments.handled, tt.wantCalls)
		})
	}
}

func TestCreateOrderUsesStoredCart(t *testing.T) {
	carts := &stubCarts{stored: []model.CartLine{{ItemID: 1, VariationID: 2, Quantity: 2}}}
	orders := &stubOrders{}
	h := NewOrderHandler(orders, carts)

	c, rec := newContext(http.MethodPost, "/api/orders", `{"billing":{"name":"Alice"}}`, "u1", false)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, orders.input)
	assert.Equal(t, model.OrderChannelCOD, orders.input.Channel)
	assert.Equal(t, "u1", orders.input.CustomerID)
	assert.Equal(t, carts.stored, orders.input.Cart)
	assert.Equal(t, []string{"u1"}, carts.cleared)

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "o-1", resp.ID)
	assert.Equal(t, "20.00", resp.TotalPrice)
}

func TestCreateOrderKeepsCartOnFailure(t *testing.T) {
	carts := &stubCarts{stored: []model.CartLine{{ItemID: 1, VariationID: 2, Quantity: 9}}}
	h := NewOrderHandler(&stubOrders{err: service.ErrOrderQuantity}, carts)

	c, rec := newContext(http.MethodPost, "/api/orders", `{}`, "u1", false)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, carts.cleared)
}

func TestCreatePOSRequiresCustomer(t *testing.T) {
	orders := &stubOrders{}
	h := NewOrderHandler(orders, &stubCarts{})

	c, rec := newContext(http.MethodPost, "/api/orders/pos", `{"cart":[{"itemId":1,"variationId":2,"quantity":1}]}`, "clerk", true)
	require.NoError(t, h.CreatePOS(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodPost, "/api/orders/pos",
		`{"customerId":"u9","cart":[{"itemId":1,"variationId":2,"quantity":1}],"loan":{"downPayment":"100","loanTerm":6,"apr":"3.5"}}`, "clerk", true)
	require.NoError(t, h.CreatePOS(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.OrderChannelPOS, orders.input.Channel)
	require.NotNil(t, orders.input.Loan)
	assert.True(t, orders.input.Loan.APR.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, 6, orders.input.Loan.LoanTerm)
}

func TestGetOrderOwnership(t *testing.T) {
	orders := &stubOrders{orders: map[string]*model.Order{
		"o-1": {ID: "o-1", CustomerID: "u1", Status: model.OrderStatusOrdered},
	}}
	h := NewOrderHandler(orders, &stubCarts{})

	tests := []struct {
		name       string
		id         string
		uid        string
		staff      bool
		wantStatus int
	}{
		{"owner", "o-1", "u1", false, http.StatusOK},
		{"stranger", "o-1", "u2", false, http.StatusForbidden},
		{"staff", "o-1", "clerk", true, http.StatusOK},
		{"missing", "o-2", "u1", false, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/orders/"+tt.id, "", tt.uid, tt.staff)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			require.NoError(t, h.Get(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCartAdd(t *testing.T) {
	carts := &stubCarts{}
	h := NewCartHandler(carts)

	c, rec := newContext(http.MethodPost, "/api/cart/items",
		`{"itemId":1,"variationId":2,"quantity":1,"cart":[{"itemId":5,"variationId":6,"quantity":2}]}`, "", false)
	require.NoError(t, h.Add(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp CartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Cart, 2)
	assert.Equal(t, "30.00", resp.Total)

	c, rec = newContext(http.MethodPost, "/api/cart/items", `{"itemId":1,"variationId":2,"quantity":4}`, "u1", false)
	require.NoError(t, h.Add(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ORDER_QUANTITY", decodeError(t, rec).Error.Code)
}

func TestCartRemove(t *testing.T) {
	h := NewCartHandler(&stubCarts{})
	remove := func(body string) (*httptest.ResponseRecorder, error) {
		c, rec := newContext(http.MethodDelete, "/api/cart/items/1/2", body, "", false)
		c.SetParamNames("itemId", "variationId")
		c.SetParamValues("1", "2")
		return rec, h.Remove(c)
	}

	rec, err := remove(`{"cart":[{"itemId":1,"variationId":2,"quantity":1},{"itemId":5,"variationId":6,"quantity":2}]}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp CartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Cart, 1)
	assert.Equal(t, "20.00", resp.Total)

	rec, err = remove(`{"cart":[{"itemId":5`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Error.Code)

	rec, err = remove("")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartRoutesRequireIdentity(t *testing.T) {
	h := NewCartHandler(&stubCarts{})
	c, rec := newContext(http.MethodPost, "/api/cart/sync", `{"cart":[]}`, "", false)
	require.NoError(t, h.Sync(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

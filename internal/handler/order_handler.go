package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/service"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	orders service.OrderService
	carts  service.CartService
}

func NewOrderHandler(orders service.OrderService, carts service.CartService) *OrderHandler {
	return &OrderHandler{orders: orders, carts: carts}
}

type billingRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (b billingRequest) billing() service.Billing {
	return service.Billing{Name: b.Name, Phone: b.Phone, Email: b.Email, Address: b.Address}
}

type loanRequest struct {
	DownPayment decimal.Decimal `json:"downPayment"`
	LoanTerm    int             `json:"loanTerm"`
	APR         decimal.Decimal `json:"apr"`
}

type checkoutRequest struct {
	CustomerID string           `json:"customerId"`
	Billing    billingRequest   `json:"billing"`
	Loan       *loanRequest     `json:"loan"`
	Cart       []model.CartLine `json:"cart"`
}

func (r checkoutRequest) input(customerID string, channel model.OrderChannel) service.CreateOrderInput {
	in := service.CreateOrderInput{
		CustomerID: customerID,
		Billing:    r.Billing.billing(),
		Cart:       r.Cart,
		Channel:    channel,
	}
	if r.Loan != nil {
		in.Loan = &service.LoanTerms{DownPayment: r.Loan.DownPayment, LoanTerm: r.Loan.LoanTerm, APR: r.Loan.APR}
	}
	return in
}

type OrderDetailResponse struct {
	ID            uint64   `json:"id"`
	ItemID        uint64   `json:"itemId"`
	VariationID   uint64   `json:"variationId"`
	ItemName      string   `json:"itemName"`
	VariationName string   `json:"variationName"`
	Price         string   `json:"price"`
	PriceSale     string   `json:"priceSale"`
	PromotionID   *uint64  `json:"promotionId,omitempty"`
	Quantity      int      `json:"quantity"`
	UnitIDs       []uint64 `json:"inventoryUnitIds"`
}

type OrderPaymentResponse struct {
	Installment int     `json:"installment"`
	Method      string  `json:"method"`
	Amount      string  `json:"amount"`
	IsPaid      bool    `json:"isPaid"`
	DueDate     string  `json:"dueDate"`
	PaidAt      *string `json:"paidAt,omitempty"`
}

type OrderResponse struct {
	ID          string                 `json:"id"`
	CustomerID  string                 `json:"customerId"`
	VerifierID  *string                `json:"verifierId,omitempty"`
	Status      string                 `json:"status"`
	Channel     string                 `json:"channel"`
	TotalPrice  string                 `json:"totalPrice"`
	PromotionID *uint64                `json:"appliedPromotionId,omitempty"`
	DownPayment *string                `json:"downPayment,omitempty"`
	LoanTerm    *int                   `json:"loanTerm,omitempty"`
	APR         *string                `json:"apr,omitempty"`
	LoanPayment *string                `json:"loanPayment,omitempty"`
	Details     []OrderDetailResponse  `json:"details"`
	Payments    []OrderPaymentResponse `json:"payments"`
	VerifiedAt  *string                `json:"verifiedAt,omitempty"`
	DeliveredAt *string                `json:"deliveredAt,omitempty"`
	CreatedAt   string                 `json:"createdAt"`
}

func decimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	val := d.StringFixed(2)
	return &val
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	val := t.Format(time.RFC3339)
	return &val
}

func toOrderResponse(o *model.Order) OrderResponse {
	details := make([]OrderDetailResponse, 0, len(o.Details))
	for _, d := range o.Details {
		units := make([]uint64, 0, len(d.Allocations))
		for _, a := range d.Allocations {
			units = append(units, a.InventoryUnitID)
		}
		details = append(details, OrderDetailResponse{
			ID:            d.ID,
			ItemID:        d.ItemID,
			VariationID:   d.VariationID,
			ItemName:      d.ItemName,
			VariationName: d.VariationName,
			Price:         d.Price.StringFixed(2),
			PriceSale:     d.PriceSale.StringFixed(2),
			PromotionID:   d.PromotionID,
			Quantity:      d.Quantity,
			UnitIDs:       units,
		})
	}
	payments := make([]OrderPaymentResponse, 0, len(o.Payments))
	for _, p := range o.Payments {
		payments = append(payments, OrderPaymentResponse{
			Installment: p.Installment,
			Method:      string(p.Method),
			Amount:      p.Amount.StringFixed(2),
			IsPaid:      p.IsPaid,
			DueDate:     p.DueDate.Format(time.RFC3339),
			PaidAt:      timePtr(p.PaidAt),
		})
	}
	var apr *string
	if o.APR != nil {
		val := o.APR.String()
		apr = &val
	}
	return OrderResponse{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		VerifierID:  o.VerifierID,
		Status:      string(o.Status),
		Channel:     string(o.Channel),
		TotalPrice:  o.TotalPrice.StringFixed(2),
		PromotionID: o.AppliedPromotionID,
		DownPayment: decimalPtr(o.DownPayment),
		LoanTerm:    o.LoanTerm,
		APR:         apr,
		LoanPayment: decimalPtr(o.LoanPayment),
		Details:     details,
		Payments:    payments,
		VerifiedAt:  timePtr(o.VerifiedAt),
		DeliveredAt: timePtr(o.DeliveredAt),
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
	}
}

// checkoutCart fills an empty request cart from the stored one. The returned
// flag tells the caller to clear the stored cart once the order is placed.
func checkoutCart(ctx context.Context, carts service.CartService, uid string, req *checkoutRequest) (bool, error) {
	if len(req.Cart) > 0 || uid == "" {
		return false, nil
	}
	view, err := carts.Resolve(ctx, uid, nil)
	if err != nil {
		return false, err
	}
	req.Cart = view.CartLines()
	return true, nil
}

func clearCart(ctx context.Context, carts service.CartService, uid string) {
	if err := carts.Clear(ctx, uid); err != nil {
		log.Printf("[cart] identity=%s stage=clear_after_checkout_fail err=%v", uid, err)
	}
}

func (h *OrderHandler) Create(c echo.Context) error {
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
	o, err := h.orders.CreateOrder(ctx, req.input(uid, model.OrderChannelCOD))
	if err != nil {
		return writeError(c, err)
	}
	if fromStore {
		clearCart(ctx, h.carts, uid)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

// CreatePOS places a paid counter order on behalf of a customer.
func (h *OrderHandler) CreatePOS(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if req.CustomerID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "customerId is required"))
	}
	o, err := h.orders.CreateOrder(c.Request().Context(), req.input(req.CustomerID, model.OrderChannelPOS))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) Get(c echo.Context) error {
	o, err := h.orders.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if o.CustomerID != currentUID(c) && !isStaff(c) {
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	list, err := h.orders.ListByCustomer(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]OrderResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toOrderResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

type verifyRequest struct {
	Selections []struct {
		VariationID     uint64 `json:"variationId"`
		InventoryUnitID uint64 `json:"inventoryUnitId"`
	} `json:"selections"`
}

func (h *OrderHandler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	selections := make([]service.UnitSelection, 0, len(req.Selections))
	for _, s := range req.Selections {
		selections = append(selections, service.UnitSelection{VariationID: s.VariationID, InventoryUnitID: s.InventoryUnitID})
	}
	o, err := h.orders.VerifyOrder(c.Request().Context(), c.Param("id"), selections, currentUID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Complete(c echo.Context) error {
	o, err := h.orders.CompleteOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	o, err := h.orders.CancelOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

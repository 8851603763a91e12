package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Billing struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

type CreateOrderInput struct {
	CustomerID string
	Billing    Billing
	Loan       *LoanTerms
	Cart       []model.CartLine
	Channel    model.OrderChannel
}

type UnitSelection struct {
	VariationID     uint64
	InventoryUnitID uint64
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
	VerifyOrder(ctx context.Context, orderID string, selections []UnitSelection, verifierID string) (*model.Order, error)
	CompleteOrder(ctx context.Context, orderID string) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*model.Order, error)
}

type orderService struct {
	tx        repository.Transactor
	orders    repository.OrderRepository
	customers repository.CustomerRepository
	items     repository.ItemRepository
	inventory repository.InventoryRepository
	allocator Allocator
	notify    Notifier
	now       func() time.Time
	newID     func() string
}

func NewOrderService(
	tx repository.Transactor,
	orders repository.OrderRepository,
	customers repository.CustomerRepository,
	items repository.ItemRepository,
	inventory repository.InventoryRepository,
	allocator Allocator,
	notify Notifier,
) OrderService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &orderService{
		tx:        tx,
		orders:    orders,
		customers: customers,
		items:     items,
		inventory: inventory,
		allocator: allocator,
		notify:    notify,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateOrder prices the cart, checks stock as a hard requirement and
// persists the order with its details and payment rows in one transaction.
func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if in.CustomerID == "" {
		return nil, ErrInvalidCustomer
	}
	if _, err := s.customers.FindByID(ctx, in.CustomerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCustomer
		}
		return nil, err
	}
	channel := in.Channel
	if channel == "" {
		channel = model.OrderChannelCOD
	}

	details, total, promotionID, err := s.priceLines(ctx, in.Cart)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &model.Order{
		ID:                 s.newID(),
		CustomerID:         in.CustomerID,
		Channel:            channel,
		TotalPrice:         total,
		AppliedPromotionID: promotionID,
		PayeeName:          in.Billing.Name,
		PayeePhone:         in.Billing.Phone,
		PayeeEmail:         in.Billing.Email,
		PayeeAddress:       in.Billing.Address,
		Details:            details,
	}
	if in.Loan != nil {
		quote, err := QuoteLoan(total, *in.Loan)
		if err != nil {
			return nil, err
		}
		down, apr, term := in.Loan.DownPayment, in.Loan.APR, in.Loan.LoanTerm
		o.DownPayment = &down
		o.APR = &apr
		o.LoanTerm = &term
		o.LoanPayment = &quote.LoanPayment
		o.TotalPrice = quote.TotalPrice
	}

	first := model.OrderPayment{Installment: 0, Amount: o.AmountDueNow(), DueDate: now}
	switch channel {
	case model.OrderChannelPOS:
		o.Status = model.OrderStatusOrdered
		first.Method = model.PaymentMethodCash
		first.IsPaid = true
		first.PaidAt = &now
	case model.OrderChannelCOD:
		o.Status = model.OrderStatusOrdered
		first.Method = model.PaymentMethodCOD
	case model.OrderChannelOnline:
		o.Status = model.OrderStatusProcessing
		first.Method = model.PaymentMethodCard
	default:
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidOrder, channel)
	}
	o.Payments = []model.OrderPayment{first}
	if first.IsPaid && o.HasLoan() {
		o.Payments = append(o.Payments, firstInstallment(o, first.Method, now))
	}

	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.orders.Create(ctx, o)
	}); err != nil {
		return nil, err
	}
	log.Printf("[order] id=%s customer=%s stage=created channel=%s status=%s total=%s", o.ID, o.CustomerID, o.Channel, o.Status, o.TotalPrice)
	return o, nil
}

// priceLines drops lines that no longer reference a valid item variation, as
// cart resolution does, but fails the whole order when a remaining line asks
// for more than is in stock.
func (s *orderService) priceLines(ctx context.Context, cart []model.CartLine) ([]model.OrderDetail, decimal.Decimal, *uint64, error) {
	lines := mergeLines(cart)
	if len(lines) == 0 {
		return nil, decimal.Zero, nil, ErrOrderEmpty
	}
	ids := make([]uint64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, nil, err
	}
	byID := make(map[uint64]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	now := s.now()
	total := decimal.Zero
	var promotionID *uint64
	details := make([]model.OrderDetail, 0, len(lines))
	for _, l := range lines {
		item, ok := byID[l.ItemID]
		if !ok || !item.Active {
			continue
		}
		variation, ok := item.Variation(l.VariationID)
		if !ok {
			continue
		}
		stock, err := s.inventory.CountInStock(ctx, l.VariationID)
		if err != nil {
			return nil, decimal.Zero, nil, err
		}
		if int64(l.Quantity) > stock {
			return nil, decimal.Zero, nil, fmt.Errorf("%w: variation %d has %d in stock", ErrOrderQuantity, l.VariationID, stock)
		}
		quote := ResolvePrice(item, now)
		if promotionID == nil && quote.PromotionID != nil {
			promotionID = quote.PromotionID
		}
		total = total.Add(quote.PriceSale.Mul(decimal.NewFromInt(int64(l.Quantity))))
		details = append(details, model.OrderDetail{
			ItemID:        item.ID,
			VariationID:   variation.ID,
			ItemName:      item.Name,
			VariationName: variation.Name,
			Price:         quote.Price,
			PriceSale:     quote.PriceSale,
			PromotionID:   quote.PromotionID,
			Quantity:      l.Quantity,
		})
	}
	if len(details) == 0 {
		return nil, decimal.Zero, nil, ErrOrderEmpty
	}
	return details, total, promotionID, nil
}

func (s *orderService) Get(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOrder
		}
		return nil, err
	}
	return o, nil
}

func (s *orderService) ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	if customerID == "" {
		return nil, ErrInvalidCustomer
	}
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *orderService) VerifyOrder(ctx context.Context, orderID string, selections []UnitSelection, verifierID string) (*model.Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != model.OrderStatusOrdered {
		return nil, ErrOrderForbidden
	}
	if err := s.allocator.Allocate(ctx, o, selections, verifierID); err != nil {
		return nil, err
	}
	log.Printf("[order] id=%s stage=verified verifier=%s units=%d", o.ID, verifierID, len(selections))
	return s.reloadAndNotify(ctx, orderID, model.NotificationOrderVerified)
}

// CompleteOrder marks the order delivered and every allocated unit with it.
func (s *orderService) CompleteOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanBecome(model.OrderStatusDelivered) {
		return nil, ErrOrderForbidden
	}
	now := s.now().UTC()
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.orders.TransitionStatus(ctx, o.ID, model.OrderStatusVerified, model.OrderStatusDelivered, map[string]interface{}{
			"delivered_at": now,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrOrderForbidden
		}
		unitIDs, err := s.orders.AllocatedUnitIDs(ctx, o.ID)
		if err != nil {
			return err
		}
		moved, err := s.inventory.TransitionState(ctx, unitIDs, model.UnitStateSold, model.UnitStateDelivered)
		if err != nil {
			return err
		}
		if moved != int64(len(unitIDs)) {
			return fmt.Errorf("%w: %d of %d allocated units were not sold", ErrInventoryUnavailable, int64(len(unitIDs))-moved, len(unitIDs))
		}
		if o.Channel == model.OrderChannelCOD {
			if _, err := s.orders.MarkPaymentPaid(ctx, o.ID, 0, now); err != nil {
				return err
			}
			if o.HasLoan() && o.LoanPayment != nil {
				inst := firstInstallment(o, model.PaymentMethodCOD, now)
				if _, err := s.orders.CreatePaymentIfAbsent(ctx, &inst); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[order] id=%s stage=delivered", o.ID)
	return s.reloadAndNotify(ctx, orderID, model.NotificationOrderDelivered)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanBecome(model.OrderStatusCanceled) {
		return nil, ErrOrderForbidden
	}
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.orders.TransitionStatus(ctx, o.ID, model.OrderStatusOrdered, model.OrderStatusCanceled, nil)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrOrderForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[order] id=%s stage=canceled", o.ID)
	return s.reloadAndNotify(ctx, orderID, model.NotificationOrderCanceled)
}

func (s *orderService) reloadAndNotify(ctx context.Context, orderID string, typ model.NotificationType) (*model.Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notify.OrderChanged(ctx, o, typ)
	return o, nil
}

func firstInstallment(o *model.Order, method model.PaymentMethod, from time.Time) model.OrderPayment {
	return model.OrderPayment{
		OrderID:     o.ID,
		Installment: 1,
		Method:      method,
		Amount:      *o.LoanPayment,
		DueDate:     from.AddDate(0, 1, 0),
	}
}

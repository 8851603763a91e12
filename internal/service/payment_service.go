package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/gateway"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const reconcileBatch = 100

// PaymentGateway is the outbound side of the card processor.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	FindIntentByOrder(ctx context.Context, orderID string) (*gateway.Intent, error)
}

type PaymentStart struct {
	OrderID      string
	IntentID     string
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

type ReconcileReport struct {
	Checked   int
	Succeeded int
	Rejected  int
	Abandoned int
	Open      int
	Errors    int
}

type PaymentService interface {
	StartPayment(ctx context.Context, in CreateOrderInput) (*PaymentStart, error)
	HandleEvent(ctx context.Context, ev gateway.Event) error
	Reconcile(ctx context.Context, olderThan time.Duration) (ReconcileReport, error)
}

type paymentService struct {
	tx           repository.Transactor
	orders       OrderService
	orderRepo    repository.OrderRepository
	payments     repository.PaymentRepository
	gateway      PaymentGateway
	notify       Notifier
	currency     string
	exchangeRate decimal.Decimal
	now          func() time.Time
	batch        int
}

func NewPaymentService(
	tx repository.Transactor,
	orders OrderService,
	orderRepo repository.OrderRepository,
	payments repository.PaymentRepository,
	gw PaymentGateway,
	notify Notifier,
	currency string,
	exchangeRate decimal.Decimal,
) PaymentService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &paymentService{
		tx:           tx,
		orders:       orders,
		orderRepo:    orderRepo,
		payments:     payments,
		gateway:      gw,
		notify:       notify,
		currency:     currency,
		exchangeRate: exchangeRate,
		now:          time.Now,
	}
}

// StartPayment commits a processing order plus its payment ref, then asks the
// gateway for an intent over the amount due now. A gateway failure rejects
// the order; a failure to record the returned intent leaves the ref pending
// for Reconcile to pick up.
func (s *paymentService) StartPayment(ctx context.Context, in CreateOrderInput) (*PaymentStart, error) {
	in.Channel = model.OrderChannelOnline
	var order *model.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.CreateOrder(ctx, in)
		if err != nil {
			return err
		}
		order = o
		return s.payments.CreateRef(ctx, &model.PaymentRef{
			OrderID:  o.ID,
			Status:   model.PaymentRefPending,
			Currency: s.currency,
		})
	})
	if err != nil {
		return nil, err
	}

	amount := MinorUnits(order.AmountDueNow(), s.exchangeRate)
	intent, err := s.gateway.CreateIntent(ctx, gateway.IntentRequest{
		OrderID:        order.ID,
		AmountMinor:    amount,
		Currency:       s.currency,
		IdempotencyKey: order.ID,
	})
	if err != nil {
		log.Printf("[payment] order=%s stage=create_intent_fail amount=%d err=%v", order.ID, amount, err)
		if rerr := s.reject(ctx, order.ID, model.PaymentRefFailed); rerr != nil {
			log.Printf("[payment] order=%s stage=reject_fail err=%v", order.ID, rerr)
		} else {
			s.notifyOrder(ctx, order.ID, model.NotificationOrderRejected)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if err := s.payments.AttachIntent(ctx, order.ID, intent.ID, amount); err != nil {
		log.Printf("[payment] order=%s intent=%s stage=attach_fail err=%v", order.ID, intent.ID, err)
		return nil, err
	}
	log.Printf("[payment] order=%s intent=%s stage=intent_created amount=%d currency=%s", order.ID, intent.ID, amount, s.currency)
	return &PaymentStart{
		OrderID:      order.ID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  amount,
		Currency:     s.currency,
	}, nil
}

// HandleEvent applies a webhook event at most once per event id, and each
// order leaves processing at most once whatever the number of events.
func (s *paymentService) HandleEvent(ctx context.Context, ev gateway.Event) error {
	var succeeded bool
	switch ev.Type {
	case gateway.EventPaymentIntentSucceeded, gateway.EventChargeSucceeded:
		succeeded = true
	case gateway.EventPaymentIntentFailed:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Type)
	}
	if ev.IntentID == "" {
		return fmt.Errorf("%w: event %s has no payment intent", ErrInvalidOrder, ev.ID)
	}

	var (
		orderID  string
		paid     bool
		rejected bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		fresh, err := s.payments.RecordEvent(ctx, &model.WebhookEvent{
			EventID:     ev.ID,
			EventType:   ev.Type,
			IntentID:    ev.IntentID,
			ProcessedAt: s.now().UTC(),
		})
		if err != nil {
			return err
		}
		if !fresh {
			log.Printf("[payment] event=%s intent=%s stage=duplicate", ev.ID, ev.IntentID)
			return nil
		}
		ref, err := s.payments.FindRefByIntent(ctx, ev.IntentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("[payment] event=%s intent=%s stage=orphan_intent", ev.ID, ev.IntentID)
				return nil
			}
			return err
		}
		orderID = ref.OrderID
		if succeeded {
			paid, err = s.markPaid(ctx, ref.OrderID)
			return err
		}
		rejected, err = s.markRejected(ctx, ref.OrderID, model.PaymentRefFailed)
		return err
	})
	if err != nil {
		return err
	}
	if paid {
		s.notifyOrder(ctx, orderID, model.NotificationOrderPaid)
	}
	if rejected {
		if err := s.gateway.CancelIntent(ctx, ev.IntentID); err != nil {
			log.Printf("[payment] intent=%s stage=cancel_intent_fail err=%v", ev.IntentID, err)
		}
		s.notifyOrder(ctx, orderID, model.NotificationOrderRejected)
	}
	return nil
}

// Reconcile settles refs that stayed pending or awaiting payment past
// olderThan by asking the gateway what happened to them. It pages by id so
// refs still open at the gateway never hide newer ones.
func (s *paymentService) Reconcile(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	var report ReconcileReport
	batch := s.batch
	if batch <= 0 {
		batch = reconcileBatch
	}
	before := s.now().Add(-olderThan)
	statuses := []model.PaymentRefStatus{model.PaymentRefPending, model.PaymentRefAwaitingPayment}
	var cursor uint64
	for {
		refs, err := s.payments.ListStaleRefs(ctx, before, statuses, cursor, batch)
		if err != nil {
			return report, err
		}
		for _, ref := range refs {
			cursor = ref.ID
			s.reconcileRef(ctx, ref, &report)
		}
		if len(refs) < batch {
			return report, nil
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
}

func (s *paymentService) reconcileRef(ctx context.Context, ref model.PaymentRef, report *ReconcileReport) {
	report.Checked++
	intent, err := s.gateway.FindIntentByOrder(ctx, ref.OrderID)
	if err != nil {
		report.Errors++
		log.Printf("[reconcile] order=%s stage=lookup_fail err=%v", ref.OrderID, err)
		return
	}
	var outcome string
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		outcome = ""
		if intent == nil {
			ok, err := s.markRejected(ctx, ref.OrderID, model.PaymentRefAbandoned)
			if ok {
				outcome = "abandoned"
			}
			return err
		}
		if ref.IntentID == nil {
			if err := s.payments.AttachIntent(ctx, ref.OrderID, intent.ID, intent.AmountMinor); err != nil {
				return err
			}
		}
		switch intent.Status {
		case gateway.IntentStatusSucceeded:
			ok, err := s.markPaid(ctx, ref.OrderID)
			if ok {
				outcome = "succeeded"
			}
			return err
		case gateway.IntentStatusCanceled:
			ok, err := s.markRejected(ctx, ref.OrderID, model.PaymentRefFailed)
			if ok {
				outcome = "rejected"
			}
			return err
		default:
			outcome = "open"
			return nil
		}
	})
	if err != nil {
		report.Errors++
		log.Printf("[reconcile] order=%s stage=apply_fail err=%v", ref.OrderID, err)
		return
	}
	switch outcome {
	case "succeeded":
		report.Succeeded++
		s.notifyOrder(ctx, ref.OrderID, model.NotificationOrderPaid)
	case "rejected":
		report.Rejected++
		s.notifyOrder(ctx, ref.OrderID, model.NotificationOrderRejected)
	case "abandoned":
		report.Abandoned++
		s.notifyOrder(ctx, ref.OrderID, model.NotificationOrderRejected)
	case "open":
		report.Open++
	}
}

// markPaid moves processing->ordered, settles the checkout payment and, for
// financed orders, schedules the first installment a month out. It reports
// false without touching anything when the order already left processing.
func (s *paymentService) markPaid(ctx context.Context, orderID string) (bool, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	n, err := s.orderRepo.TransitionStatus(ctx, orderID, model.OrderStatusProcessing, model.OrderStatusOrdered, nil)
	if err != nil {
		return false, err
	}
	if n == 0 {
		log.Printf("[payment] order=%s stage=already_settled status=%s", orderID, o.Status)
		return false, nil
	}
	if _, err := s.orderRepo.MarkPaymentPaid(ctx, orderID, 0, now); err != nil {
		return false, err
	}
	if o.HasLoan() && o.LoanPayment != nil {
		inst := firstInstallment(o, model.PaymentMethodCard, now)
		if _, err := s.orderRepo.CreatePaymentIfAbsent(ctx, &inst); err != nil {
			return false, err
		}
	}
	if err := s.payments.UpdateRefStatus(ctx, orderID, model.PaymentRefSucceeded); err != nil {
		return false, err
	}
	log.Printf("[payment] order=%s stage=paid", orderID)
	return true, nil
}

func (s *paymentService) markRejected(ctx context.Context, orderID string, refStatus model.PaymentRefStatus) (bool, error) {
	n, err := s.orderRepo.TransitionStatus(ctx, orderID, model.OrderStatusProcessing, model.OrderStatusRejected, nil)
	if err != nil {
		return false, err
	}
	if n == 0 {
		log.Printf("[payment] order=%s stage=reject_skipped", orderID)
		return false, nil
	}
	if err := s.payments.UpdateRefStatus(ctx, orderID, refStatus); err != nil {
		return false, err
	}
	log.Printf("[payment] order=%s stage=rejected ref=%s", orderID, refStatus)
	return true, nil
}

func (s *paymentService) notifyOrder(ctx context.Context, orderID string, typ model.NotificationType) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		log.Printf("[payment] order=%s stage=notify_load_fail err=%v", orderID, err)
		return
	}
	s.notify.OrderChanged(ctx, o, typ)
}

func (s *paymentService) reject(ctx context.Context, orderID string, refStatus model.PaymentRefStatus) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.markRejected(ctx, orderID, refStatus)
		return err
	})
}

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
)

// Notifier receives order status changes after they commit.
type Notifier interface {
	OrderChanged(ctx context.Context, o *model.Order, typ model.NotificationType)
}

type NotificationService interface {
	Notifier
	List(ctx context.Context, customerID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, customerID string) error
}

type notificationService struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo, now: time.Now}
}

var notificationText = map[model.NotificationType]struct{ title, body string }{
	model.NotificationOrderPaid:      {"Payment received", "We received your payment for order %s."},
	model.NotificationOrderRejected:  {"Payment failed", "The payment for order %s did not go through."},
	model.NotificationOrderVerified:  {"Order confirmed", "Order %s has been confirmed and is being prepared."},
	model.NotificationOrderDelivered: {"Order delivered", "Order %s has been delivered."},
	model.NotificationOrderCanceled:  {"Order canceled", "Order %s has been canceled."},
}

// OrderChanged is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) OrderChanged(ctx context.Context, o *model.Order, typ model.NotificationType) {
	if o == nil || o.CustomerID == "" {
		return
	}
	text, ok := notificationText[typ]
	if !ok {
		return
	}
	n := &model.Notification{
		CustomerID: o.CustomerID,
		Type:       typ,
		OrderID:    o.ID,
		Title:      text.title,
		Body:       fmt.Sprintf(text.body, o.ID),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Printf("[notify] order=%s type=%s stage=create_fail err=%v", o.ID, typ, err)
	}
}

func (s *notificationService) List(ctx context.Context, customerID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if customerID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByCustomer(ctx, customerID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, customerID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, customerID string) error {
	if customerID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, customerID, s.now().UTC())
}

type nopNotifier struct{}

func (nopNotifier) OrderChanged(context.Context, *model.Order, model.NotificationType) {}

package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const orderMetadataKey = "order_id"

type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

func (c *StripeClient) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(orderMetadataKey, req.OrderID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		log.Printf("[gateway] order=%s stage=create_intent err=%v", req.OrderID, err)
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}
	return toIntent(pi), nil
}

func (c *StripeClient) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := c.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("stripe cancel intent %s: %w", intentID, err)
	}
	return nil
}

// FindIntentByOrder searches intents by the order id stored in metadata. It
// returns nil, nil when the gateway never saw the order.
func (c *StripeClient) FindIntentByOrder(ctx context.Context, orderID string) (*Intent, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", orderMetadataKey, orderID)
	iter := c.api.PaymentIntents.Search(params)
	var found *Intent
	for iter.Next() {
		pi := iter.PaymentIntent()
		// a succeeded intent wins over any retry that was left open
		if found == nil || pi.Status == stripe.PaymentIntentStatusSucceeded {
			found = toIntent(pi)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe search intents: %w", err)
	}
	return found, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		OrderID:      pi.Metadata[orderMetadataKey],
	}
}

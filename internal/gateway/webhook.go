package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookParser struct {
	secret string
}

func NewWebhookParser(secret string) *WebhookParser {
	return &WebhookParser{secret: secret}
}

// ParseEvent verifies the signature header and extracts the payment intent
// id. charge.* events carry it in object.payment_intent.
func (p *WebhookParser) ParseEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	intentID, err := IntentIDFromObject(ev.Data.Raw)
	if err != nil {
		return nil, err
	}
	out.IntentID = intentID
	return out, nil
}

// IntentIDFromObject reads the intent id out of a payment_intent or charge
// object.
func IntentIDFromObject(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var obj struct {
		ID            string `json:"id"`
		Object        string `json:"object"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("decode event object: %w", err)
	}
	if obj.Object == "payment_intent" {
		return obj.ID, nil
	}
	return obj.PaymentIntent, nil
}

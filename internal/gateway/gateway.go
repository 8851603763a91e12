// Package gateway talks to the card payment provider: payment intents going
// out, signed webhook events coming back.
package gateway

import "errors"

const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeSucceeded        = "charge.succeeded"
)

const (
	IntentStatusSucceeded = "succeeded"
	IntentStatusCanceled  = "canceled"
)

var ErrInvalidSignature = errors.New("invalid_signature")

type IntentRequest struct {
	OrderID        string
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	OrderID      string
}

// Event is the subset of a webhook envelope the reconciler needs.
type Event struct {
	ID       string
	Type     string
	IntentID string
}

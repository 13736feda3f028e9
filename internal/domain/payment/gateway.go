package payment

import (
	"context"
	"errors"
)

var (
	ErrGateway          = errors.New("payment: gateway failure")
	ErrInvalidSignature = errors.New("payment: invalid signature")
)

type Status string

const (
	StatusCaptured Status = "captured"
	StatusDeclined Status = "declined"
)

// IntentRequest asks the gateway to open a checkout for Amount minor units.
type IntentRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

// Intent is the gateway-issued handle for an authorized-but-unsettled payment.
type Intent struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// Gateway creates payment intents with the external provider.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

// Proof is what the buyer's checkout hands back after paying.
type Proof struct {
	IntentID  string
	PaymentID string
	Signature string
}

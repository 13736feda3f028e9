package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"

	"github.com/google/uuid"
)

// Sandbox is an in-process gateway for local runs and tests.
// It issues intents immediately and can simulate the buyer paying them.
type Sandbox struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	secret      string
}

func NewSandbox(secret string, successRate float64) *Sandbox {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &Sandbox{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		secret:      secret,
	}
}

func (s *Sandbox) CreateIntent(ctx context.Context, req dompayment.IntentRequest) (dompayment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return dompayment.Intent{}, err
	}
	if req.Amount <= 0 {
		return dompayment.Intent{}, fmt.Errorf("%w: amount must be greater than zero", dompayment.ErrGateway)
	}
	if req.Currency == "" {
		return dompayment.Intent{}, fmt.Errorf("%w: currency is required", dompayment.ErrGateway)
	}
	return dompayment.Intent{
		ID:       "order_sbx_" + compactID(),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	}, nil
}

// Capture simulates the buyer completing checkout. A captured payment comes back with a signed proof.
func (s *Sandbox) Capture(ctx context.Context, intentID string) (dompayment.Proof, dompayment.Status, error) {
	if err := ctx.Err(); err != nil {
		return dompayment.Proof{}, dompayment.StatusDeclined, err
	}
	if intentID == "" {
		return dompayment.Proof{}, dompayment.StatusDeclined, errors.New("payment: intent id is required")
	}

	s.mu.Lock()
	ok := s.random.Float64() < s.successRate
	s.mu.Unlock()
	if !ok {
		return dompayment.Proof{}, dompayment.StatusDeclined, nil
	}

	paymentID := "pay_sbx_" + compactID()
	return dompayment.Proof{
		IntentID:  intentID,
		PaymentID: paymentID,
		Signature: dompayment.Sign(s.secret, intentID, paymentID),
	}, dompayment.StatusCaptured, nil
}

func compactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

package payment

import (
	"context"
	"fmt"

	apporder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domorder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"
)

const (
	captureWorker      = "capture_worker"
	outcomeCaptured    = "captured"
	outcomeDeclined    = "declined"
	outcomeSkipped     = "skipped"
	outcomeCaptureFail = "error"
)

// Capturer completes a buyer checkout against an open intent. The sandbox gateway implements it.
type Capturer interface {
	Capture(ctx context.Context, intentID string) (dompay.Proof, dompay.Status, error)
}

type OrderReader interface {
	Get(ctx context.Context, id string) (*domorder.Order, error)
}

type Confirmer interface {
	Execute(ctx context.Context, cmd apporder.ConfirmPaymentInput) (*apporder.ConfirmPaymentResult, error)
}

// Worker plays the buyer's side of a gateway checkout for local runs: every gateway order that
// gets created is captured and the resulting signed proof goes through the normal confirmation path.
// Declined captures are left alone so the order expires and its stock comes back.
type Worker struct {
	subscriber domoutbox.Subscriber
	orders     OrderReader
	capturer   Capturer
	confirm    Confirmer

	log      observability.Logger
	outcomes observability.Counter // external_requests_total{peer,endpoint,outcome}
}

func NewWorker(subscriber domoutbox.Subscriber, orders OrderReader, capturer Capturer, confirm Confirmer, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		orders:     orders,
		capturer:   capturer,
		confirm:    confirm,
		log:        tel.Logger().With(observability.F("component", captureWorker)),
		outcomes:   tel.Metrics().Counter(observability.MExternalRequests),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.capturer == nil || w.confirm == nil {
		return
	}
	w.subscriber.Subscribe(domorder.EventCreated, w.handleOrderCreated)
}

func (w *Worker) handleOrderCreated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderEvent)
	if !ok || !evt.PaymentMethod.GatewayMediated() {
		return nil
	}
	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("event", e.EventName()),
		observability.F("order_id", evt.OrderID),
	)

	outcome, err := w.capture(ctx, evt.OrderID, logger)
	w.outcomes.Add(1,
		observability.L("peer", "payment_sandbox"),
		observability.L("endpoint", "capture"),
		observability.L("outcome", outcome),
	)
	if err != nil {
		logger.Warn("payment_capture_failed", observability.F("error", err.Error()))
		return err
	}
	logger.Info("payment_capture_done", observability.F("outcome", outcome))
	return nil
}

func (w *Worker) capture(ctx context.Context, orderID string, logger observability.Logger) (string, error) {
	o, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return outcomeCaptureFail, fmt.Errorf("load order: %w", err)
	}
	if o.PaymentIntentID == "" || !o.AwaitingPayment() {
		return outcomeSkipped, nil
	}

	proof, status, err := w.capturer.Capture(ctx, o.PaymentIntentID)
	if err != nil {
		return outcomeCaptureFail, fmt.Errorf("capture intent %s: %w", o.PaymentIntentID, err)
	}
	if status != dompay.StatusCaptured {
		logger.Info("payment_declined", observability.F("intent_id", o.PaymentIntentID))
		return outcomeDeclined, nil
	}

	res, err := w.confirm.Execute(ctx, apporder.ConfirmPaymentInput{
		IntentID:  proof.IntentID,
		PaymentID: proof.PaymentID,
		Signature: proof.Signature,
	})
	if err != nil {
		return outcomeCaptureFail, fmt.Errorf("confirm intent %s: %w", proof.IntentID, err)
	}
	logger.Debug("payment_confirmed", observability.F("order_code", res.OrderCode))
	return outcomeCaptured, nil
}

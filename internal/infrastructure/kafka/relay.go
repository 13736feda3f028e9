package kafka

import (
	"context"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"
)

const peerKafka = "kafka"

// Sink is the producing side of the relay.
type Sink interface {
	Produce(ctx context.Context, key string, value []byte, headers map[string]string) error
}

type Codec interface {
	Encode(evt domain.OrderEvent) ([]byte, error)
}

// Relay forwards order lifecycle events from the in-process bus to Kafka, keyed by order id
// so every event for one order lands on the same partition.
type Relay struct {
	sink    Sink
	codec   Codec
	log     observability.Logger
	counter observability.Counter
	latency observability.Histogram
}

func NewRelay(sink Sink, codec Codec, tel observability.Observability) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Relay{
		sink:    sink,
		codec:   codec,
		log:     tel.Logger().With(observability.F("component", "kafka_relay")),
		counter: m.Counter(observability.MExternalRequests),
		latency: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Register subscribes the relay to every order lifecycle event.
func (r *Relay) Register(sub domoutbox.Subscriber) {
	for _, name := range []string{
		domain.EventCreated,
		domain.EventConfirmed,
		domain.EventExpired,
		domain.EventFulfillmentUpdated,
	} {
		sub.Subscribe(name, r.Handle)
	}
}

func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.OrderEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, r.log)

	payload, err := r.codec.Encode(evt)
	if err != nil {
		logger.Error("order_event_encode_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("kafka relay: encode %s: %w", evt.Name, err)
	}

	start := time.Now()
	err = r.sink.Produce(ctx, evt.OrderID, payload, map[string]string{
		"event":      evt.Name,
		"order_code": evt.OrderCode,
	})
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.counter.Add(1,
		observability.L("peer", peerKafka),
		observability.L("endpoint", evt.Name),
		observability.L("outcome", outcome),
	)
	r.latency.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerKafka),
		observability.L("endpoint", evt.Name),
	)
	if err != nil {
		return err
	}
	logger.Debug("order_event_relayed", observability.F("order_id", evt.OrderID))
	return nil
}

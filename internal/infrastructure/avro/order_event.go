package avro

import (
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/linkedin/goavro/v2"
)

// OrderEventSchema is the wire contract for order lifecycle records on Kafka.
const OrderEventSchema = `{
	"type": "record",
	"name": "OrderEvent",
	"namespace": "minishop.fulfillment",
	"fields": [
		{"name": "event", "type": "string"},
		{"name": "order_id", "type": "string"},
		{"name": "order_code", "type": "string"},
		{"name": "status", "type": "string"},
		{"name": "payment_status", "type": "string"},
		{"name": "payment_method", "type": "string"},
		{"name": "final_total", "type": "string"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

// Encoder wraps a goavro codec for order events.
type Encoder struct {
	codec *goavro.Codec
	mu    sync.Mutex
}

func NewOrderEventEncoder() (*Encoder, error) {
	return NewEncoder(OrderEventSchema)
}

func NewEncoder(schema string) (*Encoder, error) {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}
	return &Encoder{codec: codec}, nil
}

func (e *Encoder) Encode(evt domain.OrderEvent) ([]byte, error) {
	return e.EncodeNative(toNative(evt))
}

func (e *Encoder) EncodeNative(native map[string]any) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	binary, err := e.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("failed to encode to avro binary: %w", err)
	}
	return binary, nil
}

// Decode is the consumer-side inverse of Encode.
func (e *Encoder) Decode(binary []byte) (domain.OrderEvent, error) {
	native, _, err := e.codec.NativeFromBinary(binary)
	if err != nil {
		return domain.OrderEvent{}, fmt.Errorf("failed to decode avro binary: %w", err)
	}
	m, ok := native.(map[string]any)
	if !ok {
		return domain.OrderEvent{}, fmt.Errorf("avro record decoded to %T", native)
	}
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	evt := domain.OrderEvent{
		Name:          str("event"),
		OrderID:       str("order_id"),
		OrderCode:     str("order_code"),
		Status:        domain.Status(str("status")),
		PaymentStatus: domain.PaymentStatus(str("payment_status")),
		PaymentMethod: domain.PaymentMethod(str("payment_method")),
		FinalTotal:    str("final_total"),
	}
	if t, ok := m["occurred_at"].(time.Time); ok {
		evt.OccurredAt = t.UTC()
	}
	return evt, nil
}

func toNative(evt domain.OrderEvent) map[string]any {
	return map[string]any{
		"event":          evt.Name,
		"order_id":       evt.OrderID,
		"order_code":     evt.OrderCode,
		"status":         string(evt.Status),
		"payment_status": string(evt.PaymentStatus),
		"payment_method": string(evt.PaymentMethod),
		"final_total":    evt.FinalTotal,
		"occurred_at":    evt.OccurredAt.UTC(),
	}
}

package order

import "time"

const (
	EventCreated            = "order.created"
	EventConfirmed          = "order.confirmed"
	EventExpired            = "order.expired"
	EventFulfillmentUpdated = "order.fulfillment_updated"
)

// OrderEvent is emitted on every lifecycle transition and relayed to downstream consumers.
type OrderEvent struct {
	Name          string
	OrderID       string
	OrderCode     string
	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	FinalTotal    string
	OccurredAt    time.Time
}

func (e OrderEvent) EventName() string { return e.Name }

func newEvent(name string, o *Order) OrderEvent {
	return OrderEvent{
		Name:          name,
		OrderID:       o.ID,
		OrderCode:     o.Code,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		FinalTotal:    o.Pricing.FinalTotal.StringFixed(2),
		OccurredAt:    time.Now().UTC(),
	}
}

func NewCreatedEvent(o *Order) OrderEvent     { return newEvent(EventCreated, o) }
func NewConfirmedEvent(o *Order) OrderEvent   { return newEvent(EventConfirmed, o) }
func NewExpiredEvent(o *Order) OrderEvent     { return newEvent(EventExpired, o) }
func NewFulfillmentEvent(o *Order) OrderEvent { return newEvent(EventFulfillmentUpdated, o) }

package inventory

import "time"

const (
	FailureReasonNotFound          = "not_found"
	FailureReasonInsufficientStock = "insufficient_stock"
	FailureReasonPersistenceError  = "persist_error"
)

// StockReservedEvent is emitted once every line of a cart has been reserved.
type StockReservedEvent struct {
	Reference  string
	Lines      int
	OccurredAt time.Time
}

func (StockReservedEvent) EventName() string { return "inventory.reserved" }

func NewStockReservedEvent(reference string, lines int) StockReservedEvent {
	return StockReservedEvent{Reference: reference, Lines: lines, OccurredAt: time.Now().UTC()}
}

// ReservationFailedEvent is emitted when a cart line could not be reserved and earlier lines were released.
type ReservationFailedEvent struct {
	Reference  string
	ProductID  string
	Quantity   int
	Reason     string
	OccurredAt time.Time
}

func (ReservationFailedEvent) EventName() string { return "inventory.reservation_failed" }

func NewReservationFailedEvent(reference, productID string, quantity int, reason string) ReservationFailedEvent {
	return ReservationFailedEvent{
		Reference:  reference,
		ProductID:  productID,
		Quantity:   quantity,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// StockRestoredEvent is emitted when an expired order hands its stock back.
type StockRestoredEvent struct {
	Reference  string
	Lines      int
	OccurredAt time.Time
}

func (StockRestoredEvent) EventName() string { return "inventory.restored" }

func NewStockRestoredEvent(reference string, lines int) StockRestoredEvent {
	return StockRestoredEvent{Reference: reference, Lines: lines, OccurredAt: time.Now().UTC()}
}

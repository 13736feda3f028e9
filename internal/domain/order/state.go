package order

import "time"

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnPaymentConfirmed(o *Order, transactionID string) (OrderState, error)
	OnExpired(o *Order) (OrderState, error)
	OnFulfillment(o *Order, next Status) (OrderState, error)
}

func stateOf(o *Order) OrderState {
	switch o.Status {
	case StatusPending:
		return pendingState{}
	case StatusProcessing:
		return processingState{}
	case StatusShipped:
		return shippedState{}
	case StatusDelivered:
		return deliveredState{}
	default:
		return canceledState{}
	}
}

// ConfirmPayment records the gateway transaction and moves the order to Processing.
func (o *Order) ConfirmPayment(transactionID string, now time.Time) error {
	next, err := stateOf(o).OnPaymentConfirmed(o, transactionID)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch(now)
	return nil
}

// Expire cancels an unpaid order. Only Pending/Pending orders may expire.
func (o *Order) Expire(now time.Time) error {
	next, err := stateOf(o).OnExpired(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch(now)
	return nil
}

// AdvanceFulfillment applies an operator status update. Tracking fields are replaced only when non-empty.
func (o *Order) AdvanceFulfillment(next Status, courier, trackingID string, now time.Time) error {
	st, err := stateOf(o).OnFulfillment(o, next)
	if err != nil {
		return err
	}
	o.Status = st.Status()
	if courier != "" {
		o.Courier = courier
	}
	if trackingID != "" {
		o.TrackingID = trackingID
	}
	o.touch(now)
	return nil
}

var fulfillmentRank = map[Status]int{
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

func forward(current, next Status) (OrderState, error) {
	to, ok := fulfillmentRank[next]
	if !ok || to < fulfillmentRank[current] {
		return nil, ErrInvalidStateTransition
	}
	switch next {
	case StatusShipped:
		return shippedState{}, nil
	case StatusDelivered:
		return deliveredState{}, nil
	default:
		return processingState{}, nil
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaymentConfirmed(o *Order, transactionID string) (OrderState, error) {
	if o.PaymentStatus != PaymentPending || transactionID == "" {
		return nil, ErrInvalidStateTransition
	}
	o.PaymentStatus = PaymentPaid
	o.TransactionID = transactionID
	o.ExpiresAt = time.Time{}
	return processingState{}, nil
}

func (pendingState) OnExpired(o *Order) (OrderState, error) {
	if o.PaymentStatus != PaymentPending {
		return nil, ErrInvalidStateTransition
	}
	o.PaymentStatus = PaymentFailed
	return canceledState{}, nil
}

func (pendingState) OnFulfillment(*Order, Status) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnPaymentConfirmed(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnExpired(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnFulfillment(_ *Order, next Status) (OrderState, error) {
	return forward(StatusProcessing, next)
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnPaymentConfirmed(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnExpired(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnFulfillment(_ *Order, next Status) (OrderState, error) {
	return forward(StatusShipped, next)
}

type deliveredState struct{}

func (deliveredState) Status() Status { return StatusDelivered }

func (deliveredState) OnPaymentConfirmed(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnExpired(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnFulfillment(_ *Order, next Status) (OrderState, error) {
	return forward(StatusDelivered, next)
}

type canceledState struct{}

func (canceledState) Status() Status { return StatusCanceled }

func (canceledState) OnPaymentConfirmed(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (canceledState) OnExpired(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (canceledState) OnFulfillment(*Order, Status) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

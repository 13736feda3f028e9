package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Reserve(ctx context.Context, productID string, quantity int) (dominv.Reservation, error) {
	args := m.Called(productID, quantity)
	return args.Get(0).(dominv.Reservation), args.Error(1)
}

func (m *mockLedger) Restore(ctx context.Context, productID string, quantity int) error {
	return m.Called(productID, quantity).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func reservation(id string, qty int) dominv.Reservation {
	return dominv.Reservation{ProductID: id, Name: id, Price: decimal.NewFromInt(5), Quantity: qty}
}

func TestReserveItemsReservesEveryLine(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("Reserve", "a", 1).Return(reservation("a", 1), nil).Once()
	ledger.On("Reserve", "b", 2).Return(reservation("b", 2), nil).Once()
	pub := &recordingPublisher{}

	res, err := NewReserveItemsUseCase(ledger, pub, nil).Execute(context.Background(), ReserveItemsInput{
		Reference: "o1",
		Lines:     []Line{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Reservations, 2)
	ledger.AssertExpectations(t)

	require.Len(t, pub.events, 1)
	assert.Equal(t, dominv.StockReservedEvent{}.EventName(), pub.events[0].EventName())
}

func TestReserveItemsReleasesEarlierLinesInReverse(t *testing.T) {
	ledger := &mockLedger{}
	var restored []string
	ledger.On("Reserve", "a", 1).Return(reservation("a", 1), nil).Once()
	ledger.On("Reserve", "b", 1).Return(reservation("b", 1), nil).Once()
	ledger.On("Reserve", "c", 9).Return(dominv.Reservation{}, dominv.ErrInsufficientStock).Once()
	ledger.On("Restore", mock.Anything, 1).Run(func(args mock.Arguments) {
		restored = append(restored, args.String(0))
	}).Return(nil).Twice()
	pub := &recordingPublisher{}

	_, err := NewReserveItemsUseCase(ledger, pub, nil).Execute(context.Background(), ReserveItemsInput{
		Reference: "o1",
		Lines: []Line{
			{ProductID: "a", Quantity: 1},
			{ProductID: "b", Quantity: 1},
			{ProductID: "c", Quantity: 9},
		},
	})
	assert.ErrorIs(t, err, dominv.ErrInsufficientStock)
	assert.Equal(t, []string{"b", "a"}, restored)
	ledger.AssertExpectations(t)

	require.Len(t, pub.events, 1)
	failed, ok := pub.events[0].(dominv.ReservationFailedEvent)
	require.True(t, ok)
	assert.Equal(t, "c", failed.ProductID)
	assert.Equal(t, dominv.FailureReasonInsufficientStock, failed.Reason)
}

func TestReserveItemsRejectsInvalidLinesWithoutTouchingStock(t *testing.T) {
	ledger := &mockLedger{}
	uc := NewReserveItemsUseCase(ledger, nil, nil)

	_, err := uc.Execute(context.Background(), ReserveItemsInput{Reference: "o1"})
	assert.ErrorIs(t, err, dominv.ErrInvalidQuantity)

	_, err = uc.Execute(context.Background(), ReserveItemsInput{
		Reference: "o1",
		Lines:     []Line{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 0}},
	})
	assert.ErrorIs(t, err, dominv.ErrInvalidQuantity)
	ledger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestRestoreItemsSkipsMissingProducts(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("Restore", "a", 2).Return(nil).Once()
	ledger.On("Restore", "gone", 1).Return(dominv.ErrNotFound).Once()

	res, err := NewRestoreItemsUseCase(ledger, nil, nil).Execute(context.Background(), RestoreItemsInput{
		Reference: "o1",
		Lines:     []Line{{ProductID: "a", Quantity: 2}, {ProductID: "gone", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, 1, res.Skipped)
}

func TestRestoreItemsReportsStoreFailures(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("Restore", "a", 1).Return(errors.New("db down")).Once()
	ledger.On("Restore", "b", 1).Return(nil).Once()

	res, err := NewRestoreItemsUseCase(ledger, nil, nil).Execute(context.Background(), RestoreItemsInput{
		Reference: "o1",
		Lines:     []Line{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 1}},
	})
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, 1, res.Restored)
}

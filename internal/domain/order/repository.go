package order

import (
	"context"
	"time"
)

// Repository is the durable order store.
// Update is a compare-and-swap on Version and returns ErrConflict when the stored version moved on.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByCode(ctx context.Context, code string) (*Order, error)
	GetByIntent(ctx context.Context, intentID string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	Latest(ctx context.Context) (*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	FindByContact(ctx context.Context, email, phone, code string) ([]*Order, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Order, error)
}

// CodeSequencer issues the numeric suffix of order codes.
type CodeSequencer interface {
	Next(ctx context.Context) (int64, error)
}

// Transactor runs fn inside one storage transaction when the backend supports it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

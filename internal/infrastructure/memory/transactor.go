package memory

import "context"

// Transactor runs fn directly. Atomicity comes from the use case's compensation path.
type Transactor struct{}

func NewTransactor() Transactor { return Transactor{} }

func (Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

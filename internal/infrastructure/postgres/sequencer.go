package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CodeSequencer draws order code suffixes from a database sequence shared by every replica.
type CodeSequencer struct {
	pool *pgxpool.Pool
}

func NewCodeSequencer(pool *pgxpool.Pool) *CodeSequencer {
	return &CodeSequencer{pool: pool}
}

// Next runs outside any caller transaction: nextval is never rolled back anyway.
func (s *CodeSequencer) Next(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('order_code_seq')`).Scan(&n)
	return n, err
}

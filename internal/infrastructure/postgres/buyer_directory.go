package postgres

import (
	"context"
	"errors"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BuyerDirectory reads registered accounts from the buyers table.
type BuyerDirectory struct {
	pool *pgxpool.Pool
}

func NewBuyerDirectory(pool *pgxpool.Pool) *BuyerDirectory {
	return &BuyerDirectory{pool: pool}
}

func (d *BuyerDirectory) Put(ctx context.Context, userID string, c domain.Contact) error {
	_, err := conn(ctx, d.pool).Exec(ctx, `
		INSERT INTO buyers (id, name, email, phone) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone`,
		userID, c.Name, c.Email, c.Phone)
	return err
}

func (d *BuyerDirectory) Lookup(ctx context.Context, userID string) (domain.Contact, error) {
	var c domain.Contact
	err := conn(ctx, d.pool).QueryRow(ctx, `SELECT name, email, phone FROM buyers WHERE id = $1`, userID).
		Scan(&c.Name, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contact{}, domain.ErrBuyerNotFound
	}
	return c, err
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InventoryRepository keeps stock counters in the products table.
// Each reservation is a single conditional UPDATE, so concurrent carts never push stock below zero.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Save upserts a catalog product, replacing its stock counter.
func (r *InventoryRepository) Save(ctx context.Context, p *domain.Product) error {
	if p == nil {
		return nil
	}
	const q = `
		INSERT INTO products (id, name, price, stock, image, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			image = EXCLUDED.image,
			updated_at = EXCLUDED.updated_at`
	_, err := conn(ctx, r.pool).Exec(ctx, q, p.ID, p.Name, p.Price.String(), p.Stock, p.Image)
	return err
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	const q = `SELECT id, name, price::text, stock, image, updated_at FROM products WHERE id = $1`
	var (
		p     domain.Product
		price string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, q, productID).Scan(&p.ID, &p.Name, &price, &p.Stock, &p.Image, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("postgres: product %s price: %w", productID, err)
	}
	return &p, nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, productID string, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	const q = `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING name, price::text`
	db := conn(ctx, r.pool)
	var name, price string
	err := db.QueryRow(ctx, q, productID, quantity).Scan(&name, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, r.whyNotReserved(ctx, db, productID)
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("postgres: product %s price: %w", productID, err)
	}
	return domain.Reservation{ProductID: productID, Name: name, Price: amount, Quantity: quantity}, nil
}

func (r *InventoryRepository) whyNotReserved(ctx context.Context, db querier, productID string) error {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *InventoryRepository) Restore(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *InventoryRepository) ProductImages(ctx context.Context, productIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, image FROM products WHERE id = ANY($1) AND image <> ''`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, img string
		if err := rows.Scan(&id, &img); err != nil {
			return nil, err
		}
		out[id] = img
	}
	return out, rows.Err()
}

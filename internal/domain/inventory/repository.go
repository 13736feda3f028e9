package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Reservation is the catalog snapshot captured at the instant stock was taken.
type Reservation struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Ledger owns per-product stock counters.
// Reserve must be linearizable per product: concurrent reservations never over-commit stock.
// Restore does not deduplicate; callers guarantee it runs once per reservation.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) (Reservation, error)
	Restore(ctx context.Context, productID string, quantity int) error
}

// Catalog resolves display data owned by the product catalog.
type Catalog interface {
	ProductImages(ctx context.Context, productIDs []string) (map[string]string, error)
}

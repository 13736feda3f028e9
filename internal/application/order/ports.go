package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	appinventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

// BuyerDirectory resolves a registered account to its current contact details.
type BuyerDirectory interface {
	Lookup(ctx context.Context, userID string) (domain.Contact, error)
}

// ExpiryQueue holds one deferred expiry job per order, keyed by order id.
type ExpiryQueue interface {
	Schedule(ctx context.Context, orderID string, dueAt time.Time) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type StockReserver = application.UseCase[appinventory.ReserveItemsInput, *appinventory.ReserveItemsResult]

type StockRestorer = application.UseCase[appinventory.RestoreItemsInput, *appinventory.RestoreItemsResult]

// Clock is injectable so expiry can be tested without waiting.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

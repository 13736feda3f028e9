package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
)

// BuyerDirectory is an in-process stand-in for the account service.
type BuyerDirectory struct {
	mu    sync.RWMutex
	users map[string]domain.Contact
}

func NewBuyerDirectory() *BuyerDirectory {
	return &BuyerDirectory{users: make(map[string]domain.Contact)}
}

func (d *BuyerDirectory) Put(ctx context.Context, userID string, c domain.Contact) error {
	_ = ctx
	d.mu.Lock()
	d.users[userID] = c
	d.mu.Unlock()
	return nil
}

func (d *BuyerDirectory) Lookup(ctx context.Context, userID string) (domain.Contact, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.users[userID]
	if !ok {
		return domain.Contact{}, domain.ErrBuyerNotFound
	}
	return c, nil
}

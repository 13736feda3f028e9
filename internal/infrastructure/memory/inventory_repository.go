package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
)

type stockSlot struct {
	mu      sync.Mutex
	product domain.Product
}

// InventoryRepository serialises reservations per product. The map lock only guards slot lookup.
type InventoryRepository struct {
	mu    sync.RWMutex
	slots map[string]*stockSlot
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		slots: make(map[string]*stockSlot),
	}
}

// Save upserts a catalog product, replacing its stock counter.
func (r *InventoryRepository) Save(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil {
		return nil
	}

	r.mu.Lock()
	slot, ok := r.slots[p.ID]
	if !ok {
		slot = &stockSlot{}
		r.slots[p.ID] = slot
	}
	r.mu.Unlock()

	slot.mu.Lock()
	slot.product = *p
	slot.mu.Unlock()
	return nil
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx
	slot, ok := r.slot(productID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	p := slot.product
	return &p, nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, productID string, quantity int) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	slot, ok := r.slot(productID)
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if err := slot.product.Reserve(quantity); err != nil {
		return domain.Reservation{}, err
	}
	return domain.Reservation{
		ProductID: productID,
		Name:      slot.product.Name,
		Price:     slot.product.Price,
		Quantity:  quantity,
	}, nil
}

func (r *InventoryRepository) Restore(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	slot, ok := r.slot(productID)
	if !ok {
		return domain.ErrNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.product.Restore(quantity)
}

func (r *InventoryRepository) ProductImages(ctx context.Context, productIDs []string) (map[string]string, error) {
	_ = ctx
	out := make(map[string]string, len(productIDs))
	for _, id := range productIDs {
		slot, ok := r.slot(id)
		if !ok {
			continue
		}
		slot.mu.Lock()
		if img := slot.product.Image; img != "" {
			out[id] = img
		}
		slot.mu.Unlock()
	}
	return out, nil
}

func (r *InventoryRepository) slot(productID string) (*stockSlot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[productID]
	return s, ok
}

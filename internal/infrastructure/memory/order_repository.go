package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
)

type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	byCode   map[string]string
	byIntent map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:   make(map[string]*domain.Order),
		byCode:   make(map[string]string),
		byIntent: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.byCode[order.Code]; exists && order.Code != "" {
		return domain.ErrConflict
	}
	if _, exists := r.byIntent[order.PaymentIntentID]; exists && order.PaymentIntentID != "" {
		return domain.ErrConflict
	}

	stored := order.Clone()
	stored.Version = 1
	r.orders[order.ID] = stored
	if order.Code != "" {
		r.byCode[order.Code] = order.ID
	}
	if order.PaymentIntentID != "" {
		r.byIntent[order.PaymentIntentID] = order.ID
	}
	order.Version = stored.Version
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byCode[code]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *OrderRepository) GetByIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byIntent[intentID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

// Update writes order only if the stored version still equals order.Version.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if current.Version != order.Version {
		return domain.ErrConflict
	}

	stored := order.Clone()
	stored.Version = current.Version + 1
	r.orders[order.ID] = stored
	order.Version = stored.Version
	return nil
}

func (r *OrderRepository) Latest(ctx context.Context) (*domain.Order, error) {
	all, _ := r.ListAll(ctx)
	if len(all) == 0 {
		return nil, domain.ErrNotFound
	}
	return all[0], nil
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return r.filter(func(*domain.Order) bool { return true }), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.filter(func(o *domain.Order) bool {
		return o.Buyer.Registered && o.Buyer.UserID == userID
	}), nil
}

func (r *OrderRepository) FindByContact(ctx context.Context, email, phone, code string) ([]*domain.Order, error) {
	return r.filter(func(o *domain.Order) bool {
		c := o.Buyer.Contact()
		if c.Email != email || c.Phone != phone {
			return false
		}
		return code == "" || o.Code == code
	}), nil
}

func (r *OrderRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	out := r.filter(func(o *domain.Order) bool { return o.Expired(now) })
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// filter returns clones sorted newest first.
func (r *OrderRepository) filter(keep func(*domain.Order) bool) []*domain.Order {
	r.mu.RLock()
	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code > out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

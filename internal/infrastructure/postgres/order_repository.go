package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const orderColumns = `
	id, code, user_id, user_name, user_email, user_phone, guest_name, guest_email, guest_phone,
	items, address, payment_method, payment_status, status, transaction_id, payment_intent_id,
	total_price::text, discount::text, shipping::text, final_total::text, applied_coupons,
	courier, tracking_id, expires_at, version, created_at, updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

type itemRow struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type addressRow struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country"`
}

// Insert writes a new order at version 1. Inside a transaction it runs under a savepoint
// so a duplicate code does not poison the caller's transaction.
func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	args, err := insertArgs(o)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO orders (
			id, code, user_id, user_name, user_email, user_phone, guest_name, guest_email, guest_phone,
			items, address, payment_method, payment_status, status, transaction_id, payment_intent_id,
			total_price, discount, shipping, final_total, applied_coupons,
			courier, tracking_id, expires_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17::numeric, $18::numeric, $19::numeric, $20::numeric, $21, $22, $23, $24, 1, $25, $26)`

	sp, err := conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	if _, err := sp.Exec(ctx, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return err
	}
	o.Version = 1
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE code = $1`, code)
}

func (r *OrderRepository) GetByIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	if intentID == "" {
		return nil, domain.ErrNotFound
	}
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, intentID)
}

// Update persists the mutable fields if the stored version still equals o.Version.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("order repository: order is nil")
	}
	const q = `
		UPDATE orders
		SET payment_status = $3,
			status = $4,
			transaction_id = $5,
			payment_intent_id = $6,
			courier = $7,
			tracking_id = $8,
			expires_at = $9,
			updated_at = $10,
			version = version + 1
		WHERE id = $1 AND version = $2`
	tag, err := conn(ctx, r.pool).Exec(ctx, q,
		o.ID, o.Version,
		string(o.PaymentStatus), string(o.Status),
		o.TransactionID, o.PaymentIntentID,
		o.Courier, o.TrackingID,
		nullTime(o.ExpiresAt), o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	o.Version++
	return nil
}

func (r *OrderRepository) Latest(ctx context.Context) (*domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, code DESC LIMIT 1`)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// FindByContact matches guest or registered contact details; a non-empty code narrows the match.
func (r *OrderRepository) FindByContact(ctx context.Context, email, phone, code string) ([]*domain.Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ((guest_email = $1 AND guest_phone = $2) OR (user_email = $1 AND user_phone = $2))
			AND ($3 = '' OR code = $3)
		ORDER BY created_at DESC`, email, phone, code)
}

func (r *OrderRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status = 'Pending' AND payment_status = 'Pending' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
}

func (r *OrderRepository) one(ctx context.Context, q string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return o, err
}

func (r *OrderRepository) many(ctx context.Context, q string, args ...any) ([]*domain.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func insertArgs(o *domain.Order) ([]any, error) {
	items := make([]itemRow, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemRow(it))
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("order repository: encode items: %w", err)
	}
	addrJSON, err := json.Marshal(addressRow(o.Address))
	if err != nil {
		return nil, fmt.Errorf("order repository: encode address: %w", err)
	}

	var userID, userName, userEmail, userPhone, guestName, guestEmail, guestPhone *string
	if o.Buyer.Registered {
		userID = &o.Buyer.UserID
		if u := o.Buyer.User; u != nil {
			userName, userEmail, userPhone = &u.Name, &u.Email, &u.Phone
		}
	} else if g := o.Buyer.Guest; g != nil {
		guestName, guestEmail, guestPhone = &g.Name, &g.Email, &g.Phone
	}

	coupons := o.Pricing.AppliedCoupons
	if coupons == nil {
		coupons = []string{}
	}

	return []any{
		o.ID, o.Code, userID, userName, userEmail, userPhone, guestName, guestEmail, guestPhone,
		itemsJSON, addrJSON,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		o.TransactionID, o.PaymentIntentID,
		o.Pricing.TotalPrice.String(), o.Pricing.Discount.String(), o.Pricing.Shipping.String(), o.Pricing.FinalTotal.String(),
		coupons, o.Courier, o.TrackingID, nullTime(o.ExpiresAt), o.CreatedAt, o.UpdatedAt,
	}, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                                      domain.Order
		userID, userName, userEmail, userPhone *string
		guestName, guestEmail, guestPhone      *string
		itemsJSON, addrJSON                    []byte
		method, payStatus, status              string
		total, discount, shipping, final       string
		coupons                                []string
		expiresAt                              *time.Time
	)
	err := row.Scan(
		&o.ID, &o.Code, &userID, &userName, &userEmail, &userPhone, &guestName, &guestEmail, &guestPhone,
		&itemsJSON, &addrJSON, &method, &payStatus, &status, &o.TransactionID, &o.PaymentIntentID,
		&total, &discount, &shipping, &final, &coupons,
		&o.Courier, &o.TrackingID, &expiresAt, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var items []itemRow
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, fmt.Errorf("order repository: decode items of %s: %w", o.ID, err)
	}
	o.Items = make([]domain.Item, 0, len(items))
	for _, it := range items {
		o.Items = append(o.Items, domain.Item(it))
	}
	var addr addressRow
	if err := json.Unmarshal(addrJSON, &addr); err != nil {
		return nil, fmt.Errorf("order repository: decode address of %s: %w", o.ID, err)
	}
	o.Address = domain.Address(addr)

	if userID != nil {
		o.Buyer = domain.RegisteredBuyer(*userID, domain.Contact{
			Name: deref(userName), Email: deref(userEmail), Phone: deref(userPhone),
		})
	} else {
		o.Buyer = domain.GuestBuyer(domain.Contact{
			Name: deref(guestName), Email: deref(guestEmail), Phone: deref(guestPhone),
		})
	}

	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.Status = domain.Status(status)

	amounts := []*decimal.Decimal{&o.Pricing.TotalPrice, &o.Pricing.Discount, &o.Pricing.Shipping, &o.Pricing.FinalTotal}
	for i, raw := range []string{total, discount, shipping, final} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("order repository: decode amount of %s: %w", o.ID, err)
		}
		*amounts[i] = d
	}
	o.Pricing.AppliedCoupons = coupons
	if expiresAt != nil {
		o.ExpiresAt = expiresAt.UTC()
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

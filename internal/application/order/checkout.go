package order

import (
	"context"
	"errors"
	"strings"
	"time"

	appinventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ProductID string
	Quantity  int
}

// Checkout is the cart plus buyer supplied details shared by create-order and confirm-payment.
type Checkout struct {
	Items           []CartLine
	Address         *domain.Address
	PaymentMethod   string
	UserID          string
	Guest           *domain.Contact
	TotalPrice      decimal.Decimal
	DiscountAmount  decimal.Decimal
	ShippingCharges decimal.Decimal
	AppliedCoupons  []string
}

// validated is a checkout that passed the cheap, side-effect free checks.
type validated struct {
	lines   []appinventory.Line
	address domain.Address
	method  domain.PaymentMethod
	pricing domain.Pricing
}

func (c Checkout) validate() (validated, error) {
	if len(c.Items) == 0 {
		return validated{}, ErrEmptyCart
	}
	if c.Address == nil {
		return validated{}, newValidation("shipping address is required")
	}
	if err := c.Address.Validate(); err != nil {
		return validated{}, newValidation(err.Error())
	}
	if strings.TrimSpace(c.PaymentMethod) == "" {
		return validated{}, newValidation("payment method is required")
	}
	method, err := domain.ParsePaymentMethod(c.PaymentMethod)
	if err != nil {
		return validated{}, newValidation(err.Error())
	}
	lines := make([]appinventory.Line, 0, len(c.Items))
	for _, it := range c.Items {
		if it.ProductID == "" {
			return validated{}, newValidation("product id is required")
		}
		if it.Quantity < 1 {
			return validated{}, newValidation("quantity must be at least 1")
		}
		lines = append(lines, appinventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	pricing, err := domain.NewPricing(c.TotalPrice, c.DiscountAmount, c.ShippingCharges, c.AppliedCoupons)
	if err != nil {
		return validated{}, newValidation(err.Error())
	}
	return validated{lines: lines, address: *c.Address, method: method, pricing: pricing}, nil
}

// resolveBuyer freezes the registered account's contact details, falling back to guest fields.
func resolveBuyer(ctx context.Context, dir BuyerDirectory, c Checkout) (domain.Buyer, error) {
	if c.UserID != "" && dir != nil {
		contact, err := dir.Lookup(ctx, c.UserID)
		switch {
		case err == nil:
			return domain.RegisteredBuyer(c.UserID, contact), nil
		case errors.Is(err, domain.ErrBuyerNotFound):
		default:
			return domain.Buyer{}, classify(err)
		}
	}
	if c.Guest != nil && c.Guest.Email != "" && c.Guest.Phone != "" {
		return domain.GuestBuyer(*c.Guest), nil
	}
	return domain.Buyer{}, newValidation("buyer identity could not be resolved")
}

func itemsFromReservations(res []dominv.Reservation) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(res))
	for _, r := range res {
		it, err := domain.NewItem(r.ProductID, r.Name, r.Price, r.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func linesOf(o *domain.Order) []appinventory.Line {
	lines := make([]appinventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, appinventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

func linesFromReservations(res []dominv.Reservation) []appinventory.Line {
	lines := make([]appinventory.Line, 0, len(res))
	for _, r := range res {
		lines = append(lines, appinventory.Line{ProductID: r.ProductID, Quantity: r.Quantity})
	}
	return lines
}

// allocateCode never fails: when the sequencer is missing or errors, the code continues from the
// latest stored order, and from 1 on an empty store.
func allocateCode(ctx context.Context, seq domain.CodeSequencer, orders domain.Repository, now time.Time) (string, error) {
	if seq != nil {
		n, err := seq.Next(ctx)
		if err == nil {
			return domain.FormatCode(now, n), nil
		}
		return domain.FormatCode(now, fallbackSequence(ctx, orders)), err
	}
	return domain.FormatCode(now, fallbackSequence(ctx, orders)), nil
}

func fallbackSequence(ctx context.Context, orders domain.Repository) int64 {
	if orders == nil {
		return 1
	}
	latest, err := orders.Latest(ctx)
	if err != nil || latest == nil {
		return 1
	}
	n, err := domain.ParseCodeSequence(latest.Code)
	if err != nil {
		return 1
	}
	return n + 1
}

func restoreInput(o *domain.Order) appinventory.RestoreItemsInput {
	return appinventory.RestoreItemsInput{Reference: o.ID, Lines: linesOf(o)}
}

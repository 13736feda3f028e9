package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpiryWindow is how long an order may stay unpaid before it is canceled and its stock released.
const ExpiryWindow = 30 * time.Minute

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: conflict")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("order: amount must be zero or greater")
	ErrTotalMismatch          = errors.New("order: total price does not match line items")
	ErrNoItems                = errors.New("order: at least one item is required")
	ErrInvalidBuyer           = errors.New("order: exactly one of registered or guest buyer is required")
	ErrInvalidAddress         = errors.New("order: shipping address is incomplete")
	ErrInvalidPaymentMethod   = errors.New("order: unsupported payment method")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrBuyerNotFound          = errors.New("order: buyer not found")
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCanceled   Status = "Canceled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

type PaymentMethod string

const (
	MethodRazorpay PaymentMethod = "razorpay"
	MethodPhonePe  PaymentMethod = "phonepe"
)

// ParsePaymentMethod normalises a client supplied tag.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case MethodRazorpay, MethodPhonePe:
		return m, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// GatewayMediated reports whether the buyer pays through the external gateway checkout.
func (m PaymentMethod) GatewayMediated() bool { return m == MethodRazorpay }

type Contact struct {
	Name  string
	Email string
	Phone string
}

// Buyer holds either a registered account snapshot or guest contact fields, never both.
type Buyer struct {
	Registered bool
	UserID     string
	User       *Contact
	Guest      *Contact
}

func RegisteredBuyer(userID string, c Contact) Buyer {
	return Buyer{Registered: true, UserID: userID, User: &c}
}

func GuestBuyer(c Contact) Buyer {
	return Buyer{Guest: &c}
}

func (b Buyer) Validate() error {
	if b.Registered {
		if b.UserID == "" || b.User == nil || b.Guest != nil {
			return ErrInvalidBuyer
		}
		return nil
	}
	if b.Guest == nil || b.User != nil || b.UserID != "" {
		return ErrInvalidBuyer
	}
	if b.Guest.Email == "" || b.Guest.Phone == "" {
		return ErrInvalidBuyer
	}
	return nil
}

// Contact returns whichever identity is populated.
func (b Buyer) Contact() Contact {
	if b.Registered && b.User != nil {
		return *b.User
	}
	if b.Guest != nil {
		return *b.Guest
	}
	return Contact{}
}

type Address struct {
	Street  string
	City    string
	State   string
	Zipcode string
	Country string
}

func (a Address) Validate() error {
	for _, v := range []string{a.Street, a.City, a.State, a.Zipcode, a.Country} {
		if strings.TrimSpace(v) == "" {
			return ErrInvalidAddress
		}
	}
	return nil
}

// Item is a frozen copy of the product at sale time.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

func NewItem(productID, name string, price decimal.Decimal, quantity int) (Item, error) {
	if quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	if price.IsNegative() {
		return Item{}, ErrInvalidAmount
	}
	return Item{
		ProductID: productID,
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		Subtotal:  price.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Pricing is the monetary breakdown. FinalTotal is always derived, never supplied.
type Pricing struct {
	TotalPrice     decimal.Decimal
	Discount       decimal.Decimal
	Shipping       decimal.Decimal
	FinalTotal     decimal.Decimal
	AppliedCoupons []string
}

func NewPricing(total, discount, shipping decimal.Decimal, coupons []string) (Pricing, error) {
	if total.IsNegative() || discount.IsNegative() || shipping.IsNegative() {
		return Pricing{}, ErrInvalidAmount
	}
	final := total.Sub(discount).Add(shipping)
	if final.IsNegative() {
		return Pricing{}, ErrInvalidAmount
	}
	return Pricing{
		TotalPrice:     total,
		Discount:       discount,
		Shipping:       shipping,
		FinalTotal:     final,
		AppliedCoupons: append([]string(nil), coupons...),
	}, nil
}

// Consistent reports whether FinalTotal still matches its formula.
func (p Pricing) Consistent() bool {
	return p.FinalTotal.Equal(p.TotalPrice.Sub(p.Discount).Add(p.Shipping))
}

// MinorUnits converts a major-unit amount to the gateway's minor unit (paise, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type Order struct {
	ID              string
	Code            string
	Buyer           Buyer
	Items           []Item
	Address         Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          Status
	TransactionID   string
	PaymentIntentID string
	Pricing         Pricing
	Courier         string
	TrackingID      string
	ExpiresAt       time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Draft struct {
	ID            string
	Code          string
	Buyer         Buyer
	Items         []Item
	Address       Address
	PaymentMethod PaymentMethod
	Pricing       Pricing
	CreatedAt     time.Time
}

// New builds a Pending/Pending order that expires ExpiryWindow after creation.
func New(d Draft) (*Order, error) {
	if len(d.Items) == 0 {
		return nil, ErrNoItems
	}
	if err := d.Buyer.Validate(); err != nil {
		return nil, err
	}
	if err := d.Address.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParsePaymentMethod(string(d.PaymentMethod)); err != nil {
		return nil, err
	}
	sum := decimal.Zero
	for _, it := range d.Items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		sum = sum.Add(it.Subtotal)
	}
	if !sum.Equal(d.Pricing.TotalPrice) {
		return nil, ErrTotalMismatch
	}
	if !d.Pricing.Consistent() {
		return nil, ErrInvalidAmount
	}

	created := d.CreatedAt.UTC()
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &Order{
		ID:            d.ID,
		Code:          d.Code,
		Buyer:         d.Buyer,
		Items:         append([]Item(nil), d.Items...),
		Address:       d.Address,
		PaymentMethod: d.PaymentMethod,
		PaymentStatus: PaymentPending,
		Status:        StatusPending,
		Pricing:       d.Pricing,
		ExpiresAt:     created.Add(ExpiryWindow),
		CreatedAt:     created,
		UpdatedAt:     created,
	}, nil
}

// AwaitingPayment is the guard shared by confirmation and expiry.
func (o *Order) AwaitingPayment() bool {
	return o.Status == StatusPending && o.PaymentStatus == PaymentPending
}

func (o *Order) Expired(now time.Time) bool {
	return o.AwaitingPayment() && !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.Pricing.AppliedCoupons = append([]string(nil), o.Pricing.AppliedCoupons...)
	if o.Buyer.User != nil {
		u := *o.Buyer.User
		c.Buyer.User = &u
	}
	if o.Buyer.Guest != nil {
		g := *o.Buyer.Guest
		c.Buyer.Guest = &g
	}
	return &c
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = now.UTC()
}

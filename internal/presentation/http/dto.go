package httppresentation

import (
	"encoding/json"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/shopspring/decimal"
)

const notAvailable = "N/A"

type cartItemDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type addressDTO struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country"`
}

type contactDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type checkoutRequest struct {
	CartItems       []cartItemDTO   `json:"cartItems"`
	ShippingAddress *addressDTO     `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	UserInfo        *contactDTO     `json:"userInfo"`
	UserID          string          `json:"userId"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	ShippingCharges decimal.Decimal `json:"shippingCharges"`
	AppliedCoupons  []string        `json:"appliedCoupons"`
}

func (c checkoutRequest) toCheckout(userID string) apporder.Checkout {
	out := apporder.Checkout{
		PaymentMethod:   c.PaymentMethod,
		UserID:          c.UserID,
		TotalPrice:      c.TotalPrice,
		DiscountAmount:  c.DiscountAmount,
		ShippingCharges: c.ShippingCharges,
		AppliedCoupons:  c.AppliedCoupons,
	}
	if out.UserID == "" {
		out.UserID = userID
	}
	for _, it := range c.CartItems {
		out.Items = append(out.Items, apporder.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if a := c.ShippingAddress; a != nil {
		addr := domain.Address(*a)
		out.Address = &addr
	}
	if u := c.UserInfo; u != nil {
		g := domain.Contact(*u)
		out.Guest = &g
	}
	return out
}

type confirmPaymentRequest struct {
	checkoutRequest
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

type trackOrderRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	OrderID string `json:"orderId"`
}

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingID     string `json:"trackingId"`
	CourierPartner string `json:"courierPartner"`
}

type orderDetailsDTO struct {
	OrderID         string      `json:"orderId"`
	TotalPrice      json.Number `json:"totalPrice"`
	DiscountAmount  json.Number `json:"discountAmount"`
	ShippingCharges json.Number `json:"shippingCharges"`
	FinalTotal      json.Number `json:"finalTotal"`
	AppliedCoupons  []string    `json:"appliedCoupons"`
}

type gatewayOrderResponse struct {
	Success         bool            `json:"success"`
	RazorpayOrderID string          `json:"razorpayOrderId"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Key             string          `json:"key,omitempty"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	OrderDetails    orderDetailsDTO `json:"orderDetails"`
}

type directOrderResponse struct {
	Message   string    `json:"message"`
	OrderID   string    `json:"orderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type messageResponse struct {
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
}

type lineDTO struct {
	Name     string      `json:"name"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
	Subtotal json.Number `json:"subtotal"`
	Image    string      `json:"image,omitempty"`
}

// buyerOrderDTO is what a buyer may see about their own order. The order code is the only identifier.
type buyerOrderDTO struct {
	OrderID         string      `json:"orderId"`
	TrackingID      string      `json:"trackingId"`
	CourierPartner  string      `json:"courierPartner"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	OrderStatus     string      `json:"orderStatus"`
	PaymentMethod   string      `json:"paymentMethod"`
	PaymentStatus   string      `json:"paymentStatus"`
	TotalPrice      json.Number `json:"totalPrice"`
	FinalTotal      json.Number `json:"finalTotal"`
	ShippingCharges json.Number `json:"shippingCharges"`
	AppliedCoupons  []string    `json:"appliedCoupons"`
	OrderDate       time.Time   `json:"orderDate"`
	ShippingAddress addressDTO  `json:"shippingAddress"`
	OrderItems      []lineDTO   `json:"orderItems"`
}

type operatorItemDTO struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	Subtotal  json.Number `json:"subtotal"`
}

type operatorOrderDTO struct {
	ID               string            `json:"_id"`
	OrderID          string            `json:"orderId"`
	TrackingID       string            `json:"trackingId"`
	CourierPartner   string            `json:"courierPartner"`
	IsRegisteredUser bool              `json:"isRegisteredUser"`
	UserName         string            `json:"userName"`
	UserEmail        string            `json:"userEmail"`
	UserPhone        string            `json:"userPhone"`
	OrderItems       []operatorItemDTO `json:"orderItems"`
	ShippingAddress  addressDTO        `json:"shippingAddress"`
	PaymentMethod    string            `json:"paymentMethod"`
	PaymentStatus    string            `json:"paymentStatus"`
	TransactionID    string            `json:"transactionId,omitempty"`
	OrderStatus      string            `json:"orderStatus"`
	TotalPrice       json.Number       `json:"totalPrice"`
	DiscountAmount   json.Number       `json:"discountAmount"`
	FinalTotal       json.Number       `json:"finalTotal"`
	ShippingCharges  json.Number       `json:"shippingCharges"`
	AppliedCoupons   []string          `json:"appliedCoupons"`
	ExpiresAt        *time.Time        `json:"expiresAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

type updateStatusResponse struct {
	Message string           `json:"message"`
	Order   operatorOrderDTO `json:"order"`
}

type ordersResponse struct {
	Orders []buyerOrderDTO `json:"orders"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func coupons(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}

func toBuyerOrder(o *domain.Order, images map[string]string) buyerOrderDTO {
	c := o.Buyer.Contact()
	lines := make([]lineDTO, 0, len(o.Items))
	for _, it := range o.Items {
		l := lineDTO{Name: it.Name, Quantity: it.Quantity, Price: money(it.Price), Subtotal: money(it.Subtotal)}
		if images != nil {
			l.Image = images[it.ProductID]
			if l.Image == "" {
				l.Image = apporder.FallbackImage
			}
		}
		lines = append(lines, l)
	}
	return buyerOrderDTO{
		OrderID:         o.Code,
		TrackingID:      orNA(o.TrackingID),
		CourierPartner:  orNA(o.Courier),
		Name:            c.Name,
		Email:           c.Email,
		Phone:           c.Phone,
		OrderStatus:     string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		TotalPrice:      money(o.Pricing.TotalPrice),
		FinalTotal:      money(o.Pricing.FinalTotal),
		ShippingCharges: money(o.Pricing.Shipping),
		AppliedCoupons:  coupons(o.Pricing.AppliedCoupons),
		OrderDate:       o.CreatedAt,
		ShippingAddress: addressDTO(o.Address),
		OrderItems:      lines,
	}
}

func toOperatorOrder(o *domain.Order) operatorOrderDTO {
	c := o.Buyer.Contact()
	items := make([]operatorItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, operatorItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.Price),
			Quantity:  it.Quantity,
			Subtotal:  money(it.Subtotal),
		})
	}
	dto := operatorOrderDTO{
		ID:               o.ID,
		OrderID:          o.Code,
		TrackingID:       orNA(o.TrackingID),
		CourierPartner:   orNA(o.Courier),
		IsRegisteredUser: o.Buyer.Registered,
		UserName:         c.Name,
		UserEmail:        c.Email,
		UserPhone:        c.Phone,
		OrderItems:       items,
		ShippingAddress:  addressDTO(o.Address),
		PaymentMethod:    string(o.PaymentMethod),
		PaymentStatus:    string(o.PaymentStatus),
		TransactionID:    o.TransactionID,
		OrderStatus:      string(o.Status),
		TotalPrice:       money(o.Pricing.TotalPrice),
		DiscountAmount:   money(o.Pricing.Discount),
		FinalTotal:       money(o.Pricing.FinalTotal),
		ShippingCharges:  money(o.Pricing.Shipping),
		AppliedCoupons:   coupons(o.Pricing.AppliedCoupons),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if !o.ExpiresAt.IsZero() {
		at := o.ExpiresAt
		dto.ExpiresAt = &at
	}
	return dto
}

func toDetails(s apporder.OrderSummary) orderDetailsDTO {
	return orderDetailsDTO{
		OrderID:         s.OrderCode,
		TotalPrice:      money(s.TotalPrice),
		DiscountAmount:  money(s.DiscountAmount),
		ShippingCharges: money(s.ShippingCharges),
		FinalTotal:      money(s.FinalTotal),
		AppliedCoupons:  coupons(s.AppliedCoupons),
	}
}

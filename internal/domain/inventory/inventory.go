package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Image     string
	UpdatedAt time.Time
}

func NewProduct(id, name string, price decimal.Decimal, stock int) (*Product, error) {
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reserve decrements stock. Stock never goes below zero.
func (p *Product) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Stock {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	p.touch()
	return nil
}

func (p *Product) Restore(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += quantity
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

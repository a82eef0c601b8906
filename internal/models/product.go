package models

import (
	"github.com/shopspring/decimal"
)

// Product is read-only on the client; the remote catalog owns it.
type Product struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	InStock     *bool           `json:"inStock,omitempty"`
}

// Available reports false only when the catalog explicitly marks the product out of stock.
func (p Product) Available() bool {
	return p.InStock == nil || *p.InStock
}

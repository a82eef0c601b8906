package models

import (
	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID string          `json:"orderId"`
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status,omitempty"`
}

type CheckoutResponse struct {
	Order *Order `json:"order"`
}

// CheckoutContext carries experiment correlation data along with a checkout.
type CheckoutContext struct {
	VisitorCode string `json:"visitorCode"`
}

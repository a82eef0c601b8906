package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"storefront/internal/models"
)

func TestUserStatusPayload(t *testing.T) {
	assert.Equal(t, Payload{"logged_in_status": "logged-out"}, UserStatusPayload(""))
	assert.Equal(t, Payload{"user_id": "u1", "logged_in_status": "logged-in"}, UserStatusPayload("u1"))
}

func TestItemPayload(t *testing.T) {
	p := &models.Product{ID: "p1", Name: "Widget", Category: "tools", Price: decimal.RequireFromString("9.99")}

	payload := ItemPayload(p, 2, "v1")

	assert.Equal(t, "v1", payload["visitor_code"])
	ecommerce := payload["ecommerce"].(map[string]interface{})
	assert.Equal(t, "USD", ecommerce["currency"])
	assert.Equal(t, 9.99, ecommerce["value"])
	items := ecommerce["items"].([]map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"item_id":       "p1",
		"item_name":     "Widget",
		"item_category": "tools",
		"price":         9.99,
		"quantity":      2,
	}, items[0])
}

func TestItemPayloadUnknownProduct(t *testing.T) {
	payload := ItemPayload(nil, 1, "")

	_, hasVisitor := payload["visitor_code"]
	assert.False(t, hasVisitor)
	items := payload["ecommerce"].(map[string]interface{})["items"].([]map[string]interface{})
	assert.Equal(t, "unknown", items[0]["item_id"])
	assert.Equal(t, "Unknown Product", items[0]["item_name"])
	assert.Equal(t, 0.0, items[0]["price"])
}

func TestPurchasePayload(t *testing.T) {
	order := &models.Order{OrderID: "O1", Total: decimal.RequireFromString("19.98")}
	lines := []models.CartLineView{{
		ProductID: "p1",
		Quantity:  2,
		Product:   models.Product{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("9.99")},
	}}

	ecommerce := PurchasePayload(order, lines, "v1")["ecommerce"].(map[string]interface{})
	assert.Equal(t, "O1", ecommerce["transaction_id"])
	assert.Equal(t, 19.98, ecommerce["value"])
	assert.Len(t, ecommerce["items"], 1)
}

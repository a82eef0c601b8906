package analytics

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

const (
	EventLogin           = "login"
	EventLogout          = "logout"
	EventUserStatusCheck = "user_status_check"
	EventAddToCart       = "add_to_cart"
	EventViewItem        = "view_item"
	EventPageView        = "page_view"
	EventPurchase        = "purchase"
)

const (
	StatusLoggedIn  = "logged-in"
	StatusLoggedOut = "logged-out"

	currency = "USD"
)

func LoginPayload(userID string) Payload {
	return Payload{
		"user_id":          userID,
		"logged_in_status": StatusLoggedIn,
	}
}

// UserStatusPayload is pushed on the initial session check; an empty userID means logged out.
func UserStatusPayload(userID string) Payload {
	if userID == "" {
		return Payload{"logged_in_status": StatusLoggedOut}
	}
	return Payload{
		"user_id":          userID,
		"logged_in_status": StatusLoggedIn,
	}
}

func LogoutPayload() Payload {
	return Payload{"logged_in_status": StatusLoggedOut}
}

// ItemPayload builds the ecommerce body shared by add_to_cart and view_item.
// value is the unit price, not price times quantity.
func ItemPayload(product *models.Product, quantity int, visitorCode string) Payload {
	price := decimal.Zero
	item := map[string]interface{}{
		"item_id":       "unknown",
		"item_name":     "Unknown Product",
		"item_category": "Unknown",
		"quantity":      quantity,
	}
	if product != nil {
		price = product.Price
		if product.ID != "" {
			item["item_id"] = product.ID.String()
		}
		if product.Name != "" {
			item["item_name"] = product.Name
		}
		if product.Category != "" {
			item["item_category"] = product.Category
		}
	}
	item["price"] = price.InexactFloat64()

	p := Payload{
		"ecommerce": map[string]interface{}{
			"currency": currency,
			"value":    price.InexactFloat64(),
			"items":    []map[string]interface{}{item},
		},
	}
	if visitorCode != "" {
		p["visitor_code"] = visitorCode
	}
	return p
}

func PurchasePayload(order *models.Order, lines []models.CartLineView, visitorCode string) Payload {
	items := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]interface{}{
			"item_id":       l.ProductID.String(),
			"item_name":     l.Product.Name,
			"item_category": l.Product.Category,
			"price":         l.Product.Price.InexactFloat64(),
			"quantity":      l.Quantity,
		})
	}

	p := Payload{
		"ecommerce": map[string]interface{}{
			"transaction_id": order.OrderID,
			"currency":       currency,
			"value":          order.Total.InexactFloat64(),
			"items":          items,
		},
	}
	if visitorCode != "" {
		p["visitor_code"] = visitorCode
	}
	return p
}

func PageViewPayload(page, userID, visitorCode string) Payload {
	p := Payload{"page_path": page}
	if userID != "" {
		p["user_id"] = userID
	}
	if visitorCode != "" {
		p["visitor_code"] = visitorCode
	}
	return p
}

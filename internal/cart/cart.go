// Package cart joins server cart snapshots with the locally held catalog.
package cart

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// Reconcile keeps the order of lines and drops every line whose product id
// does not resolve in products. The server-side cart is not touched.
func Reconcile(lines []models.CartLine, products []models.Product) []models.CartLineView {
	byID := make(map[models.ID]models.Product, len(products))
	for _, p := range products {
		if _, seen := byID[p.ID]; !seen {
			byID[p.ID] = p
		}
	}

	views := make([]models.CartLineView, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		views = append(views, models.CartLineView{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   product,
		})
	}
	return views
}

func TotalItems(views []models.CartLineView) int {
	total := 0
	for _, v := range views {
		total += v.Quantity
	}
	return total
}

// TotalPrice is kept at full precision; round only through FormatPrice.
func TotalPrice(views []models.CartLineView) decimal.Decimal {
	total := decimal.Zero
	for _, v := range views {
		total = total.Add(LineTotal(v))
	}
	return total
}

func LineTotal(v models.CartLineView) decimal.Decimal {
	return v.Product.Price.Mul(decimal.NewFromInt(int64(v.Quantity)))
}

// FormatPrice rounds half away from zero to two places.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ItemCount sums the raw snapshot, including lines the catalog cannot resolve.
func ItemCount(lines []models.CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

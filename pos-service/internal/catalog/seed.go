package catalog

import (
	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/shopspring/decimal"
)

// DemoProducts is the catalog loaded by the seed command and by the in-memory
// store in local runs.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: "p-100", Barcode: "BC-100", Name: "Basmati Rice 1kg", UnitPrice: decimal.NewFromInt(250), StockQuantity: 5},
		{ID: "p-200", Barcode: "BC-200", Name: "Green Tea 100g", UnitPrice: decimal.RequireFromString("149.50"), StockQuantity: 40},
		{ID: "p-300", Barcode: "BC-300", Name: "Dark Chocolate", UnitPrice: decimal.NewFromInt(99), StockQuantity: 25},
		{ID: "p-400", Barcode: "BC-400", Name: "Olive Oil 500ml", UnitPrice: decimal.NewFromInt(610), StockQuantity: 12},
		{ID: "p-500", Barcode: "BC-500", Name: "Paper Towels", UnitPrice: decimal.NewFromInt(75), StockQuantity: 0},
	}
}

package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID            string          `json:"id" bson:"_id"`
	Barcode       string          `json:"barcode" bson:"barcode"`
	Name          string          `json:"name" bson:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice" bson:"-"`
	StockQuantity int             `json:"stockQuantity" bson:"stock_quantity"`
}

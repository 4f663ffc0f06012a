package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one distinct product in a cart. UnitPrice is captured when the
// product is first scanned and is not refreshed by later scans.
type CartLine struct {
	ProductID string          `json:"productId"`
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the single active cart of a merchant, shared by all its terminals.
type Cart struct {
	MerchantID string          `json:"merchantId"`
	Lines      []CartLine      `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func NewCart(merchantID string) *Cart {
	return &Cart{
		MerchantID: merchantID,
		Lines:      []CartLine{},
		Subtotal:   decimal.Zero,
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// FindLine returns the index of the line with the given barcode, or -1.
func (c *Cart) FindLine(barcode string) int {
	for i := range c.Lines {
		if c.Lines[i].Barcode == barcode {
			return i
		}
	}
	return -1
}

// Recalculate restores Subtotal = sum(UnitPrice * Quantity) and stamps UpdatedAt.
func (c *Cart) Recalculate(now time.Time) {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.LineTotal())
	}
	c.Subtotal = sum
	c.UpdatedAt = now
}

func (c *Cart) Reset(now time.Time) {
	c.Lines = []CartLine{}
	c.Recalculate(now)
}

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Clone returns a deep copy safe to hand out of the store.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Lines = make([]CartLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	return &out
}

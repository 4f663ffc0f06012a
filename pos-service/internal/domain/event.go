package domain

import "time"

type EventType string

const (
	EventScan     EventType = "SCAN"
	EventRemove   EventType = "REMOVE"
	EventClear    EventType = "CLEAR"
	EventCheckout EventType = "CHECKOUT"
)

// Event is a cart or checkout lifecycle notification. Sequence is assigned per
// merchant by the broadcaster and starts at 1.
type Event struct {
	Type       EventType `json:"type"`
	MerchantID string    `json:"merchantId"`
	Sequence   uint64    `json:"sequence"`
	At         time.Time `json:"at"`
	Payload    any       `json:"payload,omitempty"`
}

// CartEventPayload accompanies SCAN, REMOVE and CLEAR events.
type CartEventPayload struct {
	Barcode string `json:"barcode,omitempty"`
	Cart    *Cart  `json:"cart"`
}

// CheckoutEventPayload accompanies CHECKOUT events.
type CheckoutEventPayload struct {
	OrderID       string        `json:"orderId"`
	Total         string        `json:"total"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	ItemCount     int           `json:"itemCount"`
}

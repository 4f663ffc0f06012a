package domain

import "github.com/shopspring/decimal"

type PaymentSplit struct {
	Cash decimal.Decimal `json:"cash"`
	Card decimal.Decimal `json:"card"`
	UPI  decimal.Decimal `json:"upi"`
}

type AnalyticsSnapshot struct {
	TotalOrders  int64           `json:"totalOrders"`
	TotalSales   decimal.Decimal `json:"totalSales"`
	PaymentSplit PaymentSplit    `json:"paymentSplit"`
}

func NewAnalyticsSnapshot() AnalyticsSnapshot {
	return AnalyticsSnapshot{
		TotalSales: decimal.Zero,
		PaymentSplit: PaymentSplit{
			Cash: decimal.Zero,
			Card: decimal.Zero,
			UPI:  decimal.Zero,
		},
	}
}

// Add folds one completed order into the snapshot.
func (s *AnalyticsSnapshot) Add(o *Order) {
	s.TotalOrders++
	s.TotalSales = s.TotalSales.Add(o.Total)
	switch o.PaymentMethod {
	case PaymentCash:
		s.PaymentSplit.Cash = s.PaymentSplit.Cash.Add(o.Total)
	case PaymentCard:
		s.PaymentSplit.Card = s.PaymentSplit.Card.Add(o.Total)
	case PaymentUPI:
		s.PaymentSplit.UPI = s.PaymentSplit.UPI.Add(o.Total)
	}
}

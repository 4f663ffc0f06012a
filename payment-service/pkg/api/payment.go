package api

type ChargeStatus string

const (
	ChargeStatusSuccess ChargeStatus = "SUCCESS"
	ChargeStatusFailed  ChargeStatus = "FAILED"
)

type PaymentRefusal string

const (
	RefusalUnknown           PaymentRefusal = "UNKNOWN"
	RefusalInsufficientFunds PaymentRefusal = "INSUFFICIENT_FUNDS"
	RefusalCardExpired       PaymentRefusal = "CARD_EXPIRED"
	RefusalFraudSuspected    PaymentRefusal = "FRAUD_SUSPECTED"
	RefusalLimitExceeded     PaymentRefusal = "LIMIT_EXCEEDED"
	RefusalInvalidDetails    PaymentRefusal = "INVALID_DETAILS"
)

// KnownRefusals is indexed by the refusal codes 1..5.
var KnownRefusals = []PaymentRefusal{
	RefusalUnknown,
	RefusalInsufficientFunds,
	RefusalCardExpired,
	RefusalFraudSuspected,
	RefusalLimitExceeded,
	RefusalInvalidDetails,
}

type ChargeRequest struct {
	// ReferenceID identifies the charge on the caller's side.
	ReferenceID string `json:"referenceId"`
	MerchantID  string `json:"merchantId"`
	// Amount is a decimal string, e.g. "500" or "149.50".
	Amount string `json:"amount"`
	// Method is CASH, CARD or UPI.
	Method string `json:"method"`
}

type ChargeResponse struct {
	Status      ChargeStatus   `json:"status"`
	PaymentID   string         `json:"paymentId,omitempty"`
	ReferenceID string         `json:"referenceId"`
	KnownReason PaymentRefusal `json:"knownReason,omitempty"`
	OtherReason string         `json:"otherReason,omitempty"`
}

// Reason describes why a charge failed.
func (r *ChargeResponse) Reason() string {
	if r.OtherReason != "" {
		return r.OtherReason
	}
	if r.KnownReason != "" {
		return string(r.KnownReason)
	}
	return string(RefusalUnknown)
}

package models

// ChargeDecision is the payment calculator's verdict for a booking. A
// decision with ChargeType == ChargeError always has ShouldCharge == false
// and must never be interpreted as "charge anyway".
type ChargeDecision struct {
	ShouldCharge      bool       `json:"should_charge"`
	AmountCents       int64      `json:"amount_cents"`
	ChargeType        ChargeType `json:"charge_type"`
	Description       string     `json:"description"`
	RefundWindowHours int        `json:"refund_window_hours"`
	AutoRefundEnabled bool       `json:"auto_refund_enabled"`
}

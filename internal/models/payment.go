package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// BookingPayment is the one-to-one payment record for a booking. Rows are
// never deleted, they form the audit trail of payment activity.
type BookingPayment struct {
	bun.BaseModel `bun:"table:booking_payments"`

	ID              string        `bun:"id,pk" json:"id"`
	BookingID       string        `bun:"booking_id,notnull" json:"booking_id"`
	VenueID         string        `bun:"venue_id,notnull" json:"venue_id"`
	PaymentIntentID string        `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	Status          PaymentStatus `bun:"status,notnull" json:"status"`
	AmountCents     int64         `bun:"amount_cents,notnull" json:"amount_cents"`
	Currency        string        `bun:"currency,notnull" json:"currency"`
	FailureReason   string        `bun:"failure_reason,nullzero" json:"failure_reason,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// PendingPayment joins a stale pending payment with the booking fields the
// reconciliation job needs to pick per-venue processor credentials.
type PendingPayment struct {
	Payment *BookingPayment
	Booking *Booking
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Audit source tags.
const (
	AuditSourceReconciliation = "payment_reconciliation"
	AuditSourceTimeoutHandler = "automated_timeout_handler"
	AuditSourceStripeWebhook  = "stripe_webhook"
)

// BookingAudit records one state-changing action taken against a booking.
// This is the durable observability trail for the scheduled jobs.
type BookingAudit struct {
	bun.BaseModel `bun:"table:booking_audit"`

	ID         string    `bun:"id,pk" json:"id"`
	BookingID  string    `bun:"booking_id,notnull" json:"booking_id"`
	VenueID    string    `bun:"venue_id,notnull" json:"venue_id"`
	ChangeType string    `bun:"change_type,notnull" json:"change_type"`
	OldValue   string    `bun:"old_value,nullzero" json:"old_value,omitempty"`
	NewValue   string    `bun:"new_value,nullzero" json:"new_value,omitempty"`
	Source     string    `bun:"source,notnull" json:"source"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

package models

import "github.com/uptrace/bun"

type ChargeType string

const (
	ChargeAllReservations ChargeType = "all_reservations"
	ChargeLargeGroups     ChargeType = "large_groups"
	ChargePerGuest        ChargeType = "per_guest"
	// ChargeError marks a calculator result produced after a lookup failure.
	// Callers must treat it as "do not charge".
	ChargeError ChargeType = "error"
)

// Service is a bookable offering ("Dinner", "Afternoon Tea") with its own
// guest-count bounds, payment rules and duration rules.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID                     string     `bun:"id,pk" json:"id"`
	VenueID                string     `bun:"venue_id,notnull" json:"venue_id"`
	Title                  string     `bun:"title,notnull" json:"title"`
	MinGuests              int        `bun:"min_guests,notnull" json:"min_guests"`
	MaxGuests              int        `bun:"max_guests,notnull" json:"max_guests"`
	RequiresPayment        bool       `bun:"requires_payment" json:"requires_payment"`
	ChargeType             ChargeType `bun:"charge_type,nullzero" json:"charge_type,omitempty"`
	ChargeAmountPerGuest   int64      `bun:"charge_amount_per_guest,nullzero" json:"charge_amount_per_guest,omitempty"` // minor units
	MinimumGuestsForCharge int        `bun:"minimum_guests_for_charge,nullzero" json:"minimum_guests_for_charge,omitempty"`
	RefundWindowHours      int        `bun:"refund_window_hours,nullzero" json:"refund_window_hours,omitempty"`
	AutoRefundEnabled      bool       `bun:"auto_refund_enabled" json:"auto_refund_enabled"`

	DurationRules []DurationRule `bun:"rel:has-many,join:id=service_id" json:"duration_rules,omitempty"`
}

// DurationRule maps a party-size range to a booking duration. Rules are
// resolved first-match in Position order, so creation order is significant.
type DurationRule struct {
	bun.BaseModel `bun:"table:duration_rules"`

	ID              string `bun:"id,pk" json:"id"`
	ServiceID       string `bun:"service_id,notnull" json:"service_id"`
	MinGuests       int    `bun:"min_guests,notnull" json:"min_guests"`
	MaxGuests       int    `bun:"max_guests,notnull" json:"max_guests"`
	DurationMinutes int    `bun:"duration_minutes,notnull" json:"duration_minutes"`
	Position        int    `bun:"position,notnull" json:"position"`
}

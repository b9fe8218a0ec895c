package models

import "github.com/uptrace/bun"

// VenueStripeSettings holds per-venue Stripe credentials plus the venue-wide
// charge configuration the payment calculator falls back to when a service
// does not require payment itself.
type VenueStripeSettings struct {
	bun.BaseModel `bun:"table:venue_stripe_settings"`

	VenueID                string     `bun:"venue_id,pk" json:"venue_id"`
	TestSecretKey          string     `bun:"test_secret_key,nullzero" json:"-"`
	LiveSecretKey          string     `bun:"live_secret_key,nullzero" json:"-"`
	LiveMode               bool       `bun:"live_mode" json:"live_mode"`
	ChargeActive           bool       `bun:"charge_active" json:"charge_active"`
	ChargeType             ChargeType `bun:"charge_type,nullzero" json:"charge_type,omitempty"`
	ChargeAmountPerGuest   int64      `bun:"charge_amount_per_guest,nullzero" json:"charge_amount_per_guest,omitempty"`
	MinimumGuestsForCharge int        `bun:"minimum_guests_for_charge,nullzero" json:"minimum_guests_for_charge,omitempty"`
}

// SecretKey returns the key matching the venue's test/live mode.
func (v *VenueStripeSettings) SecretKey() string {
	if v.LiveMode {
		return v.LiveSecretKey
	}
	return v.TestSecretKey
}

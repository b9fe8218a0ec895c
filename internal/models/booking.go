package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingSeated         BookingStatus = "seated"
	BookingFinished       BookingStatus = "finished"
	BookingCancelled      BookingStatus = "cancelled"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID              string        `bun:"id,pk" json:"id"`
	VenueID         string        `bun:"venue_id,notnull" json:"venue_id"`
	TableID         string        `bun:"table_id,nullzero" json:"table_id,omitempty"` // empty = unallocated
	ServiceID       string        `bun:"service_id,nullzero" json:"service_id,omitempty"`
	Date            string        `bun:"booking_date,notnull" json:"date"`       // YYYY-MM-DD
	StartTime       string        `bun:"start_time,notnull" json:"start_time"`   // HH:MM
	DurationMinutes int           `bun:"duration_minutes,notnull" json:"duration_minutes"`
	PartySize       int           `bun:"party_size,notnull" json:"party_size"`
	GuestName       string        `bun:"guest_name,nullzero" json:"guest_name,omitempty"`
	GuestEmail      string        `bun:"guest_email,nullzero" json:"guest_email,omitempty"`
	GuestPhone      string        `bun:"guest_phone,nullzero" json:"guest_phone,omitempty"`
	Status          BookingStatus `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// BookingRequest is the payload for creating a reservation.
type BookingRequest struct {
	TableID         string `json:"table_id,omitempty"`
	ServiceID       string `json:"service_id,omitempty"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"` // 0 = resolve from service rules
	PartySize       int    `json:"party_size"`
	GuestName       string `json:"guest_name"`
	GuestEmail      string `json:"guest_email,omitempty"`
	GuestPhone      string `json:"guest_phone,omitempty"`
}

// WalkInRequest is the payload for seating a currently-arriving guest.
type WalkInRequest struct {
	TableID   string `json:"table_id"`
	ServiceID string `json:"service_id,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	PartySize int    `json:"party_size"`
	GuestName string `json:"guest_name,omitempty"`
}

type BookingResponse struct {
	Booking       *Booking        `json:"booking"`
	Payment       *BookingPayment `json:"payment,omitempty"`
	ClientSecret  string          `json:"client_secret,omitempty"`
	ChargeApplied bool            `json:"charge_applied"`
}

// AvailabilityRequest asks whether a slot on a set of tables is free.
type AvailabilityRequest struct {
	TableIDs        []string `json:"table_ids"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
}

type ConflictingBooking struct {
	ID        string `json:"id"`
	GuestName string `json:"guest_name"`
	StartTime string `json:"start_time"`
	PartySize int    `json:"party_size"`
}

type ConflictResult struct {
	HasConflict          bool                `json:"has_conflict"`
	MaxAvailableDuration int                 `json:"max_available_duration"`
	Conflicting          *ConflictingBooking `json:"conflicting_booking,omitempty"`
}

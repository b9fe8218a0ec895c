package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- BOOKINGS ----------------

// CreateBooking → insert new booking
func (d *DB) CreateBooking(booking models.Booking) error {
	_, err := d.Bun.NewInsert().Model(&booking).Exec(context.Background())
	return err
}

// GetBookingByID → fetch one booking scoped to its venue
func (d *DB) GetBookingByID(venueID, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Where("venue_id = ?", venueID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBooking → update mutable fields
func (d *DB) UpdateBooking(booking models.Booking) error {
	booking.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(&booking).
		Column("table_id", "service_id", "booking_date", "start_time",
			"duration_minutes", "party_size", "guest_name", "guest_email",
			"guest_phone", "status", "updated_at").
		Where("id = ?", booking.ID).
		Where("venue_id = ?", booking.VenueID).
		Exec(context.Background())
	return err
}

// GetActiveBookingsForTables → all bookings on the given tables and date that
// still occupy time (everything except cancelled and finished), ascending by
// start time so the earliest conflict is seen first.
func (d *DB) GetActiveBookingsForTables(venueID, date string, tableIDs []string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("venue_id = ?", venueID).
		Where("booking_date = ?", date).
		Where("table_id IN (?)", bun.In(tableIDs)).
		Where("status NOT IN (?)", bun.In([]string{
			string(models.BookingCancelled),
			string(models.BookingFinished),
		})).
		Order("start_time ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// GetExpiredPendingBookings → bookings stuck in pending_payment since before
// the cutoff, across all venues. Used by the timeout sweeper.
func (d *DB) GetExpiredPendingBookings(cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("status = ?", string(models.BookingPendingPayment)).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ---------------- BLOCKS ----------------

func (d *DB) CreateBlock(block models.Block) error {
	_, err := d.Bun.NewInsert().Model(&block).Exec(context.Background())
	return err
}

func (d *DB) GetBlocksForDate(venueID, date string) ([]models.Block, error) {
	var blocks []models.Block
	err := d.Bun.NewSelect().
		Model(&blocks).
		Where("venue_id = ?", venueID).
		Where("block_date = ?", date).
		Order("start_time ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// ---------------- SERVICES ----------------

// GetServiceWithRules → service plus its duration rules in creation order.
// Rule order is significant: the resolver takes the first match.
func (d *DB) GetServiceWithRules(venueID, serviceID string) (*models.Service, error) {
	var service models.Service
	err := d.Bun.NewSelect().
		Model(&service).
		Relation("DurationRules", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("service.id = ?", serviceID).
		Where("service.venue_id = ?", venueID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// ---------------- VENUE SETTINGS ----------------

func (d *DB) GetVenueStripeSettings(venueID string) (*models.VenueStripeSettings, error) {
	var settings models.VenueStripeSettings
	err := d.Bun.NewSelect().
		Model(&settings).
		Where("venue_id = ?", venueID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type BunStore struct {
	Bun *bun.DB
	Log *logger.Logger
}

func NewBunStore(db *bun.DB, log *logger.Logger) *BunStore {
	return &BunStore{Bun: db, Log: log}
}

func (s *BunStore) SavePayment(payment *models.BookingPayment) error {
	_, err := s.Bun.NewInsert().Model(payment).Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (s *BunStore) GetPaymentByBookingID(venueID, bookingID string) (*models.BookingPayment, error) {
	var payment models.BookingPayment
	err := s.Bun.NewSelect().
		Model(&payment).
		Where("booking_id = ?", bookingID).
		Where("venue_id = ?", venueID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *BunStore) GetPaymentByIntentID(intentID string) (*models.BookingPayment, error) {
	var payment models.BookingPayment
	err := s.Bun.NewSelect().
		Model(&payment).
		Where("payment_intent_id = ?", intentID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment writes status, failure reason and updated_at. Rows are never
// deleted; a payment record is the audit trail of the charge.
func (s *BunStore) UpdatePayment(payment *models.BookingPayment) error {
	payment.UpdatedAt = time.Now()
	_, err := s.Bun.NewUpdate().
		Model(payment).
		Column("status", "failure_reason", "payment_intent_id", "updated_at").
		Where("id = ?", payment.ID).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to update payment %s: %w", payment.ID, err)
	}
	return nil
}

func (s *BunStore) ListStalePending(cutoff time.Time) ([]models.PendingPayment, error) {
	var payments []models.BookingPayment
	err := s.Bun.NewSelect().
		Model(&payments).
		Where("status = ?", string(models.PaymentPending)).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending payments: %w", err)
	}

	result := make([]models.PendingPayment, 0, len(payments))
	for i := range payments {
		p := &payments[i]
		var booking models.Booking
		err := s.Bun.NewSelect().
			Model(&booking).
			Where("id = ?", p.BookingID).
			Where("venue_id = ?", p.VenueID).
			Limit(1).
			Scan(context.Background())
		if err != nil {
			// Orphaned payment row; skip it rather than abort the batch.
			s.Log.Warn("DATABASE", fmt.Sprintf("payment %s has no booking %s: %v", p.ID, p.BookingID, err))
			continue
		}
		result = append(result, models.PendingPayment{Payment: p, Booking: &booking})
	}
	return result, nil
}

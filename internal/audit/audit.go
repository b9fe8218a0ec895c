package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Recorder appends booking_audit rows. Every state-changing action taken by
// the scheduled jobs or the webhook writes exactly one row here.
type Recorder struct {
	Bun *bun.DB
}

func NewRecorder(db *bun.DB) *Recorder {
	return &Recorder{Bun: db}
}

func (r *Recorder) Record(bookingID, venueID, changeType, oldValue, newValue, source string) error {
	entry := models.BookingAudit{
		ID:         uuid.NewString(),
		BookingID:  bookingID,
		VenueID:    venueID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
		Source:     source,
		CreatedAt:  time.Now(),
	}
	if _, err := r.Bun.NewInsert().Model(&entry).Exec(context.Background()); err != nil {
		return fmt.Errorf("failed to write audit record for booking %s: %w", bookingID, err)
	}
	return nil
}

// ListForBooking returns the audit trail for one booking, oldest first.
func (r *Recorder) ListForBooking(venueID, bookingID string) ([]models.BookingAudit, error) {
	var entries []models.BookingAudit
	err := r.Bun.NewSelect().
		Model(&entries).
		Where("booking_id = ?", bookingID).
		Where("venue_id = ?", venueID).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}

package storage

import (
	"time"

	"ms-booking/internal/models"
)

type Store interface {
	SavePayment(payment *models.BookingPayment) error
	GetPaymentByBookingID(venueID, bookingID string) (*models.BookingPayment, error)
	GetPaymentByIntentID(intentID string) (*models.BookingPayment, error)
	UpdatePayment(payment *models.BookingPayment) error

	// ListStalePending returns pending payments created before the cutoff,
	// joined to their bookings for venue-scoped credential selection.
	ListStalePending(cutoff time.Time) ([]models.PendingPayment, error)
}

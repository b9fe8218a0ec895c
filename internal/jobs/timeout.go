package jobs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/storage"
)

type ExpiredBookingSource interface {
	GetExpiredPendingBookings(cutoff time.Time) ([]models.Booking, error)
}

type IntentCanceller interface {
	CancelIntent(secretKey, intentID string) error
}

// TimeoutSweeper cancels bookings stuck in pending_payment beyond the
// timeout. By this point a payment that never completed is presumed abandoned
// rather than merely slow to reconcile, so the sweep window is deliberately
// longer than the reconciliation threshold.
type TimeoutSweeper struct {
	Bookings    ExpiredBookingSource
	Transitions BookingTransitions
	Payments    storage.Store
	Credentials CredentialSource
	Gateway     IntentCanceller
	Settler     *Settler
	Audit       AuditSink
	Timeout     time.Duration
	Logger      *logger.Logger
}

// Run sweeps expired pending bookings with per-item isolation and returns the
// count of bookings successfully processed.
func (t *TimeoutSweeper) Run() (int, error) {
	cutoff := time.Now().Add(-t.Timeout)
	bookings, err := t.Bookings.GetExpiredPendingBookings(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to load expired pending bookings: %w", err)
	}

	t.Logger.LogJob("payment_timeout", fmt.Sprintf("found %d bookings pending payment since before %s",
		len(bookings), cutoff.UTC().Format(time.RFC3339)))

	processed := 0
	for i := range bookings {
		if err := t.sweepOne(&bookings[i]); err != nil {
			metrics.JobErrors.WithLabelValues("payment_timeout").Inc()
			t.Logger.Error("JOB", fmt.Sprintf("timeout sweep failed for booking %s: %v", bookings[i].ID, err))
			continue
		}
		metrics.BookingsTimedOut.Inc()
		processed++
	}

	t.Logger.LogJob("payment_timeout", fmt.Sprintf("processed %d of %d", processed, len(bookings)))
	return processed, nil
}

func (t *TimeoutSweeper) sweepOne(booking *models.Booking) error {
	payment, err := t.Payments.GetPaymentByBookingID(booking.VenueID, booking.ID)
	if err != nil {
		// A transient lookup failure must not cancel the booking with its
		// payment row left pending forever; leave the item for the next run.
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("payment lookup failed for booking %s: %w", booking.ID, err)
		}
		// No payment row was ever written; cancel the booking directly.
		if _, cancelErr := t.Transitions.CancelBooking(booking.VenueID, booking.ID); cancelErr != nil {
			return cancelErr
		}
		if auditErr := t.Audit.Record(booking.ID, booking.VenueID, "status",
			string(models.BookingPendingPayment), string(models.BookingCancelled),
			models.AuditSourceTimeoutHandler); auditErr != nil {
			t.Logger.Warn("JOB", fmt.Sprintf("audit write failed for booking %s: %v", booking.ID, auditErr))
		}
		return nil
	}

	if err := t.Settler.SettleFailure(payment, "Payment timeout", models.AuditSourceTimeoutHandler); err != nil {
		return err
	}

	// Best-effort abandon of the Stripe intent so the guest is never charged
	// after the booking is gone.
	if payment.PaymentIntentID != "" {
		settings, err := t.Credentials.GetVenueStripeSettings(booking.VenueID)
		if err == nil && settings.SecretKey() != "" {
			if err := t.Gateway.CancelIntent(settings.SecretKey(), payment.PaymentIntentID); err != nil {
				t.Logger.Warn("JOB", fmt.Sprintf("failed to cancel intent %s for timed-out booking %s: %v",
					payment.PaymentIntentID, booking.ID, err))
			}
		}
	}

	return nil
}

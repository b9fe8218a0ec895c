package jobs

import (
	"fmt"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/storage"
)

type BookingTransitions interface {
	ConfirmBooking(venueID, id string) (*models.Booking, error)
	CancelBooking(venueID, id string) (*models.Booking, error)
}

type AuditSink interface {
	Record(bookingID, venueID, changeType, oldValue, newValue, source string) error
}

type ConfirmationSender interface {
	SendBookingConfirmation(booking *models.Booking) error
}

// Settler applies the authoritative payment outcome to the local records.
// Both the Stripe webhook and the reconciliation job funnel through it, so
// the webhook-vs-poll race resolves on the pending-status precondition:
// whichever path arrives second finds the payment already settled and does
// nothing.
type Settler struct {
	Bookings BookingTransitions
	Payments storage.Store
	Audit    AuditSink
	Mailer   ConfirmationSender
	Logger   *logger.Logger
}

// SettleSuccess marks the payment succeeded and confirms the booking.
// A payment that is no longer pending is a no-op.
func (s *Settler) SettleSuccess(payment *models.BookingPayment, source string) error {
	if payment.Status != models.PaymentPending {
		s.Logger.Debug("SETTLE", fmt.Sprintf("payment %s already %s, skipping", payment.ID, payment.Status))
		return nil
	}

	payment.Status = models.PaymentSucceeded
	if err := s.Payments.UpdatePayment(payment); err != nil {
		return err
	}

	booking, err := s.Bookings.ConfirmBooking(payment.VenueID, payment.BookingID)
	if err != nil {
		return fmt.Errorf("payment %s succeeded but booking confirm failed: %w", payment.ID, err)
	}

	if err := s.Audit.Record(payment.BookingID, payment.VenueID, "status",
		string(models.BookingPendingPayment), string(models.BookingConfirmed), source); err != nil {
		s.Logger.Warn("SETTLE", fmt.Sprintf("audit write failed for booking %s: %v", payment.BookingID, err))
	}

	// Confirmation email is fire-and-forget.
	go func(b models.Booking) {
		if err := s.Mailer.SendBookingConfirmation(&b); err != nil {
			s.Logger.Warn("SETTLE", fmt.Sprintf("confirmation email failed for booking %s: %v", b.ID, err))
		}
	}(*booking)

	s.Logger.Info("SETTLE", fmt.Sprintf("Payment %s settled as succeeded (source=%s), booking %s confirmed",
		payment.ID, source, payment.BookingID))
	return nil
}

// SettleFailure marks the payment failed with the given reason and cancels
// the booking. Idempotent on the pending-status precondition.
func (s *Settler) SettleFailure(payment *models.BookingPayment, reason, source string) error {
	if payment.Status != models.PaymentPending {
		s.Logger.Debug("SETTLE", fmt.Sprintf("payment %s already %s, skipping", payment.ID, payment.Status))
		return nil
	}

	payment.Status = models.PaymentFailed
	payment.FailureReason = reason
	if err := s.Payments.UpdatePayment(payment); err != nil {
		return err
	}

	if _, err := s.Bookings.CancelBooking(payment.VenueID, payment.BookingID); err != nil {
		return fmt.Errorf("payment %s failed but booking cancel failed: %w", payment.ID, err)
	}

	if err := s.Audit.Record(payment.BookingID, payment.VenueID, "status",
		string(models.BookingPendingPayment), string(models.BookingCancelled), source); err != nil {
		s.Logger.Warn("SETTLE", fmt.Sprintf("audit write failed for booking %s: %v", payment.BookingID, err))
	}

	s.Logger.Info("SETTLE", fmt.Sprintf("Payment %s settled as failed (%s, source=%s), booking %s cancelled",
		payment.ID, reason, source, payment.BookingID))
	return nil
}

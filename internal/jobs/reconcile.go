package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"

	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/storage"
)

type CredentialSource interface {
	GetVenueStripeSettings(venueID string) (*models.VenueStripeSettings, error)
}

type IntentRetriever interface {
	RetrieveIntent(secretKey, intentID string) (*stripe.PaymentIntent, error)
}

// Reconciler corrects drift between locally recorded payment status and
// Stripe's authoritative state, for payments pending longer than the
// threshold (comfortably beyond normal webhook latency). Re-running it is a
// no-op for already-settled payments.
type Reconciler struct {
	Payments    storage.Store
	Credentials CredentialSource
	Gateway     IntentRetriever
	Settler     *Settler
	Threshold   time.Duration
	Logger      *logger.Logger
}

// Run processes the batch sequentially. Per-item errors are logged and
// counted but never abort the batch; the return value is the number of items
// successfully processed.
func (r *Reconciler) Run() (int, error) {
	cutoff := time.Now().Add(-r.Threshold)
	items, err := r.Payments.ListStalePending(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to load stale pending payments: %w", err)
	}

	r.Logger.LogJob("payment_reconciliation", fmt.Sprintf("found %d payments pending since before %s",
		len(items), cutoff.UTC().Format(time.RFC3339)))

	processed := 0
	for _, item := range items {
		if err := r.reconcileOne(item); err != nil {
			metrics.JobErrors.WithLabelValues("payment_reconciliation").Inc()
			r.Logger.Error("JOB", fmt.Sprintf("reconciliation failed for payment %s: %v", item.Payment.ID, err))
			continue
		}
		processed++
	}

	r.Logger.LogJob("payment_reconciliation", fmt.Sprintf("processed %d of %d", processed, len(items)))
	return processed, nil
}

func (r *Reconciler) reconcileOne(item models.PendingPayment) error {
	payment := item.Payment

	if payment.PaymentIntentID == "" {
		// Nothing to reconcile against; the timeout sweeper will pick it up.
		return errors.New("payment has no intent id")
	}

	settings, err := r.Credentials.GetVenueStripeSettings(payment.VenueID)
	if err != nil {
		return fmt.Errorf("failed to load credentials for venue %s: %w", payment.VenueID, err)
	}
	secretKey := settings.SecretKey()
	if secretKey == "" {
		return fmt.Errorf("venue %s has no stripe credentials", payment.VenueID)
	}

	intent, err := r.Gateway.RetrieveIntent(secretKey, payment.PaymentIntentID)
	if err != nil {
		return err
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		if err := r.Settler.SettleSuccess(payment, models.AuditSourceReconciliation); err != nil {
			return err
		}
		metrics.PaymentsReconciled.WithLabelValues("succeeded").Inc()
	case stripe.PaymentIntentStatusCanceled:
		if err := r.Settler.SettleFailure(payment, "Payment canceled at processor", models.AuditSourceReconciliation); err != nil {
			return err
		}
		metrics.PaymentsReconciled.WithLabelValues("failed").Inc()
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			// The attempt failed; by reconciliation time the guest is gone.
			if err := r.Settler.SettleFailure(payment, "Payment failed at processor", models.AuditSourceReconciliation); err != nil {
				return err
			}
			metrics.PaymentsReconciled.WithLabelValues("failed").Inc()
		}
		// No attempt was ever made: leave for the timeout sweeper.
	default:
		// Still processing or awaiting confirmation; retry on the next run.
		r.Logger.Debug("JOB", fmt.Sprintf("payment %s intent status %s, leaving for next run", payment.ID, intent.Status))
	}

	return nil
}

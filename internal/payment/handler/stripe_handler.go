package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-booking/internal/jobs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/storage"
)

// WebhookError carries an HTTP status code plus a public error message safe
// to return to Stripe, with the detailed error kept for logs only.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// StripeWebhookHandler processes payment_intent events. It shares the Settler
// with the reconciliation job, so a webhook arriving after (or racing with)
// a reconciliation run is a no-op on the pending-status precondition.
type StripeWebhookHandler struct {
	Payments      storage.Store
	Settler       *jobs.Settler
	WebhookSecret string
	Logger        *logger.Logger
}

func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := h.process(r); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("failed to process webhook: %v", err))
		if webhookErr, ok := err.(*WebhookError); ok {
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}
		http.Error(w, "Webhook processing error", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) process(r *http.Request) error {
	if h.WebhookSecret == "" {
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret, opts)
	if err != nil {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	h.Logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "payment_intent.succeeded":
		intent, werr := h.unmarshalIntent(event)
		if werr != nil {
			return werr
		}
		payment, werr := h.lookupPayment(intent)
		if werr != nil {
			return werr
		}
		if err := h.Settler.SettleSuccess(payment, models.AuditSourceStripeWebhook); err != nil {
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process payment",
				InternalError: fmt.Sprintf("Failed to settle payment %s: %v", payment.ID, err),
				OriginalErr:   err,
			}
		}

	case "payment_intent.payment_failed", "payment_intent.canceled":
		intent, werr := h.unmarshalIntent(event)
		if werr != nil {
			return werr
		}
		payment, werr := h.lookupPayment(intent)
		if werr != nil {
			return werr
		}
		reason := "Payment failed"
		if event.Type == "payment_intent.canceled" {
			reason = "Payment canceled"
		} else if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			reason = intent.LastPaymentError.Msg
		}
		if err := h.Settler.SettleFailure(payment, reason, models.AuditSourceStripeWebhook); err != nil {
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process payment failure",
				InternalError: fmt.Sprintf("Failed to settle payment %s: %v", payment.ID, err),
				OriginalErr:   err,
			}
		}

	default:
		h.Logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	return nil
}

func (h *StripeWebhookHandler) unmarshalIntent(event stripe.Event) (*stripe.PaymentIntent, *WebhookError) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
			OriginalErr:   err,
		}
	}
	return &intent, nil
}

func (h *StripeWebhookHandler) lookupPayment(intent *stripe.PaymentIntent) (*models.BookingPayment, *WebhookError) {
	payment, err := h.Payments.GetPaymentByIntentID(intent.ID)
	if err != nil {
		return nil, &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Unknown payment intent",
			InternalError: fmt.Sprintf("No payment recorded for intent %s: %v", intent.ID, err),
			OriginalErr:   err,
		}
	}
	return payment, nil
}

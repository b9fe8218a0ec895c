package payment

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-booking/internal/logger"
)

// StripeGateway talks to Stripe with per-venue credentials. Venues run in
// test or live mode independently, so a fresh client is initialised per call
// instead of setting the package-level key.
type StripeGateway struct {
	Logger *logger.Logger
}

func NewStripeGateway(log *logger.Logger) *StripeGateway {
	return &StripeGateway{Logger: log}
}

func (g *StripeGateway) api(secretKey string) *client.API {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return sc
}

// CreateIntent creates a payment intent carrying the booking and venue ids in
// metadata so webhook events can be routed back to the booking.
func (g *StripeGateway) CreateIntent(secretKey string, amountCents int64, currency, bookingID, venueID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("booking_id", bookingID)
	params.AddMetadata("venue_id", venueID)

	intent, err := g.api(secretKey).PaymentIntents.New(params)
	if err != nil {
		g.Logger.Error("PAYMENT", fmt.Sprintf("Failed to create Stripe payment intent: %v", err))
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	g.Logger.Info("PAYMENT", fmt.Sprintf("Created payment intent %s for booking %s (%d %s)", intent.ID, bookingID, amountCents, currency))
	return intent, nil
}

// RetrieveIntent fetches the authoritative state of an intent.
func (g *StripeGateway) RetrieveIntent(secretKey, intentID string) (*stripe.PaymentIntent, error) {
	intent, err := g.api(secretKey).PaymentIntents.Get(intentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", intentID, err)
	}
	return intent, nil
}

// CancelIntent abandons an intent whose booking timed out.
func (g *StripeGateway) CancelIntent(secretKey, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	if _, err := g.api(secretKey).PaymentIntents.Cancel(intentID, params); err != nil {
		g.Logger.Error("PAYMENT", fmt.Sprintf("Failed to cancel payment intent %s: %v", intentID, err))
		return fmt.Errorf("failed to cancel payment intent: %w", err)
	}
	g.Logger.Info("PAYMENT", fmt.Sprintf("Cancelled payment intent %s", intentID))
	return nil
}

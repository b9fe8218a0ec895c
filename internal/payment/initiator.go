package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/storage"
)

type IntentCreator interface {
	CreateIntent(secretKey string, amountCents int64, currency, bookingID, venueID string) (*stripe.PaymentIntent, error)
}

var ErrNoStripeCredentials = errors.New("venue has no stripe credentials configured")

// Initiator opens the payment leg of a booking: it creates the Stripe intent
// with the venue's own credentials and records the pending BookingPayment.
type Initiator struct {
	Store    storage.Store
	Settings SettingsStore
	Gateway  IntentCreator
	Currency string
	Logger   *logger.Logger
}

func NewInitiator(store storage.Store, settings SettingsStore, gateway IntentCreator, currency string, log *logger.Logger) *Initiator {
	if currency == "" {
		currency = "usd"
	}
	return &Initiator{Store: store, Settings: settings, Gateway: gateway, Currency: currency, Logger: log}
}

func (i *Initiator) InitiatePayment(booking models.Booking, decision models.ChargeDecision) (*models.BookingPayment, string, error) {
	settings, err := i.Settings.GetVenueStripeSettings(booking.VenueID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load venue stripe settings: %w", err)
	}
	secretKey := settings.SecretKey()
	if secretKey == "" {
		return nil, "", ErrNoStripeCredentials
	}

	intent, err := i.Gateway.CreateIntent(secretKey, decision.AmountCents, i.Currency, booking.ID, booking.VenueID)
	if err != nil {
		return nil, "", err
	}

	payment := &models.BookingPayment{
		ID:              uuid.NewString(),
		BookingID:       booking.ID,
		VenueID:         booking.VenueID,
		PaymentIntentID: intent.ID,
		Status:          models.PaymentPending,
		AmountCents:     decision.AmountCents,
		Currency:        i.Currency,
		CreatedAt:       time.Now(),
	}
	if err := i.Store.SavePayment(payment); err != nil {
		return nil, "", err
	}

	i.Logger.Info("PAYMENT", fmt.Sprintf("Initiated payment %s (intent %s) for booking %s", payment.ID, intent.ID, booking.ID))
	return payment, intent.ClientSecret, nil
}

package payment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// SettingsStore is the read side the calculator needs: service charge
// settings and the venue-wide fallback configuration.
type SettingsStore interface {
	GetServiceWithRules(venueID, serviceID string) (*models.Service, error)
	GetVenueStripeSettings(venueID string) (*models.VenueStripeSettings, error)
}

const defaultRefundWindowHours = 24

// Calculator decides whether a booking must be charged and how much.
// Service-level settings override venue-level settings; the venue level only
// applies when the service itself does not require payment.
type Calculator struct {
	Store  SettingsStore
	Logger *logger.Logger
}

func NewCalculator(store SettingsStore, log *logger.Logger) *Calculator {
	return &Calculator{Store: store, Logger: log}
}

// Calculate never fails: a settings lookup error degrades to a
// ShouldCharge=false decision tagged ChargeError, which callers must treat as
// "do not charge".
func (c *Calculator) Calculate(venueID, serviceID string, partySize int) models.ChargeDecision {
	if serviceID == "" {
		settings, err := c.Store.GetVenueStripeSettings(venueID)
		if err != nil {
			return c.errorDecision(venueID, err)
		}
		return c.venueDecision(settings, partySize)
	}

	service, err := c.Store.GetServiceWithRules(venueID, serviceID)
	if err != nil {
		return c.errorDecision(venueID, err)
	}

	if service.RequiresPayment {
		return c.serviceDecision(service, partySize)
	}

	settings, err := c.Store.GetVenueStripeSettings(venueID)
	if err != nil {
		return c.errorDecision(venueID, err)
	}
	return c.venueDecision(settings, partySize)
}

func (c *Calculator) serviceDecision(service *models.Service, partySize int) models.ChargeDecision {
	refundWindow := service.RefundWindowHours
	if refundWindow <= 0 {
		refundWindow = defaultRefundWindowHours
	}

	switch service.ChargeType {
	case models.ChargeLargeGroups:
		if partySize < service.MinimumGuestsForCharge {
			return models.ChargeDecision{
				ShouldCharge:      false,
				ChargeType:        service.ChargeType,
				Description:       fmt.Sprintf("Party of %d below large-group minimum of %d", partySize, service.MinimumGuestsForCharge),
				RefundWindowHours: refundWindow,
				AutoRefundEnabled: service.AutoRefundEnabled,
			}
		}
		return models.ChargeDecision{
			ShouldCharge:      true,
			AmountCents:       perGuestTotal(service.ChargeAmountPerGuest, partySize),
			ChargeType:        service.ChargeType,
			Description:       fmt.Sprintf("Large group charge for %d guests, %s", partySize, service.Title),
			RefundWindowHours: refundWindow,
			AutoRefundEnabled: service.AutoRefundEnabled,
		}
	default:
		// all_reservations, per_guest and anything unrecognised all charge
		// every reservation (permissive default).
		return models.ChargeDecision{
			ShouldCharge:      true,
			AmountCents:       perGuestTotal(service.ChargeAmountPerGuest, partySize),
			ChargeType:        service.ChargeType,
			Description:       fmt.Sprintf("Payment for %d guests, %s", partySize, service.Title),
			RefundWindowHours: refundWindow,
			AutoRefundEnabled: service.AutoRefundEnabled,
		}
	}
}

// venueDecision replicates the service branches at venue scope. The venue
// fallback carries no refund policy of its own.
func (c *Calculator) venueDecision(settings *models.VenueStripeSettings, partySize int) models.ChargeDecision {
	if !settings.ChargeActive {
		return models.ChargeDecision{
			ShouldCharge:      false,
			Description:       "No payment required",
			RefundWindowHours: defaultRefundWindowHours,
		}
	}

	switch settings.ChargeType {
	case models.ChargeLargeGroups:
		if partySize < settings.MinimumGuestsForCharge {
			return models.ChargeDecision{
				ShouldCharge:      false,
				ChargeType:        settings.ChargeType,
				Description:       fmt.Sprintf("Party of %d below large-group minimum of %d", partySize, settings.MinimumGuestsForCharge),
				RefundWindowHours: defaultRefundWindowHours,
			}
		}
		return models.ChargeDecision{
			ShouldCharge:      true,
			AmountCents:       perGuestTotal(settings.ChargeAmountPerGuest, partySize),
			ChargeType:        settings.ChargeType,
			Description:       fmt.Sprintf("Venue large group charge for %d guests", partySize),
			RefundWindowHours: defaultRefundWindowHours,
		}
	default:
		return models.ChargeDecision{
			ShouldCharge:      true,
			AmountCents:       perGuestTotal(settings.ChargeAmountPerGuest, partySize),
			ChargeType:        settings.ChargeType,
			Description:       fmt.Sprintf("Venue charge for %d guests", partySize),
			RefundWindowHours: defaultRefundWindowHours,
		}
	}
}

func (c *Calculator) errorDecision(venueID string, err error) models.ChargeDecision {
	c.Logger.Error("PAYMENT", fmt.Sprintf("charge settings lookup failed for venue %s: %v", venueID, err))
	return models.ChargeDecision{
		ShouldCharge:      false,
		ChargeType:        models.ChargeError,
		Description:       "Payment configuration unavailable",
		RefundWindowHours: defaultRefundWindowHours,
	}
}

func perGuestTotal(amountPerGuestCents int64, partySize int) int64 {
	return decimal.NewFromInt(amountPerGuestCents).
		Mul(decimal.NewFromInt(int64(partySize))).
		IntPart()
}

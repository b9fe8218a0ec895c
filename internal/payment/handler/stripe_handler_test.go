package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/jobs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

type stubStore struct {
	payments map[string]*models.BookingPayment
}

func (s *stubStore) SavePayment(payment *models.BookingPayment) error {
	s.payments[payment.ID] = payment
	return nil
}

func (s *stubStore) GetPaymentByBookingID(venueID, bookingID string) (*models.BookingPayment, error) {
	for _, p := range s.payments {
		if p.VenueID == venueID && p.BookingID == bookingID {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStore) GetPaymentByIntentID(intentID string) (*models.BookingPayment, error) {
	for _, p := range s.payments {
		if p.PaymentIntentID == intentID {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStore) UpdatePayment(payment *models.BookingPayment) error {
	s.payments[payment.ID] = payment
	return nil
}

func (s *stubStore) ListStalePending(cutoff time.Time) ([]models.PendingPayment, error) {
	return nil, nil
}

type stubTransitions struct {
	bookings  map[string]*models.Booking
	confirmed []string
	cancelled []string
}

func (s *stubTransitions) ConfirmBooking(venueID, id string) (*models.Booking, error) {
	booking, exists := s.bookings[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	booking.Status = models.BookingConfirmed
	s.confirmed = append(s.confirmed, id)
	return booking, nil
}

func (s *stubTransitions) CancelBooking(venueID, id string) (*models.Booking, error) {
	booking, exists := s.bookings[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	booking.Status = models.BookingCancelled
	s.cancelled = append(s.cancelled, id)
	return booking, nil
}

type stubAudit struct {
	records []string
}

func (s *stubAudit) Record(bookingID, venueID, changeType, oldValue, newValue, source string) error {
	s.records = append(s.records, bookingID+":"+newValue+":"+source)
	return nil
}

type stubMailer struct{}

func (stubMailer) SendBookingConfirmation(booking *models.Booking) error { return nil }

type webhookEnv struct {
	store       *stubStore
	transitions *stubTransitions
	audit       *stubAudit
	handler     *StripeWebhookHandler
}

func newWebhookEnv(t *testing.T) *webhookEnv {
	t.Helper()
	env := &webhookEnv{
		store:       &stubStore{payments: make(map[string]*models.BookingPayment)},
		transitions: &stubTransitions{bookings: make(map[string]*models.Booking)},
		audit:       &stubAudit{},
	}
	settler := &jobs.Settler{
		Bookings: env.transitions,
		Payments: env.store,
		Audit:    env.audit,
		Mailer:   stubMailer{},
		Logger:   logger.NewLogger(),
	}
	env.handler = &StripeWebhookHandler{
		Payments:      env.store,
		Settler:       settler,
		WebhookSecret: testWebhookSecret,
		Logger:        logger.NewLogger(),
	}
	return env
}

func (e *webhookEnv) seedPendingPayment(bookingID, intentID string) *models.BookingPayment {
	payment := &models.BookingPayment{
		ID:              "pay-" + bookingID,
		BookingID:       bookingID,
		VenueID:         "venue-1",
		PaymentIntentID: intentID,
		Status:          models.PaymentPending,
		AmountCents:     4000,
		Currency:        "usd",
		CreatedAt:       time.Now(),
	}
	e.store.payments[payment.ID] = payment
	e.transitions.bookings[bookingID] = &models.Booking{
		ID: bookingID, VenueID: "venue-1", Status: models.BookingPendingPayment,
	}
	return payment
}

// signPayload produces the Stripe-Signature header value for a payload the
// way Stripe signs deliveries: v1 is an HMAC-SHA256 of "<timestamp>.<body>".
func signPayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func intentEvent(eventType, intentID, extra string) []byte {
	object := fmt.Sprintf(`{"id":%q%s}`, intentID, extra)
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":%q,"data":{"object":%s}}`, eventType, object))
}

func deliver(t *testing.T, h *StripeWebhookHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newWebhookEnv(t)
	payment := env.seedPendingPayment("b1", "pi_1")
	payload := intentEvent("payment_intent.succeeded", "pi_1", "")

	rec := deliver(t, env.handler, payload, signPayload("whsec_wrong", payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid webhook signature")
	assert.Equal(t, models.PaymentPending, payment.Status, "unverified delivery settles nothing")
	assert.Empty(t, env.transitions.confirmed)
}

func TestWebhookRejectsMissingSecret(t *testing.T) {
	env := newWebhookEnv(t)
	env.handler.WebhookSecret = ""
	payload := intentEvent("payment_intent.succeeded", "pi_1", "")

	rec := deliver(t, env.handler, payload, signPayload(testWebhookSecret, payload))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookUnknownIntent(t *testing.T) {
	env := newWebhookEnv(t)
	payload := intentEvent("payment_intent.succeeded", "pi_unknown", "")

	rec := deliver(t, env.handler, payload, signPayload(testWebhookSecret, payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown payment intent")
}

func TestWebhookSucceededConfirmsBooking(t *testing.T) {
	env := newWebhookEnv(t)
	payment := env.seedPendingPayment("b1", "pi_1")
	payload := intentEvent("payment_intent.succeeded", "pi_1", "")

	rec := deliver(t, env.handler, payload, signPayload(testWebhookSecret, payload))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	assert.Equal(t, []string{"b1"}, env.transitions.confirmed)
	require.Len(t, env.audit.records, 1)
	assert.Contains(t, env.audit.records[0], models.AuditSourceStripeWebhook)
}

func TestWebhookFailedCancelsBookingWithReason(t *testing.T) {
	env := newWebhookEnv(t)
	payment := env.seedPendingPayment("b1", "pi_1")
	payload := intentEvent("payment_intent.payment_failed", "pi_1",
		`,"last_payment_error":{"message":"Your card was declined."}`)

	rec := deliver(t, env.handler, payload, signPayload(testWebhookSecret, payload))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Equal(t, "Your card was declined.", payment.FailureReason)
	assert.Equal(t, []string{"b1"}, env.transitions.cancelled)
}

func TestWebhookCanceledIntent(t *testing.T) {
	env := newWebhookEnv(t)
	payment := env.seedPendingPayment("b1", "pi_1")
	payload := intentEvent("payment_intent.canceled", "pi_1", "")

	rec := deliver(t, env.handler, payload, signPayload(testWebhookSecret, payload))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Equal(t, "Payment canceled", payment.FailureReason)
}

func TestWebhookIgnoresUnhandledEvents(t *testing.T) {
	env := newWebhookEnv(t)
	payment := env.seedPendingPayment("b1", "pi_1")
	payload := intentEvent("charge.refunded", "pi_1", "")

	rec := deliver(t, env.handler, payload, signPayload(testWebhookSecret, payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PaymentPending, payment.Status)
}

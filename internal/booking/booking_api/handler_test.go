package booking_api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Minimal in-memory fakes behind the service interfaces.

type fakeDB struct {
	bookings map[string]*models.Booking
}

func (f *fakeDB) CreateBooking(booking models.Booking) error {
	f.bookings[booking.ID] = &booking
	return nil
}

func (f *fakeDB) GetBookingByID(venueID, id string) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok || b.VenueID != venueID {
		return nil, errors.New("booking not found")
	}
	copied := *b
	return &copied, nil
}

func (f *fakeDB) UpdateBooking(booking models.Booking) error {
	f.bookings[booking.ID] = &booking
	return nil
}

func (f *fakeDB) GetActiveBookingsForTables(venueID, date string, tableIDs []string) ([]models.Booking, error) {
	var result []models.Booking
	for _, b := range f.bookings {
		if b.VenueID != venueID || b.Date != date {
			continue
		}
		if b.Status == models.BookingCancelled || b.Status == models.BookingFinished {
			continue
		}
		for _, id := range tableIDs {
			if b.TableID == id {
				result = append(result, *b)
				break
			}
		}
	}
	return result, nil
}

func (f *fakeDB) GetBlocksForDate(venueID, date string) ([]models.Block, error) {
	return nil, nil
}

func (f *fakeDB) GetServiceWithRules(venueID, serviceID string) (*models.Service, error) {
	return nil, errors.New("service not found")
}

func (f *fakeDB) CreateBlock(block models.Block) error { return nil }

type fakeLocks struct{}

func (fakeLocks) LockSlot(venueID, tableID, date, startTime, bookingID string) (bool, error) {
	return true, nil
}
func (fakeLocks) UnlockSlot(venueID, tableID, date, startTime, bookingID string) error { return nil }

type fakeEvents struct{}

func (fakeEvents) PublishBookingCreated(models.Booking) error   { return nil }
func (fakeEvents) PublishBookingConfirmed(models.Booking) error { return nil }
func (fakeEvents) PublishBookingCancelled(models.Booking) error { return nil }

type fakeCharges struct{}

func (fakeCharges) Calculate(venueID, serviceID string, partySize int) models.ChargeDecision {
	return models.ChargeDecision{ShouldCharge: false}
}

type fakePayments struct{}

func (fakePayments) InitiatePayment(models.Booking, models.ChargeDecision) (*models.BookingPayment, string, error) {
	return nil, "", nil
}

type fakeAudit struct {
	entries map[string][]models.BookingAudit
}

func (f *fakeAudit) ListForBooking(venueID, bookingID string) ([]models.BookingAudit, error) {
	return f.entries[venueID+"/"+bookingID], nil
}

func setupRouter(t *testing.T) (*chi.Mux, *fakeDB) {
	t.Helper()
	router, db, _ := setupRouterWithAudit(t)
	return router, db
}

func setupRouterWithAudit(t *testing.T) (*chi.Mux, *fakeDB, *fakeAudit) {
	t.Helper()
	db := &fakeDB{bookings: make(map[string]*models.Booking)}
	audits := &fakeAudit{entries: make(map[string][]models.BookingAudit)}
	service := booking.NewBookingService(db, fakeLocks{}, fakeEvents{}, fakeCharges{}, fakePayments{}, logger.NewLogger(), false)
	handler := NewHandler(service, audits, logger.NewLogger())

	r := chi.NewRouter()
	r.Route("/api/venues/{venueId}", handler.RegisterRoutes)
	return r, db, audits
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/venues/venue-1/bookings", models.BookingRequest{
		TableID:   "table-1",
		Date:      "2026-09-01",
		StartTime: "18:00",
		PartySize: 4,
		GuestName: "Ada",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "venue-1", resp.Booking.VenueID)
	assert.Equal(t, models.BookingConfirmed, resp.Booking.Status)
	assert.False(t, resp.ChargeApplied)
}

func TestCreateBookingConflictReturns409(t *testing.T) {
	router, db := setupRouter(t)
	db.bookings["existing"] = &models.Booking{
		ID: "existing", VenueID: "venue-1", TableID: "table-1",
		Date: "2026-09-01", StartTime: "18:00", DurationMinutes: 120,
		PartySize: 2, GuestName: "Early Bird", Status: models.BookingConfirmed,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/venues/venue-1/bookings", models.BookingRequest{
		TableID:   "table-1",
		Date:      "2026-09-01",
		StartTime: "17:30",
		PartySize: 2,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// The body is the conflict result, so the client can offer the gap.
	var result models.ConflictResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.HasConflict)
	assert.Equal(t, 30, result.MaxAvailableDuration)
	require.NotNil(t, result.Conflicting)
	assert.Equal(t, "existing", result.Conflicting.ID)
}

func TestAvailabilityCheckEndpoint(t *testing.T) {
	router, db := setupRouter(t)
	db.bookings["existing"] = &models.Booking{
		ID: "existing", VenueID: "venue-1", TableID: "table-1",
		Date: "2026-09-01", StartTime: "18:00", DurationMinutes: 120,
		PartySize: 2, Status: models.BookingConfirmed,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/venues/venue-1/availability/check", models.AvailabilityRequest{
		TableIDs:        []string{"table-1"},
		Date:            "2026-09-01",
		StartTime:       "17:00",
		DurationMinutes: 90,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ConflictResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.HasConflict)
	assert.Equal(t, 60, result.MaxAvailableDuration)
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	router, db := setupRouter(t)
	db.bookings["b1"] = &models.Booking{
		ID: "b1", VenueID: "venue-1", TableID: "table-1",
		Date: "2026-09-01", StartTime: "18:00", DurationMinutes: 90,
		PartySize: 2, Status: models.BookingConfirmed,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/venues/venue-1/bookings/b1/seat", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/venues/venue-1/bookings/b1/finish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var final models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Equal(t, models.BookingFinished, final.Status)
}

func TestInvalidTransitionReturns409(t *testing.T) {
	router, db := setupRouter(t)
	db.bookings["b1"] = &models.Booking{
		ID: "b1", VenueID: "venue-1", Status: models.BookingFinished,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/venues/venue-1/bookings/b1/seat", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetBookingNotFound(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/venues/venue-1/bookings/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBookingAuditEndpoint(t *testing.T) {
	router, _, audits := setupRouterWithAudit(t)
	audits.entries["venue-1/b1"] = []models.BookingAudit{
		{ID: "a1", BookingID: "b1", VenueID: "venue-1", ChangeType: "status_change",
			OldValue: "pending_payment", NewValue: "confirmed", Source: models.AuditSourceStripeWebhook},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/venues/venue-1/bookings/b1/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.BookingAudit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "confirmed", entries[0].NewValue)
	assert.Equal(t, models.AuditSourceStripeWebhook, entries[0].Source)
}

func TestGetBookingAuditEmptyTrail(t *testing.T) {
	router, _, _ := setupRouterWithAudit(t)

	req := httptest.NewRequest(http.MethodGet, "/api/venues/venue-1/bookings/b1/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListBlocksRequiresDate(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/venues/venue-1/blocks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

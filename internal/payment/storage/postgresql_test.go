package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

func setupTestStore(t *testing.T) *BunStore {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.BookingPayment)(nil),
		(*models.Booking)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, model))
	}

	return NewBunStore(bunDB, logger.NewLogger())
}

func samplePayment(id, bookingID, intentID string, status models.PaymentStatus, age time.Duration) *models.BookingPayment {
	return &models.BookingPayment{
		ID:              id,
		BookingID:       bookingID,
		VenueID:         "venue-1",
		PaymentIntentID: intentID,
		Status:          status,
		AmountCents:     4000,
		Currency:        "usd",
		CreatedAt:       time.Now().Add(-age),
	}
}

func seedBookingRow(t *testing.T, store *BunStore, id string) {
	t.Helper()
	booking := &models.Booking{
		ID: id, VenueID: "venue-1", TableID: "table-1",
		Date: "2026-09-01", StartTime: "18:00", DurationMinutes: 120,
		PartySize: 4, Status: models.BookingPendingPayment,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	_, err := store.Bun.NewInsert().Model(booking).Exec(context.Background())
	require.NoError(t, err)
}

func TestSaveAndGetPaymentByBookingID(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SavePayment(samplePayment("pay-1", "bk-1", "pi_1", models.PaymentPending, time.Minute)))

	retrieved, err := store.GetPaymentByBookingID("venue-1", "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", retrieved.ID)
	assert.Equal(t, models.PaymentPending, retrieved.Status)
	assert.Equal(t, int64(4000), retrieved.AmountCents)

	// Venue scoping: the payment is invisible under another venue.
	_, err = store.GetPaymentByBookingID("venue-2", "bk-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGetPaymentByBookingIDNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetPaymentByBookingID("venue-1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGetPaymentByIntentID(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SavePayment(samplePayment("pay-1", "bk-1", "pi_1", models.PaymentPending, time.Minute)))

	retrieved, err := store.GetPaymentByIntentID("pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", retrieved.ID)

	_, err = store.GetPaymentByIntentID("pi_unknown")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdatePaymentWritesSettlementColumns(t *testing.T) {
	store := setupTestStore(t)
	payment := samplePayment("pay-1", "bk-1", "pi_1", models.PaymentPending, time.Minute)
	require.NoError(t, store.SavePayment(payment))

	payment.Status = models.PaymentFailed
	payment.FailureReason = "Payment timeout"
	payment.AmountCents = 9999 // not in the update column list
	require.NoError(t, store.UpdatePayment(payment))

	retrieved, err := store.GetPaymentByBookingID("venue-1", "bk-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, retrieved.Status)
	assert.Equal(t, "Payment timeout", retrieved.FailureReason)
	assert.False(t, retrieved.UpdatedAt.IsZero(), "updated_at is set")
	assert.Equal(t, int64(4000), retrieved.AmountCents, "amount is immutable after creation")
}

func TestListStalePendingFilters(t *testing.T) {
	store := setupTestStore(t)
	seedBookingRow(t, store, "bk-old")
	seedBookingRow(t, store, "bk-older")
	seedBookingRow(t, store, "bk-fresh")
	seedBookingRow(t, store, "bk-settled")

	require.NoError(t, store.SavePayment(samplePayment("pay-old", "bk-old", "pi_old", models.PaymentPending, 10*time.Minute)))
	require.NoError(t, store.SavePayment(samplePayment("pay-older", "bk-older", "pi_older", models.PaymentPending, 20*time.Minute)))
	require.NoError(t, store.SavePayment(samplePayment("pay-fresh", "bk-fresh", "pi_fresh", models.PaymentPending, time.Minute)))
	require.NoError(t, store.SavePayment(samplePayment("pay-settled", "bk-settled", "pi_settled", models.PaymentSucceeded, 20*time.Minute)))

	stale, err := store.ListStalePending(time.Now().Add(-5 * time.Minute))
	require.NoError(t, err)

	// Only pending payments past the cutoff, oldest first.
	require.Len(t, stale, 2)
	assert.Equal(t, "pay-older", stale[0].Payment.ID)
	assert.Equal(t, "pay-old", stale[1].Payment.ID)
	assert.Equal(t, "bk-older", stale[0].Booking.ID)
}

func TestListStalePendingSkipsOrphans(t *testing.T) {
	store := setupTestStore(t)
	seedBookingRow(t, store, "bk-1")

	require.NoError(t, store.SavePayment(samplePayment("pay-1", "bk-1", "pi_1", models.PaymentPending, 10*time.Minute)))
	// A payment whose booking row no longer exists must not abort the batch.
	require.NoError(t, store.SavePayment(samplePayment("pay-orphan", "bk-gone", "pi_orphan", models.PaymentPending, 10*time.Minute)))

	stale, err := store.ListStalePending(time.Now().Add(-5 * time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "pay-1", stale[0].Payment.ID)
}

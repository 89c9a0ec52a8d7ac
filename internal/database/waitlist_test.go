package database

import (
	"context"
	"testing"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinAt(t *testing.T, db *DB, owner string, date time.Time, start string, at time.Time) *models.WaitlistEntry {
	t.Helper()
	e, created, err := db.JoinWaitlist(context.Background(), &models.WaitlistEntry{
		DesiredDate:     date,
		DesiredStart:    timeslot.MustParse(start),
		DurationMinutes: 60,
		OwnerID:         owner,
		CreatedAt:       at,
	})
	require.NoError(t, err)
	require.True(t, created)
	return e
}

func TestJoinWaitlist_ReturnsActiveEntry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	date := mustDate(t, "2024-06-03")

	first := joinAt(t, db, "u1", date, "18:00", time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))

	again, created, err := db.JoinWaitlist(ctx, &models.WaitlistEntry{
		DesiredDate: date, DesiredStart: timeslot.MustParse("18:00"), DurationMinutes: 60, OwnerID: "u1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	other := joinAt(t, db, "u1", date, "19:00", time.Date(2024, 6, 3, 9, 1, 0, 0, time.UTC))
	assert.NotEqual(t, first.ID, other.ID)
}

func TestWaitlistFIFOAndExpiryChain(t *testing.T) {
	date := mustDate(t, "2024-06-03")
	db, clock := setupClockedDB(t, time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	res := newReservation(date, "18:00", 60, "holder")
	_, err := db.CreateReservationAtomic(ctx, res, noOverlap(res))
	require.NoError(t, err)

	e1 := joinAt(t, db, "u1", date, "18:00", time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	e2 := joinAt(t, db, "u2", date, "18:00", time.Date(2024, 6, 3, 9, 0, 5, 0, time.UTC))
	e3 := joinAt(t, db, "u3", date, "18:00", time.Date(2024, 6, 3, 9, 0, 9, 0, time.UTC))

	clock.Set(time.Date(2024, 6, 3, 9, 5, 0, 0, time.UTC))
	cancel, err := db.TransitionReservation(ctx, ReservationTransition{
		ReservationID: res.ID,
		To:            models.ReservationCancelled,
		PromoteWindow: 5 * time.Minute,
		Trigger:       "cancellation",
	})
	require.NoError(t, err)
	require.NotNil(t, cancel.Promotion)
	assert.Equal(t, e1.ID, cancel.Promotion.Entry.ID)
	assert.Equal(t, models.WaitlistNotified, cancel.Promotion.Entry.Status)
	assert.NotEmpty(t, cancel.Promotion.Entry.NotificationToken)
	require.NotNil(t, cancel.Promotion.Entry.ExpiresAt)
	assert.True(t, cancel.Promotion.Entry.ExpiresAt.Equal(time.Date(2024, 6, 3, 9, 10, 0, 0, time.UTC)))

	got2, err := db.GetWaitlistEntry(ctx, e2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, got2.Status)

	// not overdue yet
	overdue, err := db.ListOverdueNotified(ctx, time.Date(2024, 6, 3, 9, 9, 59, 0, time.UTC), 10)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	sweepAt := time.Date(2024, 6, 3, 9, 10, 1, 0, time.UTC)
	overdue, err = db.ListOverdueNotified(ctx, sweepAt, 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, e1.ID, overdue[0].ID)

	expiry, err := db.ExpireAndPromote(ctx, e1.ID, sweepAt, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistExpired, expiry.Expired.Status)
	require.NotNil(t, expiry.Promotion)
	assert.Equal(t, e2.ID, expiry.Promotion.Entry.ID)
	assert.Equal(t, "expiry", expiry.Promotion.Trigger)
	assert.True(t, expiry.Promotion.Entry.ExpiresAt.Equal(sweepAt.Add(5*time.Minute)))

	got3, err := db.GetWaitlistEntry(ctx, e3.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, got3.Status)

	// a second expiry attempt for the same entry is rejected
	_, err = db.ExpireAndPromote(ctx, e1.ID, sweepAt, 5*time.Minute)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestCancellationWithoutWaitersPromotesNobody(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	date := mustDate(t, "2024-06-04")

	res := newReservation(date, "10:00", 60, "u1")
	_, err := db.CreateReservationAtomic(ctx, res, noOverlap(res))
	require.NoError(t, err)

	out, err := db.TransitionReservation(ctx, ReservationTransition{
		ReservationID: res.ID, To: models.ReservationCancelled, PromoteWindow: 5 * time.Minute,
	})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Nil(t, out.Promotion)
}

func TestAdmissionConvertsNotifiedEntry(t *testing.T) {
	date := mustDate(t, "2024-06-03")
	db, clock := setupClockedDB(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	entry := joinAt(t, db, "u1", date, "18:00", clock.Now())
	promo, err := db.PromoteEntry(ctx, entry.ID, clock.Now(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "admin", promo.Trigger)

	clock.Set(time.Date(2024, 6, 3, 9, 10, 0, 0, time.UTC))
	res := newReservation(date, "18:00", 60, "u1")
	result, err := db.CreateReservationAtomic(ctx, res, noOverlap(res))
	require.NoError(t, err)
	require.NotNil(t, result.Converted)
	assert.Equal(t, entry.ID, result.Converted.ID)
	assert.Equal(t, models.WaitlistConverted, result.Converted.Status)

	_, err = db.PromoteEntry(ctx, entry.ID, clock.Now(), time.Minute)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdmissionIgnoresExpiredNotification(t *testing.T) {
	date := mustDate(t, "2024-06-03")
	db, clock := setupClockedDB(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	entry := joinAt(t, db, "u1", date, "18:00", clock.Now())
	_, err := db.PromoteEntry(ctx, entry.ID, clock.Now(), 5*time.Minute)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC))
	res := newReservation(date, "18:00", 60, "u1")
	result, err := db.CreateReservationAtomic(ctx, res, noOverlap(res))
	require.NoError(t, err)
	assert.Nil(t, result.Converted)
}

func TestListAndDeleteWaitlist(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	date := mustDate(t, "2024-06-03")

	e1 := joinAt(t, db, "u1", date, "18:00", time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	joinAt(t, db, "u2", date, "18:00", time.Date(2024, 6, 1, 9, 1, 0, 0, time.UTC))
	joinAt(t, db, "u2", date.AddDate(0, 0, 1), "18:00", time.Date(2024, 6, 1, 9, 2, 0, 0, time.UTC))

	byDate, err := db.ListWaitlist(ctx, WaitlistFilter{Date: &date})
	require.NoError(t, err)
	require.Len(t, byDate, 2)
	assert.Equal(t, e1.ID, byDate[0].ID)

	byOwner, err := db.ListWaitlist(ctx, WaitlistFilter{OwnerID: "u2", Status: models.WaitlistWaiting})
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	require.NoError(t, db.DeleteWaitlistEntry(ctx, e1.ID))
	assert.ErrorIs(t, db.DeleteWaitlistEntry(ctx, e1.ID), ErrNotFound)
	_, err = db.GetWaitlistEntry(ctx, e1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

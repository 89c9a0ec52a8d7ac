package models

import (
	"testing"
	"time"

	"courtbook/internal/timeslot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationTransitions(t *testing.T) {
	tests := []struct {
		from, to ReservationStatus
		want     bool
	}{
		{ReservationPendingPayment, ReservationConfirmed, true},
		{ReservationPendingPayment, ReservationCancelled, true},
		{ReservationConfirmed, ReservationCancelled, true},
		{ReservationConfirmed, ReservationPendingPayment, false},
		{ReservationCancelled, ReservationConfirmed, false},
		{ReservationCancelled, ReservationPendingPayment, false},
		{ReservationConfirmed, ReservationConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, ReservationPendingPayment.Active())
	assert.True(t, ReservationConfirmed.Active())
	assert.False(t, ReservationCancelled.Active())
}

func TestWaitlistTransitions(t *testing.T) {
	assert.True(t, WaitlistWaiting.CanTransitionTo(WaitlistNotified))
	assert.False(t, WaitlistWaiting.CanTransitionTo(WaitlistConverted))
	assert.True(t, WaitlistNotified.CanTransitionTo(WaitlistConverted))
	assert.True(t, WaitlistNotified.CanTransitionTo(WaitlistExpired))
	assert.False(t, WaitlistExpired.CanTransitionTo(WaitlistNotified))
	assert.False(t, WaitlistConverted.CanTransitionTo(WaitlistWaiting))

	assert.True(t, WaitlistExpired.Terminal())
	assert.True(t, WaitlistConverted.Terminal())
	assert.False(t, WaitlistNotified.Terminal())
}

func TestParseEnums(t *testing.T) {
	_, err := ParseReservationStatus("confirmed")
	assert.NoError(t, err)
	_, err = ParseReservationStatus("completed")
	assert.Error(t, err)

	_, err = ParseWaitlistStatus("notified")
	assert.NoError(t, err)
	_, err = ParseWaitlistStatus("pending")
	assert.Error(t, err)

	_, err = ParsePaymentMethod("manual")
	assert.NoError(t, err)
	_, err = ParsePaymentMethod("cash")
	assert.Error(t, err)

	outcome, err := ParsePaymentOutcome("rejected")
	require.NoError(t, err)
	assert.Equal(t, ReservationCancelled, outcome.TargetStatus())
	assert.Equal(t, ReservationConfirmed, OutcomeApproved.TargetStatus())
}

func TestPriceFor(t *testing.T) {
	assert.Equal(t, int64(5000), PriceFor(5000, 60))
	assert.Equal(t, int64(7500), PriceFor(5000, 90))
	assert.Equal(t, int64(7502), PriceFor(5001, 90))
}

func TestIsAllowedDuration(t *testing.T) {
	assert.True(t, IsAllowedDuration(60))
	assert.True(t, IsAllowedDuration(90))
	assert.False(t, IsAllowedDuration(120))
	assert.False(t, IsAllowedDuration(30))
}

func TestBlock(t *testing.T) {
	saturday, err := timeslot.ParseDate("2024-06-01")
	require.NoError(t, err)
	sunday := saturday.AddDate(0, 0, 1)

	t.Run("LiteralDate", func(t *testing.T) {
		b := &Block{Date: &saturday, StartTime: timeslot.Hour(10), EndTime: timeslot.Hour(12)}
		require.NoError(t, b.Validate())
		assert.True(t, b.AppliesTo(saturday))
		assert.False(t, b.AppliesTo(sunday))
		assert.True(t, b.Covers(timeslot.Interval{Start: timeslot.Hour(11), End: timeslot.Hour(12)}))
		assert.False(t, b.Covers(timeslot.Interval{Start: timeslot.Hour(12), End: timeslot.Hour(13)}))
	})

	t.Run("Recurring", func(t *testing.T) {
		b := &Block{Recurring: true, RecurringDay: time.Sunday, IsFullDay: true}
		require.NoError(t, b.Validate())
		assert.True(t, b.AppliesTo(sunday))
		assert.False(t, b.AppliesTo(saturday))
		assert.True(t, b.Covers(timeslot.Interval{Start: timeslot.Hour(20), End: timeslot.Hour(21)}))
	})

	t.Run("Invalid", func(t *testing.T) {
		assert.Error(t, (&Block{StartTime: timeslot.Hour(10), EndTime: timeslot.Hour(11)}).Validate())
		assert.Error(t, (&Block{Recurring: true, RecurringDay: 7, IsFullDay: true}).Validate())
		assert.Error(t, (&Block{Date: &saturday, StartTime: timeslot.Hour(12), EndTime: timeslot.Hour(10)}).Validate())
	})
}

func TestActor(t *testing.T) {
	assert.True(t, Actor{ID: "a", Role: RoleAdmin}.IsAdmin())
	assert.False(t, Actor{ID: "u", Role: RoleUser}.IsAdmin())

	o := &Owner{ID: "u1", FullName: "Ana", TelegramChatID: 42}
	c := o.Contact()
	assert.Equal(t, "u1", c.OwnerID)
	assert.Equal(t, int64(42), c.TelegramChatID)
	assert.Equal(t, "u1:approved", LedgerReference("u1", OutcomeApproved))
}

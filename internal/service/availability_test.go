package service

import (
	"testing"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interval(t *testing.T, start string, minutes int) timeslot.Interval {
	t.Helper()
	iv, err := timeslot.NewInterval(timeslot.MustParse(start), minutes)
	require.NoError(t, err)
	return iv
}

func reservationAt(id, start, end string, status models.ReservationStatus) *models.Reservation {
	return &models.Reservation{
		ID:        id,
		StartTime: timeslot.MustParse(start),
		EndTime:   timeslot.MustParse(end),
		Status:    status,
	}
}

func TestEvaluate(t *testing.T) {
	saturday := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	hours := timeslot.Interval{Start: timeslot.Hour(8), End: timeslot.Hour(23)}

	t.Run("FreeSlot", func(t *testing.T) {
		schedule := &models.DaySchedule{Date: saturday}
		assert.Nil(t, Evaluate(schedule, interval(t, "10:00", 60), "", hours))
	})

	t.Run("AdjacencyIsNotConflict", func(t *testing.T) {
		schedule := &models.DaySchedule{Date: saturday, Reservations: []*models.Reservation{
			reservationAt("r1", "09:00", "10:00", models.ReservationConfirmed),
			reservationAt("r2", "11:00", "12:00", models.ReservationPendingPayment),
		}}
		assert.Nil(t, Evaluate(schedule, interval(t, "10:00", 60), "", hours))
	})

	t.Run("CancelledAndExcludedAreIgnored", func(t *testing.T) {
		schedule := &models.DaySchedule{Date: saturday, Reservations: []*models.Reservation{
			reservationAt("r1", "10:00", "11:00", models.ReservationCancelled),
			reservationAt("r2", "10:30", "11:30", models.ReservationConfirmed),
		}}
		assert.Nil(t, Evaluate(schedule, interval(t, "10:00", 90), "r2", hours))
		assert.NotNil(t, Evaluate(schedule, interval(t, "10:00", 90), "", hours))
	})

	t.Run("ReservationReportedBeforeBlock", func(t *testing.T) {
		schedule := &models.DaySchedule{
			Date:         saturday,
			Reservations: []*models.Reservation{reservationAt("r1", "10:00", "11:00", models.ReservationConfirmed)},
			Blocks:       []*models.Block{{ID: "b1", Date: &saturday, StartTime: timeslot.Hour(10), EndTime: timeslot.Hour(12)}},
		}
		conflict := Evaluate(schedule, interval(t, "10:00", 60), "", hours)
		require.NotNil(t, conflict)
		assert.Equal(t, domain.ConflictReservation, conflict.Source)
	})

	t.Run("RecurringBlock", func(t *testing.T) {
		schedule := &models.DaySchedule{Date: saturday, Blocks: []*models.Block{
			{ID: "b1", Recurring: true, RecurringDay: time.Saturday, StartTime: timeslot.Hour(18), EndTime: timeslot.Hour(20), Reason: "league"},
		}}
		conflict := Evaluate(schedule, interval(t, "19:30", 60), "", hours)
		require.NotNil(t, conflict)
		assert.Equal(t, domain.ConflictBlock, conflict.Source)
		assert.Contains(t, conflict.Reason, "league")
	})

	t.Run("AlternativesEarlierFirst", func(t *testing.T) {
		schedule := &models.DaySchedule{Date: saturday, Reservations: []*models.Reservation{
			reservationAt("r1", "14:00", "15:00", models.ReservationConfirmed),
		}}
		conflict := Evaluate(schedule, interval(t, "14:00", 60), "", hours)
		require.NotNil(t, conflict)
		assert.Equal(t, []timeslot.TimeOfDay{
			timeslot.MustParse("13:00"),
			timeslot.MustParse("15:00"),
			timeslot.MustParse("12:30"),
		}, conflict.Alternatives)
	})

	t.Run("AlternativesStayInsideOperatingHours", func(t *testing.T) {
		schedule := &models.DaySchedule{Date: saturday, Reservations: []*models.Reservation{
			reservationAt("r1", "08:00", "09:30", models.ReservationConfirmed),
		}}
		conflict := Evaluate(schedule, interval(t, "08:00", 90), "", hours)
		require.NotNil(t, conflict)
		for _, alt := range conflict.Alternatives {
			assert.GreaterOrEqual(t, alt, timeslot.Hour(8))
		}
		assert.Equal(t, []timeslot.TimeOfDay{
			timeslot.MustParse("09:30"),
			timeslot.MustParse("10:00"),
			timeslot.MustParse("10:30"),
		}, conflict.Alternatives)
	})

	t.Run("NoAlternatives", func(t *testing.T) {
		schedule := &models.DaySchedule{Date: saturday, Blocks: []*models.Block{
			{ID: "b1", Date: &saturday, IsFullDay: true},
		}}
		conflict := Evaluate(schedule, interval(t, "10:00", 60), "", hours)
		require.NotNil(t, conflict)
		assert.Empty(t, conflict.Alternatives)
	})
}

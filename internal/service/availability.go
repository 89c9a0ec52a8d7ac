package service

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"
)

// Availability is the outcome of a slot check. Conflict is nil when the
// slot is free.
type Availability struct {
	Date     time.Time
	Interval timeslot.Interval
	Conflict *domain.ConflictError
}

func (a *Availability) Available() bool {
	return a.Conflict == nil
}

type AvailabilityChecker struct {
	schedules domain.ScheduleReader
	settings  domain.SettingsReader
}

func NewAvailabilityChecker(schedules domain.ScheduleReader, settings domain.SettingsReader) *AvailabilityChecker {
	return &AvailabilityChecker{schedules: schedules, settings: settings}
}

// CheckAvailability loads the day snapshot and evaluates the candidate
// against it, ignoring excludeReservationID.
func (c *AvailabilityChecker) CheckAvailability(ctx context.Context, date time.Time, start timeslot.TimeOfDay, durationMinutes int, excludeReservationID string) (*Availability, error) {
	iv, err := timeslot.NewInterval(start, durationMinutes)
	if err != nil {
		return nil, domain.NewValidationError("start_time", "%v", err)
	}
	hours, err := c.settings.OperatingHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read operating hours: %w", err)
	}
	schedule, err := c.schedules.DaySchedule(ctx, timeslot.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("failed to load day schedule: %w", err)
	}

	return &Availability{
		Date:     schedule.Date,
		Interval: iv,
		Conflict: Evaluate(schedule, iv, excludeReservationID, hours),
	}, nil
}

// Evaluate decides whether iv is free in the snapshot. Reservations are
// checked before blocks and the first match is reported. On conflict it
// proposes up to MaxAlternatives nearby starts of the same duration that
// fit in hours and are free in the same snapshot.
func Evaluate(schedule *models.DaySchedule, iv timeslot.Interval, excludeID string, hours timeslot.Interval) *domain.ConflictError {
	conflict := conflictFor(schedule, iv, excludeID)
	if conflict == nil {
		return nil
	}
	conflict.Alternatives = Alternatives(schedule, iv, excludeID, hours)
	return conflict
}

func conflictFor(schedule *models.DaySchedule, iv timeslot.Interval, excludeID string) *domain.ConflictError {
	if r := schedule.ReservationConflict(iv, excludeID); r != nil {
		return &domain.ConflictError{
			Source: domain.ConflictReservation,
			Reason: "overlaps an existing reservation " + r.Interval().String(),
		}
	}
	if b := schedule.BlockConflict(iv); b != nil {
		reason := "blocked " + timeslot.Interval{Start: b.StartTime, End: b.EndTime}.String()
		if b.IsFullDay {
			reason = "blocked for the whole day"
		}
		if b.Reason != "" {
			reason += ": " + b.Reason
		}
		return &domain.ConflictError{Source: domain.ConflictBlock, Reason: reason}
	}
	return nil
}

// Alternatives tries offsets of ±30, ±60 … ±180 minutes, earlier before
// later for the same magnitude.
func Alternatives(schedule *models.DaySchedule, iv timeslot.Interval, excludeID string, hours timeslot.Interval) []timeslot.TimeOfDay {
	duration := iv.Minutes()
	var out []timeslot.TimeOfDay

	for step := models.AlternativeStep; step <= models.AlternativeMaxOffset; step += models.AlternativeStep {
		for _, offset := range []int{-step, step} {
			start, err := timeslot.AddMinutes(iv.Start, offset)
			if err != nil {
				continue
			}
			candidate, err := timeslot.NewInterval(start, duration)
			if err != nil || !candidate.Within(hours) {
				continue
			}
			if conflictFor(schedule, candidate, excludeID) != nil {
				continue
			}
			out = append(out, start)
			if len(out) == models.MaxAlternatives {
				return out
			}
		}
	}
	return out
}

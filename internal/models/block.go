package models

import (
	"errors"
	"time"

	"courtbook/internal/timeslot"
)

// Block is an administrative blackout on a date or on a weekday every week.
type Block struct {
	ID           string             `json:"id"`
	Date         *time.Time         `json:"date,omitempty"`
	StartTime    timeslot.TimeOfDay `json:"start_time"`
	EndTime      timeslot.TimeOfDay `json:"end_time"`
	IsFullDay    bool               `json:"is_full_day"`
	Reason       string             `json:"reason"`
	Recurring    bool               `json:"recurring"`
	RecurringDay time.Weekday       `json:"recurring_day"`
	CreatedAt    time.Time          `json:"created_at"`
}

func (b *Block) Validate() error {
	if b.Recurring {
		if b.RecurringDay < time.Sunday || b.RecurringDay > time.Saturday {
			return errors.New("recurring day must be between 0 (Sunday) and 6 (Saturday)")
		}
	} else if b.Date == nil {
		return errors.New("non-recurring block requires a date")
	}
	if b.IsFullDay {
		return nil
	}
	if !b.StartTime.Valid() || b.EndTime <= b.StartTime || b.EndTime > timeslot.MinutesPerDay {
		return errors.New("block interval must satisfy start < end within the day")
	}
	return nil
}

// AppliesTo reports whether the block is in force on the calendar day.
func (b *Block) AppliesTo(date time.Time) bool {
	if b.Recurring {
		return date.Weekday() == b.RecurringDay
	}
	return b.Date != nil && timeslot.FormatDate(*b.Date) == timeslot.FormatDate(date)
}

// Covers reports whether the block conflicts with iv on a day it applies to.
func (b *Block) Covers(iv timeslot.Interval) bool {
	if b.IsFullDay {
		return true
	}
	return timeslot.Overlaps(b.StartTime, b.EndTime, iv.Start, iv.End)
}

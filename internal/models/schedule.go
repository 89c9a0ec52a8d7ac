package models

import (
	"time"

	"courtbook/internal/timeslot"
)

// DaySchedule is a consistent snapshot of what occupies a calendar day:
// active reservations and the blocks that apply to it.
type DaySchedule struct {
	Date         time.Time
	Reservations []*Reservation
	Blocks       []*Block
}

// ReservationConflict returns the first active reservation overlapping iv,
// ignoring excludeID.
func (d *DaySchedule) ReservationConflict(iv timeslot.Interval, excludeID string) *Reservation {
	for _, r := range d.Reservations {
		if !r.Status.Active() || (excludeID != "" && r.ID == excludeID) {
			continue
		}
		if r.Interval().Overlaps(iv) {
			return r
		}
	}
	return nil
}

// BlockConflict returns the first block in force on the day covering iv.
func (d *DaySchedule) BlockConflict(iv timeslot.Interval) *Block {
	for _, b := range d.Blocks {
		if b.AppliesTo(d.Date) && b.Covers(iv) {
			return b
		}
	}
	return nil
}

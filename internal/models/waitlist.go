package models

import (
	"fmt"
	"time"

	"courtbook/internal/timeslot"
)

type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistNotified  WaitlistStatus = "notified"
	WaitlistConverted WaitlistStatus = "converted"
	WaitlistExpired   WaitlistStatus = "expired"
)

var waitlistTransitions = map[WaitlistStatus][]WaitlistStatus{
	WaitlistWaiting:   {WaitlistNotified},
	WaitlistNotified:  {WaitlistConverted, WaitlistExpired},
	WaitlistConverted: nil,
	WaitlistExpired:   nil,
}

func ParseWaitlistStatus(s string) (WaitlistStatus, error) {
	st := WaitlistStatus(s)
	if _, ok := waitlistTransitions[st]; !ok {
		return "", fmt.Errorf("unknown waitlist status %q", s)
	}
	return st, nil
}

func (s WaitlistStatus) CanTransitionTo(next WaitlistStatus) bool {
	for _, allowed := range waitlistTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s WaitlistStatus) Terminal() bool {
	return len(waitlistTransitions[s]) == 0
}

type WaitlistEntry struct {
	ID                int64              `json:"id"`
	DesiredDate       time.Time          `json:"desired_date"`
	DesiredStart      timeslot.TimeOfDay `json:"desired_start"`
	DurationMinutes   int                `json:"duration_minutes"`
	OwnerID           string             `json:"owner_id"`
	Status            WaitlistStatus     `json:"status"`
	NotifiedAt        *time.Time         `json:"notified_at,omitempty"`
	ExpiresAt         *time.Time         `json:"expires_at,omitempty"`
	NotificationToken string             `json:"-"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Promotion triggers.
const (
	TriggerCancellation = "cancellation"
	TriggerPayment      = "payment"
	TriggerExpiry       = "expiry"
	TriggerAdmin        = "admin"
)

// Promotion is a waitlist entry that has just been moved to notified.
type Promotion struct {
	Entry WaitlistEntry
	// Trigger names what freed the slot.
	Trigger string
}

// Slot identifies a start time on a calendar day.
type Slot struct {
	Date  time.Time          `json:"date"`
	Start timeslot.TimeOfDay `json:"start"`
}

func (s Slot) String() string {
	return timeslot.FormatDate(s.Date) + " " + s.Start.String()
}

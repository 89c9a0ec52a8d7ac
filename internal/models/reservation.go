package models

import (
	"fmt"
	"time"

	"courtbook/internal/timeslot"
)

type ReservationStatus string

const (
	ReservationPendingPayment ReservationStatus = "pending_payment"
	ReservationConfirmed      ReservationStatus = "confirmed"
	ReservationCancelled      ReservationStatus = "cancelled"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPendingPayment: {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed:      {ReservationCancelled},
	ReservationCancelled:      nil,
}

func ParseReservationStatus(s string) (ReservationStatus, error) {
	st := ReservationStatus(s)
	if _, ok := reservationTransitions[st]; !ok {
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
	return st, nil
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the reservation still holds its slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationPendingPayment || s == ReservationConfirmed
}

type PaymentMethod string

const (
	// PaymentGateway goes through the hosted checkout and waits for a signal.
	PaymentGateway PaymentMethod = "gateway"
	// PaymentManual is an offline transfer confirmed by an administrator.
	PaymentManual PaymentMethod = "manual"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentGateway, PaymentManual:
		return PaymentMethod(s), nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

type Reservation struct {
	ID                  string             `json:"id"`
	Date                time.Time          `json:"date"`
	StartTime           timeslot.TimeOfDay `json:"start_time"`
	EndTime             timeslot.TimeOfDay `json:"end_time"`
	DurationMinutes     int                `json:"duration_minutes"`
	Status              ReservationStatus  `json:"status"`
	PaymentMethod       PaymentMethod      `json:"payment_method"`
	TotalPrice          int64              `json:"total_price"`
	OwnerID             string             `json:"owner_id"`
	CalendarEventID     string             `json:"calendar_event_id,omitempty"`
	PaymentPreferenceID string             `json:"payment_preference_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	Version             int64              `json:"version"`
}

func (r *Reservation) Interval() timeslot.Interval {
	return timeslot.Interval{Start: r.StartTime, End: r.EndTime}
}

// PriceFor derives the price of a slot from the hourly rate, rounding half up.
func PriceFor(pricePerHour int64, durationMinutes int) int64 {
	return (pricePerHour*int64(durationMinutes) + 30) / 60
}

package models

import (
	"fmt"
	"time"
)

type PaymentOutcome string

const (
	OutcomeApproved  PaymentOutcome = "approved"
	OutcomeRejected  PaymentOutcome = "rejected"
	OutcomeCancelled PaymentOutcome = "cancelled"
)

func ParsePaymentOutcome(s string) (PaymentOutcome, error) {
	switch PaymentOutcome(s) {
	case OutcomeApproved, OutcomeRejected, OutcomeCancelled:
		return PaymentOutcome(s), nil
	default:
		return "", fmt.Errorf("unknown payment outcome %q", s)
	}
}

// TargetStatus is the reservation status an outcome drives to.
func (o PaymentOutcome) TargetStatus() ReservationStatus {
	if o == OutcomeApproved {
		return ReservationConfirmed
	}
	return ReservationCancelled
}

// PaymentSignal is an asynchronous payment result for a reservation.
type PaymentSignal struct {
	ReservationID    string         `json:"reservation_id"`
	Outcome          PaymentOutcome `json:"outcome"`
	GatewayPaymentID string         `json:"gateway_payment_id,omitempty"`
	Amount           int64          `json:"amount,omitempty"`
}

// Payment is a ledger entry. ExternalReference is unique.
type Payment struct {
	ID                int64          `json:"id"`
	ReservationID     string         `json:"reservation_id"`
	Amount            int64          `json:"amount"`
	Method            PaymentMethod  `json:"method"`
	Status            PaymentOutcome `json:"status"`
	ExternalReference string         `json:"external_reference"`
	GatewayPaymentID  string         `json:"gateway_payment_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// LedgerReference is the idempotency key of a ledger entry.
func LedgerReference(reservationID string, outcome PaymentOutcome) string {
	return reservationID + ":" + string(outcome)
}

// Preference is what the payment gateway returns for a checkout.
type Preference struct {
	ID          string
	RedirectURL string
	Sandbox     bool
}

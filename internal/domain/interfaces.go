package domain

import (
	"context"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/timeslot"
)

// ScheduleReader loads the occupancy snapshot of a day.
type ScheduleReader interface {
	DaySchedule(ctx context.Context, date time.Time) (*models.DaySchedule, error)
}

// SettingsStore is the key/value settings table.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) ([]models.Setting, error)
}

// SettingsReader exposes typed settings, read at the point of use.
type SettingsReader interface {
	PricePerHour(ctx context.Context) (int64, error)
	OperatingHours(ctx context.Context) (timeslot.Interval, error)
	BankAlias(ctx context.Context) (string, error)
}

type OwnerDirectory interface {
	GetOwner(ctx context.Context, id string) (*models.Owner, error)
}

type AuditLogger interface {
	RecordAudit(ctx context.Context, e *models.AuditEntry) error
}

// PaymentGateway creates a hosted checkout for a gateway reservation.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, res *models.Reservation, owner *models.Owner) (*models.Preference, error)
}

// CalendarSync mirrors reservations into the owner's external calendar.
// Both calls are fire-and-forget from the caller's point of view.
type CalendarSync interface {
	SyncReservation(ctx context.Context, res *models.Reservation) error
	RemoveReservation(ctx context.Context, res *models.Reservation) error
}

// Message is a notification addressed to one owner.
type Message struct {
	Kind string
	Text string
	Link string
}

// Notification kinds.
const (
	NotifyReminder       = "reminder"
	NotifyWaitlistOffer  = "waitlist_offer"
	NotifyPaymentPending = "payment_pending"
	NotifyConfirmation   = "confirmation"
	NotifyCancellation   = "cancellation"
)

type Notifier interface {
	Notify(ctx context.Context, to models.Contact, msg Message) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ClaimStore grants a key to exactly one caller until the TTL passes.
type ClaimStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

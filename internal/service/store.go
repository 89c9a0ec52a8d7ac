package service

import (
	"context"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/models"
)

// ReservationStore is the transactional reservation storage the services
// need. *database.DB implements it.
type ReservationStore interface {
	DaySchedule(ctx context.Context, date time.Time) (*models.DaySchedule, error)
	CreateReservationAtomic(ctx context.Context, res *models.Reservation, check database.AdmissionCheck) (*database.AdmissionResult, error)
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListReservationsByDate(ctx context.Context, date time.Time, statuses ...models.ReservationStatus) ([]*models.Reservation, error)
	TransitionReservation(ctx context.Context, t database.ReservationTransition) (*database.TransitionResult, error)
	SetPaymentPreference(ctx context.Context, id, preferenceID string) error
	RecordPayment(ctx context.Context, p *models.Payment) (bool, error)
}

// WaitlistStore is the waitlist storage. *database.DB implements it.
type WaitlistStore interface {
	JoinWaitlist(ctx context.Context, e *models.WaitlistEntry) (*models.WaitlistEntry, bool, error)
	GetWaitlistEntry(ctx context.Context, id int64) (*models.WaitlistEntry, error)
	ListWaitlist(ctx context.Context, f database.WaitlistFilter) ([]*models.WaitlistEntry, error)
	DeleteWaitlistEntry(ctx context.Context, id int64) error
	ListOverdueNotified(ctx context.Context, now time.Time, limit int) ([]*models.WaitlistEntry, error)
	ExpireAndPromote(ctx context.Context, id int64, now time.Time, window time.Duration) (*database.ExpiryResult, error)
	PromoteEntry(ctx context.Context, id int64, now time.Time, window time.Duration) (*models.Promotion, error)
}

// BlockStore manages administrative blocks. *database.DB implements it.
type BlockStore interface {
	CreateBlock(ctx context.Context, b *models.Block, from time.Time) error
	DeleteBlock(ctx context.Context, id string) error
	ListBlocks(ctx context.Context) ([]*models.Block, error)
}

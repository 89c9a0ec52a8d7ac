package service

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BlockService manages administrative blackouts. Blocks never cancel
// existing reservations: a block that would cover an active reservation is
// rejected, and otherwise it only stops new admissions.
type BlockService struct {
	store  BlockStore
	fx     *effects
	loc    *time.Location
	now    func() time.Time
	logger *zerolog.Logger
}

func NewBlockService(store BlockStore, collab Collaborators, loc *time.Location, logger *zerolog.Logger) *BlockService {
	if loc == nil {
		loc = time.UTC
	}
	return &BlockService{
		store:  store,
		fx:     newEffects(collab, "", loc, logger),
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the clock that decides which reservations a recurring
// block is checked against.
func (s *BlockService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *BlockService) CreateBlock(ctx context.Context, b *models.Block, actor models.Actor) (*models.Block, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrNotAuthorized
	}
	if err := b.Validate(); err != nil {
		return nil, domain.NewValidationError("block", "%v", err)
	}
	if b.Date != nil {
		day := timeslot.DateOf(*b.Date)
		b.Date = &day
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	today := timeslot.DateOf(s.now().In(s.loc))
	if err := s.store.CreateBlock(ctx, b, today); err != nil {
		var bc *database.BlockConflictError
		if errors.As(err, &bc) {
			s.logger.Info().Str("actor_id", actor.ID).Str("reservation_id", bc.Reservation.ID).Msg("block rejected, reservation in the way")
			return nil, &domain.ConflictError{
				Source: domain.ConflictReservation,
				Reason: "overlaps an existing reservation on " + timeslot.FormatDate(bc.Reservation.Date) + " " + bc.Reservation.Interval().String(),
			}
		}
		return nil, err
	}
	s.logger.Info().Str("block_id", b.ID).Str("actor_id", actor.ID).Bool("recurring", b.Recurring).Msg("block created")
	s.fx.audit(ctx, models.AuditBlockCreate, "block", b.ID, actor, b.Reason)
	return b, nil
}

func (s *BlockService) DeleteBlock(ctx context.Context, id string, actor models.Actor) error {
	if !actor.IsAdmin() {
		return domain.ErrNotAuthorized
	}
	if err := s.store.DeleteBlock(ctx, id); err != nil {
		return storeError(err)
	}
	s.logger.Info().Str("block_id", id).Str("actor_id", actor.ID).Msg("block deleted")
	s.fx.audit(ctx, models.AuditBlockDelete, "block", id, actor, "")
	return nil
}

func (s *BlockService) ListBlocks(ctx context.Context) ([]*models.Block, error) {
	return s.store.ListBlocks(ctx)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/rs/zerolog"
)

type WaitlistRequest struct {
	OwnerID         string
	Date            time.Time
	StartTime       timeslot.TimeOfDay
	DurationMinutes int
}

type WaitlistOptions struct {
	NotifyWindow      time.Duration
	AdminNotifyWindow time.Duration
	BatchSize         int
	ClientURL         string
	Location          *time.Location
}

// WaitlistService drives the waiting → notified → converted|expired
// lifecycle outside of the admission and cancellation transactions.
type WaitlistService struct {
	store  WaitlistStore
	fx     *effects
	opts   WaitlistOptions
	now    func() time.Time
	logger *zerolog.Logger
}

func NewWaitlistService(store WaitlistStore, collab Collaborators, opts WaitlistOptions, logger *zerolog.Logger) *WaitlistService {
	if opts.NotifyWindow <= 0 {
		opts.NotifyWindow = models.DefaultNotifyWindow
	}
	if opts.AdminNotifyWindow <= 0 {
		opts.AdminNotifyWindow = models.DefaultAdminNotifyWindow
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &WaitlistService{
		store:  store,
		fx:     newEffects(collab, opts.ClientURL, opts.Location, logger),
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
}

func (s *WaitlistService) SetClock(now func() time.Time) {
	s.now = now
}

// Join adds the owner to the queue for a slot. Joining twice for the same
// slot returns the active entry with created=false.
func (s *WaitlistService) Join(ctx context.Context, req WaitlistRequest) (*models.WaitlistEntry, bool, error) {
	if req.OwnerID == "" {
		return nil, false, domain.NewValidationError("owner_id", "is required")
	}
	if !models.IsAllowedDuration(req.DurationMinutes) {
		return nil, false, domain.NewValidationError("duration_minutes", "must be one of %v", models.AllowedDurations)
	}
	if _, err := timeslot.NewInterval(req.StartTime, req.DurationMinutes); err != nil {
		return nil, false, domain.NewValidationError("start_time", "%v", err)
	}
	if timeslot.DateOf(req.Date).Before(timeslot.DateOf(s.now().In(s.opts.Location))) {
		return nil, false, domain.NewValidationError("date", "%s is in the past", timeslot.FormatDate(req.Date))
	}

	entry, created, err := s.store.JoinWaitlist(ctx, &models.WaitlistEntry{
		DesiredDate:     timeslot.DateOf(req.Date),
		DesiredStart:    req.StartTime,
		DurationMinutes: req.DurationMinutes,
		OwnerID:         req.OwnerID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to join waitlist: %w", err)
	}
	if created {
		metrics.IncWaitlistTransition(string(models.WaitlistWaiting))
		s.logger.Info().Int64("entry_id", entry.ID).Str("owner_id", entry.OwnerID).
			Str("slot", models.Slot{Date: entry.DesiredDate, Start: entry.DesiredStart}.String()).
			Msg("waitlist entry created")
		s.fx.publishWaitlist(events.EventWaitlistJoined, entry, "")
	}
	return entry, created, nil
}

// ListEntries returns entries in FIFO order. Non-administrators only see
// their own entries.
func (s *WaitlistService) ListEntries(ctx context.Context, filter database.WaitlistFilter, actor models.Actor) ([]*models.WaitlistEntry, error) {
	if !actor.IsAdmin() {
		filter.OwnerID = actor.ID
	}
	return s.store.ListWaitlist(ctx, filter)
}

// AdminNotify promotes a specific waiting entry with the administrative window.
func (s *WaitlistService) AdminNotify(ctx context.Context, id int64, actor models.Actor) (*models.WaitlistEntry, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrNotAuthorized
	}
	promo, err := s.store.PromoteEntry(ctx, id, s.now(), s.opts.AdminNotifyWindow)
	if err != nil {
		return nil, storeError(err)
	}
	s.fx.audit(ctx, models.AuditWaitlistAdminNotify, "waitlist_entry", fmt.Sprint(id), actor, "")
	s.fx.promoted(ctx, promo)
	return &promo.Entry, nil
}

// DeleteEntry removes an entry in any state. Only its owner or an
// administrator may do so.
func (s *WaitlistService) DeleteEntry(ctx context.Context, id int64, actor models.Actor) error {
	entry, err := s.store.GetWaitlistEntry(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if entry.OwnerID != actor.ID && !actor.IsAdmin() {
		return domain.ErrNotAuthorized
	}
	if err := s.store.DeleteWaitlistEntry(ctx, id); err != nil {
		return storeError(err)
	}
	s.logger.Info().Int64("entry_id", id).Str("actor_id", actor.ID).Str("status", string(entry.Status)).Msg("waitlist entry deleted")
	s.fx.audit(ctx, models.AuditWaitlistDelete, "waitlist_entry", fmt.Sprint(id), actor, string(entry.Status))
	return nil
}

// ExpireOverdue expires notified entries whose window has closed and
// promotes the next candidate of each freed slot. Items that fail are logged
// and skipped. It returns how many entries expired.
func (s *WaitlistService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.store.ListOverdueNotified(ctx, now, s.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue entries: %w", err)
	}

	expired := 0
	for _, entry := range overdue {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		result, err := s.store.ExpireAndPromote(ctx, entry.ID, now, s.opts.NotifyWindow)
		if errors.Is(err, database.ErrConcurrentModification) {
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to expire waitlist entry")
			continue
		}

		expired++
		metrics.IncWaitlistTransition(string(models.WaitlistExpired))
		s.logger.Info().Int64("entry_id", entry.ID).Str("owner_id", entry.OwnerID).Msg("waitlist entry expired")
		s.fx.publishWaitlist(events.EventWaitlistExpired, result.Expired, models.TriggerExpiry)
		s.fx.promoted(ctx, result.Promotion)
	}
	return expired, nil
}

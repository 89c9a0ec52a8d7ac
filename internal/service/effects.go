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
	"courtbook/internal/notify"
	"courtbook/internal/timeslot"

	"github.com/rs/zerolog"
)

// Collaborators are the side channels the core services report to. Any of
// them may be nil. Their failures are logged and never undo core state.
type Collaborators struct {
	Owners   domain.OwnerDirectory
	Notifier domain.Notifier
	Calendar domain.CalendarSync
	Events   domain.EventPublisher
	Audit    domain.AuditLogger
	Gateway  domain.PaymentGateway
}

// effects runs post-commit side effects on behalf of the services.
type effects struct {
	c         Collaborators
	clientURL string
	loc       *time.Location
	logger    *zerolog.Logger
}

func newEffects(c Collaborators, clientURL string, loc *time.Location, logger *zerolog.Logger) *effects {
	if loc == nil {
		loc = time.UTC
	}
	return &effects{c: c, clientURL: clientURL, loc: loc, logger: logger}
}

func (fx *effects) owner(ctx context.Context, id string) *models.Owner {
	if fx.c.Owners == nil {
		return nil
	}
	o, err := fx.c.Owners.GetOwner(ctx, id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			fx.logger.Warn().Err(err).Str("owner_id", id).Msg("owner lookup failed")
		}
		return nil
	}
	return o
}

func (fx *effects) notify(ctx context.Context, ownerID string, msg domain.Message) {
	if fx.c.Notifier == nil {
		return
	}
	owner := fx.owner(ctx, ownerID)
	contact := models.Contact{OwnerID: ownerID}
	if owner != nil {
		contact = owner.Contact()
	}
	if err := fx.c.Notifier.Notify(ctx, contact, msg); err != nil {
		fx.logger.Warn().Err(err).Str("owner_id", ownerID).Str("kind", msg.Kind).Msg("notification failed")
	}
}

func (fx *effects) syncCalendar(ctx context.Context, res *models.Reservation) {
	if fx.c.Calendar == nil {
		return
	}
	if err := fx.c.Calendar.SyncReservation(ctx, res); err != nil {
		fx.logger.Warn().Err(err).Str("reservation_id", res.ID).Msg("calendar sync enqueue failed")
	}
}

func (fx *effects) removeCalendar(ctx context.Context, res *models.Reservation) {
	if fx.c.Calendar == nil {
		return
	}
	if err := fx.c.Calendar.RemoveReservation(ctx, res); err != nil {
		fx.logger.Warn().Err(err).Str("reservation_id", res.ID).Msg("calendar removal enqueue failed")
	}
}

func (fx *effects) publish(eventType string, payload interface{}) {
	if fx.c.Events == nil {
		return
	}
	if err := fx.c.Events.PublishJSON(eventType, payload); err != nil {
		fx.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (fx *effects) publishReservation(eventType string, res *models.Reservation, changedBy string) {
	fx.publish(eventType, events.ReservationEventPayload{
		ReservationID: res.ID,
		OwnerID:       res.OwnerID,
		Date:          timeslot.FormatDate(res.Date),
		StartTime:     res.StartTime.String(),
		EndTime:       res.EndTime.String(),
		Status:        string(res.Status),
		PaymentMethod: string(res.PaymentMethod),
		TotalPrice:    res.TotalPrice,
		ChangedBy:     changedBy,
		OccurredAt:    res.UpdatedAt,
	})
}

func (fx *effects) publishWaitlist(eventType string, e *models.WaitlistEntry, trigger string) {
	fx.publish(eventType, events.WaitlistEventPayload{
		EntryID:    e.ID,
		OwnerID:    e.OwnerID,
		Date:       timeslot.FormatDate(e.DesiredDate),
		StartTime:  e.DesiredStart.String(),
		Status:     string(e.Status),
		Trigger:    trigger,
		ExpiresAt:  e.ExpiresAt,
		OccurredAt: time.Now().UTC(),
	})
}

func (fx *effects) audit(ctx context.Context, action, entityType, entityID string, actor models.Actor, details string) {
	if fx.c.Audit == nil {
		return
	}
	entry := &models.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor.ID,
		Details:    details,
	}
	if err := fx.c.Audit.RecordAudit(ctx, entry); err != nil {
		fx.logger.Warn().Err(err).Str("action", action).Str("entity_id", entityID).Msg("audit record failed")
	}
}

// promoted reports a committed promotion: metrics, event and the offer
// notification with its deep link.
func (fx *effects) promoted(ctx context.Context, p *models.Promotion) {
	if p == nil {
		return
	}
	metrics.IncWaitlistTransition(string(models.WaitlistNotified))
	fx.logger.Info().
		Int64("entry_id", p.Entry.ID).
		Str("owner_id", p.Entry.OwnerID).
		Str("slot", models.Slot{Date: p.Entry.DesiredDate, Start: p.Entry.DesiredStart}.String()).
		Str("trigger", p.Trigger).
		Msg("waitlist entry notified")
	fx.publishWaitlist(events.EventWaitlistPromoted, &p.Entry, p.Trigger)
	fx.notify(ctx, p.Entry.OwnerID, notify.WaitlistOffer(fx.clientURL, &p.Entry, fx.loc))
}

// confirmed runs the side effects of a reservation reaching confirmed.
func (fx *effects) confirmed(ctx context.Context, res *models.Reservation, changedBy string) {
	fx.syncCalendar(ctx, res)
	fx.publishReservation(events.EventReservationConfirmed, res, changedBy)
}

// storeError maps storage sentinels to domain errors.
func storeError(err error) error {
	var te *database.TransitionError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.As(err, &te):
		return &domain.ValidationError{Field: "status", Reason: te.Error()}
	default:
		return err
	}
}

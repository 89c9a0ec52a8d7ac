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

	"github.com/rs/zerolog"
)

const maxCASAttempts = 3

// Reconciler applies payment outcomes and cancellations to reservations.
// Every transition that frees a slot promotes the next waiting entry in the
// same transaction.
type Reconciler struct {
	store        ReservationStore
	fx           *effects
	notifyWindow time.Duration
	logger       *zerolog.Logger
}

func NewReconciler(store ReservationStore, collab Collaborators, notifyWindow time.Duration, clientURL string, loc *time.Location, logger *zerolog.Logger) *Reconciler {
	if notifyWindow <= 0 {
		notifyWindow = models.DefaultNotifyWindow
	}
	return &Reconciler{
		store:        store,
		fx:           newEffects(collab, clientURL, loc, logger),
		notifyWindow: notifyWindow,
		logger:       logger,
	}
}

// ApplyPaymentOutcome is idempotent: a signal whose effect is already in
// place returns nil.
func (r *Reconciler) ApplyPaymentOutcome(ctx context.Context, sig models.PaymentSignal) error {
	if sig.ReservationID == "" {
		return domain.NewValidationError("reservation_id", "is required")
	}
	if _, err := models.ParsePaymentOutcome(string(sig.Outcome)); err != nil {
		return domain.NewValidationError("outcome", "%v", err)
	}

	err := r.applyOutcome(ctx, sig)
	switch {
	case errors.Is(err, domain.ErrDuplicateSignal):
		metrics.IncPaymentSignal(string(sig.Outcome), "duplicate")
		r.logger.Debug().Str("reservation_id", sig.ReservationID).Str("outcome", string(sig.Outcome)).Msg("duplicate payment signal")
		return nil
	case err != nil:
		metrics.IncPaymentSignal(string(sig.Outcome), "error")
		return err
	}
	return nil
}

// AutoConfirm confirms a pending gateway reservation whose checkout is a
// sandbox or runs under the auto-confirm policy. No money moved, so nothing
// is written to the ledger.
func (r *Reconciler) AutoConfirm(ctx context.Context, id string) (*models.Reservation, error) {
	tr, err := r.store.TransitionReservation(ctx, database.ReservationTransition{
		ReservationID: id,
		To:            models.ReservationConfirmed,
		From:          []models.ReservationStatus{models.ReservationPendingPayment},
	})
	if err != nil {
		return nil, storeError(err)
	}
	if !tr.Changed {
		return tr.Reservation, nil
	}

	metrics.IncPaymentSignal(string(models.OutcomeApproved), "auto")
	r.logger.Info().Str("reservation_id", id).Msg("reservation auto-confirmed")
	r.fx.confirmed(ctx, tr.Reservation, "payment")
	r.fx.notify(ctx, tr.Reservation.OwnerID, notify.Confirmation(tr.Reservation))
	return tr.Reservation, nil
}

func (r *Reconciler) applyOutcome(ctx context.Context, sig models.PaymentSignal) error {
	var lastErr error
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		res, err := r.store.GetReservation(ctx, sig.ReservationID)
		if err != nil {
			return storeError(err)
		}

		if sig.Outcome == models.OutcomeApproved {
			lastErr = r.approve(ctx, res, sig)
		} else {
			lastErr = r.reject(ctx, res, sig)
		}
		if !errors.Is(lastErr, database.ErrConcurrentModification) {
			return lastErr
		}
	}
	return fmt.Errorf("failed to apply payment outcome for %s: %w", sig.ReservationID, lastErr)
}

func (r *Reconciler) approve(ctx context.Context, res *models.Reservation, sig models.PaymentSignal) error {
	ledger := ledgerEntry(res, sig, models.PaymentGateway)

	if res.Status == models.ReservationCancelled {
		return r.lateApproval(ctx, res, ledger)
	}

	tr, err := r.store.TransitionReservation(ctx, database.ReservationTransition{
		ReservationID: res.ID,
		To:            models.ReservationConfirmed,
		From:          []models.ReservationStatus{models.ReservationPendingPayment},
		Payment:       ledger,
	})
	var te *database.TransitionError
	if errors.As(err, &te) && te.From == string(models.ReservationCancelled) {
		return r.lateApproval(ctx, res, ledger)
	}
	if err != nil {
		return err
	}
	if tr.LedgerInserted {
		r.fx.publish(events.EventPaymentRecorded, paymentPayload(ledger))
	}
	if !tr.Changed {
		return domain.ErrDuplicateSignal
	}

	metrics.IncPaymentSignal(string(sig.Outcome), "applied")
	r.logger.Info().Str("reservation_id", res.ID).Msg("payment approved, reservation confirmed")
	r.fx.confirmed(ctx, tr.Reservation, "payment")
	r.fx.notify(ctx, tr.Reservation.OwnerID, notify.Confirmation(tr.Reservation))
	return nil
}

// lateApproval records money received for a reservation that was already
// cancelled. The status stays cancelled; reconciling funds is manual.
func (r *Reconciler) lateApproval(ctx context.Context, res *models.Reservation, ledger *models.Payment) error {
	inserted, err := r.store.RecordPayment(ctx, ledger)
	if err != nil {
		return err
	}
	if !inserted {
		return domain.ErrDuplicateSignal
	}
	metrics.IncPaymentSignal(string(models.OutcomeApproved), "late")
	r.fx.publish(events.EventPaymentRecorded, paymentPayload(ledger))
	r.logger.Warn().
		Str("reservation_id", res.ID).
		Int64("amount", ledger.Amount).
		Msg("payment approved for a cancelled reservation, manual refund required")
	return nil
}

func (r *Reconciler) reject(ctx context.Context, res *models.Reservation, sig models.PaymentSignal) error {
	if res.Status == models.ReservationConfirmed {
		metrics.IncPaymentSignal(string(sig.Outcome), "ignored")
		r.logger.Warn().Str("reservation_id", res.ID).Str("outcome", string(sig.Outcome)).
			Msg("payment failure for a confirmed reservation ignored")
		return nil
	}

	tr, err := r.store.TransitionReservation(ctx, database.ReservationTransition{
		ReservationID: res.ID,
		To:            models.ReservationCancelled,
		From:          []models.ReservationStatus{models.ReservationPendingPayment},
		Payment:       ledgerEntry(res, sig, models.PaymentGateway),
		PromoteWindow: r.notifyWindow,
		Trigger:       models.TriggerPayment,
	})
	var te *database.TransitionError
	if errors.As(err, &te) && te.From == string(models.ReservationConfirmed) {
		metrics.IncPaymentSignal(string(sig.Outcome), "ignored")
		r.logger.Warn().Str("reservation_id", res.ID).Msg("payment failure for a confirmed reservation ignored")
		return nil
	}
	if err != nil {
		return err
	}
	if !tr.Changed {
		return domain.ErrDuplicateSignal
	}

	metrics.IncPaymentSignal(string(sig.Outcome), "applied")
	r.logger.Info().Str("reservation_id", res.ID).Str("outcome", string(sig.Outcome)).Msg("payment failed, reservation cancelled")
	r.fx.publishReservation(events.EventReservationCancelled, tr.Reservation, "payment")
	r.fx.promoted(ctx, tr.Promotion)
	return nil
}

// CancelReservation cancels on behalf of the owner or an administrator and
// promotes the next waiting entry for the freed slot. Cancelling an already
// cancelled reservation is a no-op.
func (r *Reconciler) CancelReservation(ctx context.Context, id string, actor models.Actor) (*models.Reservation, error) {
	res, err := r.store.GetReservation(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if actor.ID != res.OwnerID && !actor.IsAdmin() {
		return nil, domain.ErrNotAuthorized
	}

	var tr *database.TransitionResult
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		tr, err = r.store.TransitionReservation(ctx, database.ReservationTransition{
			ReservationID: id,
			To:            models.ReservationCancelled,
			PromoteWindow: r.notifyWindow,
			Trigger:       models.TriggerCancellation,
		})
		if !errors.Is(err, database.ErrConcurrentModification) {
			break
		}
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !tr.Changed {
		return tr.Reservation, nil
	}

	cancelled := tr.Reservation
	r.logger.Info().Str("reservation_id", id).Str("actor_id", actor.ID).Str("previous", string(tr.Previous)).Msg("reservation cancelled")
	r.fx.audit(ctx, models.AuditReservationCancel, "reservation", id, actor, "from "+string(tr.Previous))
	if tr.Previous == models.ReservationConfirmed || cancelled.CalendarEventID != "" {
		r.fx.removeCalendar(ctx, cancelled)
	}
	r.fx.publishReservation(events.EventReservationCancelled, cancelled, actor.ID)
	if actor.ID != cancelled.OwnerID {
		r.fx.notify(ctx, cancelled.OwnerID, notify.Cancellation(cancelled))
	}
	r.fx.promoted(ctx, tr.Promotion)
	return cancelled, nil
}

// ConfirmManualPayment records an offline payment verified by an
// administrator and confirms the reservation if it was still pending.
func (r *Reconciler) ConfirmManualPayment(ctx context.Context, id string, actor models.Actor) (*models.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrNotAuthorized
	}
	res, err := r.store.GetReservation(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	ledger := ledgerEntry(res, models.PaymentSignal{ReservationID: id, Outcome: models.OutcomeApproved}, models.PaymentManual)
	tr, err := r.store.TransitionReservation(ctx, database.ReservationTransition{
		ReservationID: id,
		To:            models.ReservationConfirmed,
		Payment:       ledger,
	})
	if err != nil {
		return nil, storeError(err)
	}

	if tr.LedgerInserted {
		r.fx.audit(ctx, models.AuditReservationAdminConfirm, "reservation", id, actor, fmt.Sprintf("amount %d", ledger.Amount))
		r.fx.publish(events.EventPaymentRecorded, paymentPayload(ledger))
	}
	if tr.Changed {
		r.fx.confirmed(ctx, tr.Reservation, actor.ID)
		r.fx.notify(ctx, tr.Reservation.OwnerID, notify.Confirmation(tr.Reservation))
	}
	return tr.Reservation, nil
}

func ledgerEntry(res *models.Reservation, sig models.PaymentSignal, method models.PaymentMethod) *models.Payment {
	amount := sig.Amount
	if amount <= 0 {
		amount = res.TotalPrice
	}
	return &models.Payment{
		ReservationID:     res.ID,
		Amount:            amount,
		Method:            method,
		Status:            sig.Outcome,
		ExternalReference: models.LedgerReference(res.ID, sig.Outcome),
		GatewayPaymentID:  sig.GatewayPaymentID,
	}
}

func paymentPayload(p *models.Payment) events.PaymentEventPayload {
	return events.PaymentEventPayload{
		ReservationID: p.ReservationID,
		Outcome:       string(p.Status),
		Amount:        p.Amount,
		Method:        string(p.Method),
		OccurredAt:    time.Now().UTC(),
	}
}

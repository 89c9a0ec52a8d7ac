package service

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/notify"
	"courtbook/internal/timeslot"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type BookingRequest struct {
	Date            time.Time
	StartTime       timeslot.TimeOfDay
	DurationMinutes int
	PaymentMethod   models.PaymentMethod
	OwnerID         string
}

type BookingResult struct {
	Reservation *models.Reservation
	// RedirectURL is the hosted checkout for gateway payments.
	RedirectURL string
	// ConvertedEntry is the waitlist entry the booking converted, if any.
	ConvertedEntry *models.WaitlistEntry
}

type BookingOptions struct {
	MaxAdvanceDays int
	// AutoConfirm confirms gateway reservations as soon as the preference exists.
	AutoConfirm  bool
	NotifyWindow time.Duration
	Location     *time.Location
	ClientURL    string
}

type BookingService struct {
	store      ReservationStore
	checker    *AvailabilityChecker
	settings   domain.SettingsReader
	reconciler *Reconciler
	fx         *effects
	opts       BookingOptions
	dayLocks   *keyedMutex
	now        func() time.Time
	logger     *zerolog.Logger
}

func NewBookingService(store ReservationStore, settings domain.SettingsReader, reconciler *Reconciler, collab Collaborators, opts BookingOptions, logger *zerolog.Logger) *BookingService {
	if opts.MaxAdvanceDays <= 0 {
		opts.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if opts.NotifyWindow <= 0 {
		opts.NotifyWindow = models.DefaultNotifyWindow
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &BookingService{
		store:      store,
		checker:    NewAvailabilityChecker(store, settings),
		settings:   settings,
		reconciler: reconciler,
		fx:         newEffects(collab, opts.ClientURL, opts.Location, logger),
		opts:       opts,
		dayLocks:   newKeyedMutex(),
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock replaces the clock used for date validation.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *BookingService) CheckAvailability(ctx context.Context, date time.Time, start timeslot.TimeOfDay, durationMinutes int, excludeReservationID string) (*Availability, error) {
	if !models.IsAllowedDuration(durationMinutes) {
		return nil, domain.NewValidationError("duration_minutes", "must be one of %v", models.AllowedDurations)
	}
	return s.checker.CheckAvailability(ctx, date, start, durationMinutes, excludeReservationID)
}

func (s *BookingService) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return res, nil
}

// ListReservations returns the reservations of a day, optionally restricted
// to the given statuses.
func (s *BookingService) ListReservations(ctx context.Context, date time.Time, statuses ...models.ReservationStatus) ([]*models.Reservation, error) {
	return s.store.ListReservationsByDate(ctx, timeslot.DateOf(date), statuses...)
}

// ValidateBookingDate rejects days in the past and days beyond the
// advance booking horizon. A start that already passed today is rejected too.
func (s *BookingService) ValidateBookingDate(date time.Time, start timeslot.TimeOfDay) error {
	now := s.now().In(s.opts.Location)
	today := timeslot.DateOf(now)
	day := timeslot.DateOf(date)

	if day.Before(today) {
		return domain.NewValidationError("date", "%s is in the past", timeslot.FormatDate(day))
	}
	if day.Equal(today) && start < timeslot.Of(now) {
		return domain.NewValidationError("start_time", "%s has already passed", start)
	}
	if day.After(today.AddDate(0, 0, s.opts.MaxAdvanceDays)) {
		return domain.NewValidationError("date", "bookings open %d days ahead", s.opts.MaxAdvanceDays)
	}
	return nil
}

func (s *BookingService) validate(ctx context.Context, req BookingRequest) (timeslot.Interval, error) {
	if req.OwnerID == "" {
		return timeslot.Interval{}, domain.NewValidationError("owner_id", "is required")
	}
	if !models.IsAllowedDuration(req.DurationMinutes) {
		return timeslot.Interval{}, domain.NewValidationError("duration_minutes", "must be one of %v", models.AllowedDurations)
	}
	if _, err := models.ParsePaymentMethod(string(req.PaymentMethod)); err != nil {
		return timeslot.Interval{}, domain.NewValidationError("payment_method", "%v", err)
	}
	if req.PaymentMethod == models.PaymentGateway && s.fx.c.Gateway == nil {
		return timeslot.Interval{}, domain.NewValidationError("payment_method", "gateway payments are not available")
	}

	iv, err := timeslot.NewInterval(req.StartTime, req.DurationMinutes)
	if err != nil {
		return timeslot.Interval{}, domain.NewValidationError("start_time", "%v", err)
	}
	if err := s.ValidateBookingDate(req.Date, req.StartTime); err != nil {
		return timeslot.Interval{}, err
	}

	hours, err := s.settings.OperatingHours(ctx)
	if err != nil {
		return timeslot.Interval{}, fmt.Errorf("failed to read operating hours: %w", err)
	}
	if !iv.Within(hours) {
		return timeslot.Interval{}, domain.NewValidationError("start_time", "%s is outside operating hours %s", iv, hours)
	}
	return iv, nil
}

// CreateReservation admits a booking. The slot is re-checked inside the
// admission transaction while the per-date lock is held, so two concurrent
// requests for overlapping slots never both succeed.
func (s *BookingService) CreateReservation(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	iv, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	pricePerHour, err := s.settings.PricePerHour(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read price: %w", err)
	}
	hours, err := s.settings.OperatingHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read operating hours: %w", err)
	}

	status := models.ReservationConfirmed
	if req.PaymentMethod == models.PaymentGateway {
		status = models.ReservationPendingPayment
	}
	res := &models.Reservation{
		ID:              uuid.NewString(),
		Date:            timeslot.DateOf(req.Date),
		StartTime:       iv.Start,
		EndTime:         iv.End,
		DurationMinutes: req.DurationMinutes,
		Status:          status,
		PaymentMethod:   req.PaymentMethod,
		TotalPrice:      models.PriceFor(pricePerHour, req.DurationMinutes),
		OwnerID:         req.OwnerID,
	}

	var conflict *domain.ConflictError
	unlock := s.dayLocks.Lock(timeslot.FormatDate(res.Date))
	admitted, err := s.store.CreateReservationAtomic(ctx, res, func(schedule *models.DaySchedule) error {
		if c := Evaluate(schedule, iv, "", hours); c != nil {
			conflict = c
			return c
		}
		return nil
	})
	unlock()
	if conflict != nil {
		metrics.IncBookingConflict(conflict.Source)
		s.logger.Info().
			Str("owner_id", req.OwnerID).
			Str("date", timeslot.FormatDate(res.Date)).
			Str("slot", iv.String()).
			Str("source", conflict.Source).
			Msg("booking conflict")
		return nil, conflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	metrics.IncReservationCreated(string(res.PaymentMethod))
	s.logger.Info().
		Str("reservation_id", res.ID).
		Str("owner_id", res.OwnerID).
		Str("date", timeslot.FormatDate(res.Date)).
		Str("slot", iv.String()).
		Str("status", string(res.Status)).
		Msg("reservation created")
	s.fx.publishReservation(events.EventReservationCreated, res, res.OwnerID)

	result := &BookingResult{Reservation: res, ConvertedEntry: admitted.Converted}
	if admitted.Converted != nil {
		metrics.IncWaitlistTransition(string(models.WaitlistConverted))
		s.fx.publishWaitlist(events.EventWaitlistConverted, admitted.Converted, "")
	}

	if res.PaymentMethod == models.PaymentManual {
		s.fx.confirmed(ctx, res, res.OwnerID)
		alias, err := s.settings.BankAlias(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read bank alias")
		}
		s.fx.notify(ctx, res.OwnerID, notify.ManualPayment(res, alias))
		return result, nil
	}

	if err := s.startCheckout(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// startCheckout creates the gateway preference. A gateway failure cancels
// the reservation so the slot is freed again.
func (s *BookingService) startCheckout(ctx context.Context, result *BookingResult) error {
	res := result.Reservation
	owner := s.fx.owner(ctx, res.OwnerID)
	if owner == nil {
		owner = &models.Owner{ID: res.OwnerID}
	}

	pref, err := s.fx.c.Gateway.CreatePreference(ctx, res, owner)
	if err != nil {
		s.compensate(ctx, res, err)
		return fmt.Errorf("failed to create payment preference: %w",
			&domain.CollaboratorError{Collaborator: "payment_gateway", Err: err})
	}

	if err := s.store.SetPaymentPreference(ctx, res.ID, pref.ID); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to store payment preference")
	} else {
		res.PaymentPreferenceID = pref.ID
	}
	result.RedirectURL = pref.RedirectURL

	if !s.opts.AutoConfirm && !pref.Sandbox {
		return nil
	}

	confirmed, err := s.reconciler.AutoConfirm(ctx, res.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("auto-confirm failed")
		return nil
	}
	result.Reservation = confirmed
	return nil
}

func (s *BookingService) compensate(ctx context.Context, res *models.Reservation, cause error) {
	tr, err := s.store.TransitionReservation(ctx, database.ReservationTransition{
		ReservationID: res.ID,
		To:            models.ReservationCancelled,
		PromoteWindow: s.opts.NotifyWindow,
		Trigger:       models.TriggerPayment,
	})
	if err != nil {
		s.logger.Error().Err(err).AnErr("cause", cause).Str("reservation_id", res.ID).
			Msg("failed to cancel reservation after gateway failure")
		return
	}
	s.logger.Warn().Err(cause).Str("reservation_id", res.ID).Msg("gateway failed, reservation cancelled")
	if tr.Changed {
		s.fx.publishReservation(events.EventReservationCancelled, tr.Reservation, "payment")
	}
	s.fx.promoted(ctx, tr.Promotion)
}

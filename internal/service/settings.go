package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/rs/zerolog"
)

// SettingsService reads typed settings at the point of use, falling back to
// the configured booking defaults for missing or malformed values.
type SettingsService struct {
	store    domain.SettingsStore
	defaults config.BookingConfig
	fx       *effects
	logger   *zerolog.Logger
}

func NewSettingsService(store domain.SettingsStore, defaults config.BookingConfig, collab Collaborators, logger *zerolog.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		defaults: defaults,
		fx:       newEffects(collab, "", nil, logger),
		logger:   logger,
	}
}

func (s *SettingsService) PricePerHour(ctx context.Context) (int64, error) {
	raw, ok, err := s.store.GetSetting(ctx, models.SettingPricePerHour)
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.defaults.PricePerHour, nil
	}
	price, err := parsePrice(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("value", raw).Msg("invalid price_per_hour setting, using default")
		return s.defaults.PricePerHour, nil
	}
	return price, nil
}

func (s *SettingsService) OperatingHours(ctx context.Context) (timeslot.Interval, error) {
	start, err := s.hour(ctx, models.SettingOperatingStartHour, s.defaults.OperatingStartHour)
	if err != nil {
		return timeslot.Interval{}, err
	}
	end, err := s.hour(ctx, models.SettingOperatingEndHour, s.defaults.OperatingEndHour)
	if err != nil {
		return timeslot.Interval{}, err
	}
	if err := config.ValidateOperatingHours(start, end); err != nil {
		s.logger.Warn().Err(err).Msg("operating hours settings inconsistent, using defaults")
		start, end = s.defaults.OperatingStartHour, s.defaults.OperatingEndHour
	}
	return timeslot.Interval{Start: timeslot.Hour(start), End: timeslot.Hour(end)}, nil
}

func (s *SettingsService) BankAlias(ctx context.Context) (string, error) {
	v, _, err := s.store.GetSetting(ctx, models.SettingBankAlias)
	return v, err
}

func (s *SettingsService) hour(ctx context.Context, key string, def int) (int, error) {
	raw, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	h, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Str("value", raw).Msg("invalid hour setting, using default")
		return def, nil
	}
	return h, nil
}

// Get returns a raw setting value. Missing keys return ErrNotFound.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("setting %s: %w", key, domain.ErrNotFound)
	}
	return v, nil
}

func (s *SettingsService) List(ctx context.Context) ([]models.Setting, error) {
	return s.store.ListSettings(ctx)
}

// Set validates and stores a setting. Only administrators may change settings.
func (s *SettingsService) Set(ctx context.Context, key, value string, actor models.Actor) error {
	if !actor.IsAdmin() {
		return domain.ErrNotAuthorized
	}
	value = strings.TrimSpace(value)
	if err := s.validate(ctx, key, value); err != nil {
		return err
	}
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.fx.audit(ctx, models.AuditSettingUpdate, "setting", key, actor, value)
	s.logger.Info().Str("key", key).Str("actor_id", actor.ID).Msg("setting updated")
	return nil
}

func (s *SettingsService) validate(ctx context.Context, key, value string) error {
	switch key {
	case models.SettingPricePerHour:
		if _, err := parsePrice(value); err != nil {
			return domain.NewValidationError(key, "%v", err)
		}
	case models.SettingOperatingStartHour, models.SettingOperatingEndHour:
		h, err := strconv.Atoi(value)
		if err != nil {
			return domain.NewValidationError(key, "must be an integer hour")
		}
		hours, err := s.OperatingHours(ctx)
		if err != nil {
			return err
		}
		start, end := hours.Start.Hour(), hours.End.Hour()
		if key == models.SettingOperatingStartHour {
			start = h
		} else {
			end = h
		}
		if err := config.ValidateOperatingHours(start, end); err != nil {
			return domain.NewValidationError(key, "%v", err)
		}
	case models.SettingBankAlias:
	default:
		return domain.NewValidationError("key", "unknown setting %q", key)
	}
	return nil
}

func parsePrice(raw string) (int64, error) {
	price, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, errors.New("price must be an integer amount in minor units")
	}
	if price <= 0 {
		return 0, errors.New("price must be positive")
	}
	return price, nil
}

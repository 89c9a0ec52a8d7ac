package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/google"
	"courtbook/internal/logging"
	"courtbook/internal/models"
	"courtbook/internal/notify"
	"courtbook/internal/payment"
	"courtbook/internal/repository"
	"courtbook/internal/service"
	"courtbook/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// app holds the wired services shared by every command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	db       *database.DB
	redis    *redis.Client
	bus      *events.EventBus
	claims   domain.ClaimStore
	calendar *worker.CalendarWorker

	settings   *service.SettingsService
	reconciler *service.Reconciler
	booking    *service.BookingService
	waitlist   *service.WaitlistService
	reminders  *service.ReminderService
	blocks     *service.BlockService

	closer io.Closer
}

func loadConfigAndLogger(configPath string) (*config.Config, zerolog.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, *baseLogger, closer, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, closer io.Closer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, closer: closer}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	a.db = db

	if err := seedSettings(ctx, db, cfg.App.SettingsSeed, &logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	a.redis = initRedis(ctx, cfg, &logger)
	a.claims = initClaimStore(a.redis, &logger)

	a.bus = events.NewEventBus()
	a.bus.OnError(func(event *events.Event, err error) {
		logger.Warn().Err(err).Str("event_type", event.Type).Msg("event handler failed")
	})

	loc := cfg.Location()
	collab := service.Collaborators{
		Owners:   db,
		Notifier: initNotifier(cfg, logger),
		Events:   a.bus,
		Audit:    db,
		Gateway:  payment.NewSandboxGateway(checkoutURL(cfg), cfg.Payments.Sandbox),
	}
	if a.calendar = initCalendar(cfg, db, a.redis, logger); a.calendar != nil {
		collab.Calendar = a.calendar
	}

	a.settings = service.NewSettingsService(db, cfg.Booking, collab, &a.logger)
	a.reconciler = service.NewReconciler(db, collab, cfg.Waitlist.NotifyWindow, cfg.App.ClientURL, loc, &a.logger)
	a.booking = service.NewBookingService(db, a.settings, a.reconciler, collab, service.BookingOptions{
		MaxAdvanceDays: cfg.Booking.MaxAdvanceDays,
		AutoConfirm:    cfg.Payments.AutoConfirm,
		NotifyWindow:   cfg.Waitlist.NotifyWindow,
		Location:       loc,
		ClientURL:      cfg.App.ClientURL,
	}, &a.logger)
	a.waitlist = service.NewWaitlistService(db, collab, service.WaitlistOptions{
		NotifyWindow:      cfg.Waitlist.NotifyWindow,
		AdminNotifyWindow: cfg.Waitlist.AdminNotifyWindow,
		BatchSize:         cfg.Scheduler.BatchSize,
		ClientURL:         cfg.App.ClientURL,
		Location:          loc,
	}, &a.logger)
	a.reminders = service.NewReminderService(db, a.claims, collab, service.ReminderOptions{
		LeadMin:  cfg.Scheduler.ReminderLeadMin,
		LeadMax:  cfg.Scheduler.ReminderLeadMax,
		Location: loc,
	}, &a.logger)
	a.blocks = service.NewBlockService(db, collab, loc, &a.logger)

	return a, nil
}

func (a *app) Close() {
	_ = repository.Close(a.redis)
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func seedSettings(ctx context.Context, db *database.DB, path string, logger *zerolog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warn().Str("settings_path", path).Msg("settings seed file not found, skipping")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("settings_path", path).Msg("read settings seed")
		return err
	}

	var seed struct {
		Settings []models.Setting `yaml:"settings"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("settings_path", path).Msg("parse settings seed")
		return err
	}
	return db.SeedSettings(ctx, seed.Settings)
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(client)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initClaimStore(client *redis.Client, logger *zerolog.Logger) domain.ClaimStore {
	memory := repository.NewMemoryClaimStore()
	if client == nil {
		return memory
	}
	return repository.NewFailoverClaimStore(repository.NewRedisClaimStore(client), memory, logger)
}

func initNotifier(cfg *config.Config, logger zerolog.Logger) domain.Notifier {
	fallback := notify.NewLogSender(logger)
	if cfg.Notifications.TelegramToken == "" {
		return notify.NewDispatcher(fallback, nil, cfg.Notifications, logger)
	}

	bot, err := notify.NewTelegramBot(cfg.Notifications.TelegramToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications go to the log")
		return notify.NewDispatcher(fallback, nil, cfg.Notifications, logger)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return notify.NewDispatcher(notify.NewTelegramSender(bot), fallback, cfg.Notifications, logger)
}

func initCalendar(cfg *config.Config, db *database.DB, client *redis.Client, logger zerolog.Logger) *worker.CalendarWorker {
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		return nil
	}
	calendar := google.NewCalendarClient(cfg.Google, cfg.Location())
	return worker.NewCalendarWorker(db, calendar, client, worker.PolicyFromConfig(cfg.Worker), cfg.Worker.PollInterval,
		logger.With().Str("component", "calendar_worker").Logger())
}

func checkoutURL(cfg *config.Config) string {
	if cfg.Payments.CheckoutURL != "" {
		return cfg.Payments.CheckoutURL
	}
	return cfg.App.ClientURL
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata"

	"courtbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	Booking       BookingConfig       `yaml:"booking"`
	Payments      PaymentsConfig      `yaml:"payments"`
	Waitlist      WaitlistConfig      `yaml:"waitlist"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Google        GoogleConfig        `yaml:"google"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Worker        WorkerConfig        `yaml:"worker"`
}

// EnvProduction is the app.environment value of live deployments.
const EnvProduction = "production"

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
	ClientURL   string `yaml:"client_url"`
	// SettingsSeed is an optional YAML file with initial key/value settings.
	SettingsSeed string `yaml:"settings_seed"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// BookingConfig holds fallbacks for settings that are missing from the
// settings table.
type BookingConfig struct {
	PricePerHour       int64 `yaml:"price_per_hour"`
	OperatingStartHour int   `yaml:"operating_start_hour"`
	OperatingEndHour   int   `yaml:"operating_end_hour"`
	MaxAdvanceDays     int   `yaml:"max_advance_days"`
}

type PaymentsConfig struct {
	// Sandbox makes the gateway issue sandbox preferences, which admission
	// confirms without waiting for a payment signal.
	Sandbox bool `yaml:"sandbox"`
	// AutoConfirm confirms gateway reservations right after the preference
	// is created. Meant for sandbox environments without a reachable webhook.
	AutoConfirm bool   `yaml:"auto_confirm"`
	CheckoutURL string `yaml:"checkout_url"`
}

type WaitlistConfig struct {
	NotifyWindow      time.Duration `yaml:"notify_window"`
	AdminNotifyWindow time.Duration `yaml:"admin_notify_window"`
}

type SchedulerConfig struct {
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	ExpiryInterval   time.Duration `yaml:"expiry_interval"`
	ReminderLeadMin  time.Duration `yaml:"reminder_lead_min"`
	ReminderLeadMax  time.Duration `yaml:"reminder_lead_max"`
	BatchSize        int           `yaml:"batch_size"`
}

type NotificationsConfig struct {
	TelegramToken string  `yaml:"telegram_token"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CalendarID   string `yaml:"calendar_id"`
	TimeZone     string `yaml:"time_zone"`
}

type RabbitMQConfig struct {
	URL               string `yaml:"url"`
	Exchange          string `yaml:"exchange"`
	PaymentQueue      string `yaml:"payment_queue"`
	PaymentRoutingKey string `yaml:"payment_routing_key"`
	EventsEnabled     bool   `yaml:"events_enabled"`
}

type WorkerConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if err := ValidateOperatingHours(c.Booking.OperatingStartHour, c.Booking.OperatingEndHour); err != nil {
		return err
	}

	if c.Booking.PricePerHour <= 0 {
		return errors.New("booking price_per_hour must be positive")
	}

	if c.Waitlist.NotifyWindow <= 0 || c.Waitlist.AdminNotifyWindow <= 0 {
		return errors.New("waitlist notify windows must be positive")
	}

	if c.Scheduler.ReminderLeadMin >= c.Scheduler.ReminderLeadMax {
		return fmt.Errorf("reminder lead window is empty: %s >= %s",
			c.Scheduler.ReminderLeadMin, c.Scheduler.ReminderLeadMax)
	}

	if c.App.Environment == EnvProduction && (c.Payments.Sandbox || c.Payments.AutoConfirm) {
		return errors.New("payments sandbox and auto_confirm are not allowed in production")
	}

	if c.App.Timezone != "" {
		if _, err := time.LoadLocation(c.App.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
		}
	}

	return nil
}

// ValidateOperatingHours checks an opening/closing hour pair.
func ValidateOperatingHours(start, end int) error {
	if start < 0 || end > 24 || start >= end {
		return fmt.Errorf("invalid operating hours %d-%d", start, end)
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.App.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "courtbook"
	}
	if c.App.ClientURL == "" {
		c.App.ClientURL = "http://localhost:5173"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Booking.PricePerHour == 0 {
		c.Booking.PricePerHour = models.DefaultPricePerHour
	}
	if c.Booking.OperatingStartHour == 0 && c.Booking.OperatingEndHour == 0 {
		c.Booking.OperatingStartHour = models.DefaultOperatingStartHour
		c.Booking.OperatingEndHour = models.DefaultOperatingEndHour
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}

	if c.Waitlist.NotifyWindow == 0 {
		c.Waitlist.NotifyWindow = models.DefaultNotifyWindow
	}
	if c.Waitlist.AdminNotifyWindow == 0 {
		c.Waitlist.AdminNotifyWindow = models.DefaultAdminNotifyWindow
	}

	if c.Scheduler.ReminderInterval == 0 {
		c.Scheduler.ReminderInterval = 5 * time.Minute
	}
	if c.Scheduler.ExpiryInterval == 0 {
		c.Scheduler.ExpiryInterval = time.Minute
	}
	if c.Scheduler.ReminderLeadMin == 0 {
		c.Scheduler.ReminderLeadMin = 25 * time.Minute
	}
	if c.Scheduler.ReminderLeadMax == 0 {
		c.Scheduler.ReminderLeadMax = 35 * time.Minute
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 100
	}

	if c.Notifications.RatePerSecond == 0 {
		c.Notifications.RatePerSecond = 20
	}
	if c.Notifications.Burst == 0 {
		c.Notifications.Burst = 5
	}

	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "courtbook.events"
	}
	if c.RabbitMQ.PaymentQueue == "" {
		c.RabbitMQ.PaymentQueue = "courtbook.payment-outcomes"
	}
	if c.RabbitMQ.PaymentRoutingKey == "" {
		c.RabbitMQ.PaymentRoutingKey = "payment.outcome"
	}

	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelay == 0 {
		c.Worker.InitialDelay = 2 * time.Second
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = time.Minute
	}
	if c.Worker.BackoffFactor == 0 {
		c.Worker.BackoffFactor = 2
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
}

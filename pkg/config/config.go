package config

import (
	"time"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Queue          QueueConfig          `mapstructure:"queue"`
	Collaborators  CollaboratorsConfig  `mapstructure:"collaborators"`
	Lifecycle      LifecycleConfig      `mapstructure:"lifecycle"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}

type DatabaseConfig struct {
	// Driver is postgres or sqlite
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// RedisConfig is optional; an empty URL falls back to the in-process cache
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	SubscriptionTTL time.Duration `mapstructure:"subscription_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type QueueConfig struct {
	// Driver is nats or rabbitmq
	Driver      string `mapstructure:"driver"`
	NATSURL     string `mapstructure:"nats_url"`
	RabbitMQURL string `mapstructure:"rabbitmq_url"`
}

type CollaboratorsConfig struct {
	Timeout      time.Duration      `mapstructure:"timeout"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Station      EndpointConfig     `mapstructure:"station"`
	User         EndpointConfig     `mapstructure:"user"`
	Notification NotificationConfig `mapstructure:"notification"`
}

type EndpointConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PaymentConfig struct {
	// Provider is ledger (the payment service over REST) or stripe
	Provider string        `mapstructure:"provider"`
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Stripe   StripeConfig  `mapstructure:"stripe"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	PaymentMethod string `mapstructure:"payment_method"`
}

type NotificationConfig struct {
	// Transport is queue or http
	Transport string        `mapstructure:"transport"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LifecycleConfig struct {
	BasePricePerKWh          float64       `mapstructure:"base_price_per_kwh"`
	DepositAmount            float64       `mapstructure:"deposit_amount"`
	Currency                 string        `mapstructure:"currency"`
	ChargingRateKWhPerMinute float64       `mapstructure:"charging_rate_kwh_per_minute"`
	BatteryCapacityKWh       float64       `mapstructure:"battery_capacity_kwh"`
	InitialSOCPercent        float64       `mapstructure:"initial_soc_percent"`
	FullChargeSOCPercent     float64       `mapstructure:"full_charge_soc_percent"`
	MinBookingLeadTime       time.Duration `mapstructure:"min_booking_lead_time"`
	DurationTolerance        time.Duration `mapstructure:"duration_tolerance"`
	CheckInOpensBefore       time.Duration `mapstructure:"check_in_opens_before"`
	CheckInGracePeriod       time.Duration `mapstructure:"check_in_grace_period"`
	ReminderLeadMin          time.Duration `mapstructure:"reminder_lead_min"`
	ReminderLeadMax          time.Duration `mapstructure:"reminder_lead_max"`
	StaleSessionAfter        time.Duration `mapstructure:"stale_session_after"`
	MaxBillableMinutes       float64       `mapstructure:"max_billable_minutes"`
}

// Policy converts the lifecycle section into the policy the services run with
func (c LifecycleConfig) Policy() *domain.LifecyclePolicy {
	return &domain.LifecyclePolicy{
		BasePricePerKWh:          c.BasePricePerKWh,
		DepositAmount:            c.DepositAmount,
		Currency:                 c.Currency,
		ChargingRateKWhPerMinute: c.ChargingRateKWhPerMinute,
		BatteryCapacityKWh:       c.BatteryCapacityKWh,
		InitialSOCPercent:        c.InitialSOCPercent,
		FullChargeSOCPercent:     c.FullChargeSOCPercent,
		MinBookingLeadTime:       c.MinBookingLeadTime,
		DurationTolerance:        c.DurationTolerance,
		CheckInOpensBefore:       c.CheckInOpensBefore,
		CheckInGracePeriod:       c.CheckInGracePeriod,
		ReminderLeadMin:          c.ReminderLeadMin,
		ReminderLeadMax:          c.ReminderLeadMax,
		StaleSessionAfter:        c.StaleSessionAfter,
		MaxBillableMinutes:       c.MaxBillableMinutes,
	}
}

type SchedulerConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	ReminderInterval     time.Duration `mapstructure:"reminder_interval"`
	NoShowInterval       time.Duration `mapstructure:"no_show_interval"`
	StaleSessionInterval time.Duration `mapstructure:"stale_session_interval"`
	RunOnStart           bool          `mapstructure:"run_on_start"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	ServiceName string       `mapstructure:"service_name"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

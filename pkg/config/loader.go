package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// Load reads config.yaml from the usual locations, then applies APP_* and
// the bare deploy-time environment variables on top.
func Load() (*Config, error) {
	return load(viper.New(), "./configs", ".", "/app/configs")
}

// LoadFile reads an explicit config file instead of searching for one
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper, searchPaths ...string) (*Config, error) {
	if len(searchPaths) > 0 {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("queue.nats_url", "NATS_URL", "APP_QUEUE_NATS_URL")
	v.BindEnv("queue.rabbitmq_url", "RABBITMQ_URL", "APP_QUEUE_RABBITMQ_URL")
	v.BindEnv("collaborators.payment.url", "PAYMENT_SERVICE_URL", "APP_COLLABORATORS_PAYMENT_URL")
	v.BindEnv("collaborators.station.url", "STATION_SERVICE_URL", "APP_COLLABORATORS_STATION_URL")
	v.BindEnv("collaborators.user.url", "USER_SERVICE_URL", "APP_COLLABORATORS_USER_URL")
	v.BindEnv("collaborators.notification.url", "NOTIFICATION_SERVICE_URL", "APP_COLLABORATORS_NOTIFICATION_URL")
	v.BindEnv("collaborators.payment.stripe.secret_key", "STRIPE_SECRET_KEY", "APP_COLLABORATORS_PAYMENT_STRIPE_SECRET_KEY")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL", "APP_LOGGING_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || len(searchPaths) == 0 {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "charging-lifecycle")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("cors.enabled", true)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("cache.subscription_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", time.Minute)

	v.SetDefault("queue.driver", "nats")

	v.SetDefault("collaborators.timeout", 5*time.Second)
	v.SetDefault("collaborators.payment.provider", "ledger")
	v.SetDefault("collaborators.notification.transport", "queue")

	p := domain.DefaultLifecyclePolicy()
	v.SetDefault("lifecycle.base_price_per_kwh", p.BasePricePerKWh)
	v.SetDefault("lifecycle.deposit_amount", p.DepositAmount)
	v.SetDefault("lifecycle.currency", p.Currency)
	v.SetDefault("lifecycle.charging_rate_kwh_per_minute", p.ChargingRateKWhPerMinute)
	v.SetDefault("lifecycle.battery_capacity_kwh", p.BatteryCapacityKWh)
	v.SetDefault("lifecycle.initial_soc_percent", p.InitialSOCPercent)
	v.SetDefault("lifecycle.full_charge_soc_percent", p.FullChargeSOCPercent)
	v.SetDefault("lifecycle.min_booking_lead_time", p.MinBookingLeadTime)
	v.SetDefault("lifecycle.duration_tolerance", p.DurationTolerance)
	v.SetDefault("lifecycle.check_in_opens_before", p.CheckInOpensBefore)
	v.SetDefault("lifecycle.check_in_grace_period", p.CheckInGracePeriod)
	v.SetDefault("lifecycle.reminder_lead_min", p.ReminderLeadMin)
	v.SetDefault("lifecycle.reminder_lead_max", p.ReminderLeadMax)
	v.SetDefault("lifecycle.stale_session_after", p.StaleSessionAfter)
	v.SetDefault("lifecycle.max_billable_minutes", p.MaxBillableMinutes)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_interval", 5*time.Minute)
	v.SetDefault("scheduler.no_show_interval", time.Minute)
	v.SetDefault("scheduler.stale_session_interval", time.Hour)
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.min_requests", 3)
	v.SetDefault("circuit_breaker.failure_ratio", 0.6)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("opentelemetry.service_name", "charging-lifecycle")
	v.SetDefault("opentelemetry.jaeger.sampler_param", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	switch strings.ToLower(c.Collaborators.Payment.Provider) {
	case "ledger":
		if c.Collaborators.Payment.URL == "" {
			errs = append(errs, errors.New("collaborators.payment.url is required for the ledger provider"))
		}
	case "stripe":
		if c.Collaborators.Payment.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("collaborators.payment.stripe.secret_key is required for the stripe provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported payment provider: %s", c.Collaborators.Payment.Provider))
	}
	if c.Collaborators.Station.URL == "" {
		errs = append(errs, errors.New("collaborators.station.url is required"))
	}
	if c.Collaborators.User.URL == "" {
		errs = append(errs, errors.New("collaborators.user.url is required"))
	}
	switch strings.ToLower(c.Collaborators.Notification.Transport) {
	case "queue":
	case "http":
		if c.Collaborators.Notification.URL == "" {
			errs = append(errs, errors.New("collaborators.notification.url is required for the http transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported notification transport: %s", c.Collaborators.Notification.Transport))
	}
	if c.Lifecycle.ReminderLeadMin > c.Lifecycle.ReminderLeadMax {
		errs = append(errs, errors.New("lifecycle.reminder_lead_min must not exceed reminder_lead_max"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// TimeoutFor returns the endpoint timeout, falling back to the shared collaborator timeout
func (c CollaboratorsConfig) TimeoutFor(endpoint time.Duration) time.Duration {
	if endpoint > 0 {
		return endpoint
	}
	return c.Timeout
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Email provider names accepted by email.provider.
const (
	EmailProviderLog      = "log"
	EmailProviderSendGrid = "sendgrid"
)

// Config holds runtime configuration values for the reminder service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	LogLevel    string
	DatabaseURL string
	AutoMigrate bool
	DBPool      PoolConfig
	RedisURL    string
	NATSURL     string
	NATSPrefix  string
	JWTSecret   string

	GraceWindow         time.Duration
	SeedDefaultPolicies bool
	PolicyCacheTTL      time.Duration

	Dispatch DispatchConfig
	Delivery DeliveryConfig
	Email    EmailConfig

	NotificationKeepAlive time.Duration
	EventsRateLimit       int
	CORSAllowOrigins      string
}

// PoolConfig bounds the database connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DispatchConfig tunes the due reminder dispatcher.
type DispatchConfig struct {
	Schedule    string
	BatchSize   int
	Timeout     time.Duration
	MaxFailures uint
}

// DeliveryConfig tunes the email delivery queue.
type DeliveryConfig struct {
	Schedule      string
	BatchSize     int
	Timeout       time.Duration
	SendTimeout   time.Duration
	MaxAttempts   uint
	BackoffBase   time.Duration
	BackoffFactor float64
	BackoffMax    time.Duration
	StaleAfter    time.Duration
}

// EmailConfig selects and configures the email transport.
type EmailConfig struct {
	Provider       string
	SendGridAPIKey string
	FromName       string
	FromAddress    string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "GEMA Reminders")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("nats.subject_prefix", "gema")
	v.SetDefault("reminders.grace_window", "0s")
	v.SetDefault("reminders.seed_default_policies", true)
	v.SetDefault("reminders.policy_cache_ttl", "5m")
	v.SetDefault("dispatch.schedule", "@every 1m")
	v.SetDefault("dispatch.batch_size", 100)
	v.SetDefault("dispatch.timeout", "50s")
	v.SetDefault("dispatch.max_failures", 5)
	v.SetDefault("delivery.schedule", "@every 30s")
	v.SetDefault("delivery.batch_size", 50)
	v.SetDefault("delivery.timeout", "25s")
	v.SetDefault("delivery.send_timeout", "10s")
	v.SetDefault("delivery.max_attempts", 5)
	v.SetDefault("delivery.backoff_base", "1m")
	v.SetDefault("delivery.backoff_factor", 2.0)
	v.SetDefault("delivery.backoff_max", "1h")
	v.SetDefault("delivery.stale_after", "10m")
	v.SetDefault("email.provider", EmailProviderLog)
	v.SetDefault("email.from_name", "GEMA")
	v.SetDefault("notifications.keepalive", "25s")
	v.SetDefault("events.rate_limit", 50)
}

func fromViper(v *viper.Viper) (Config, error) {
	durations := map[string]time.Duration{}
	for _, key := range []string{
		"database.conn_max_lifetime",
		"reminders.grace_window",
		"reminders.policy_cache_ttl",
		"dispatch.timeout",
		"delivery.timeout",
		"delivery.send_timeout",
		"delivery.backoff_base",
		"delivery.backoff_max",
		"delivery.stale_after",
		"notifications.keepalive",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		LogLevel:            strings.ToLower(v.GetString("log.level")),
		DatabaseURL:         v.GetString("database.url"),
		AutoMigrate:         v.GetBool("database.auto_migrate"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		NATSPrefix:          v.GetString("nats.subject_prefix"),
		JWTSecret:           v.GetString("jwt.secret"),
		GraceWindow:         durations["reminders.grace_window"],
		SeedDefaultPolicies: v.GetBool("reminders.seed_default_policies"),
		PolicyCacheTTL:      durations["reminders.policy_cache_ttl"],
		DBPool: PoolConfig{
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: durations["database.conn_max_lifetime"],
		},
		Dispatch: DispatchConfig{
			Schedule:    v.GetString("dispatch.schedule"),
			BatchSize:   v.GetInt("dispatch.batch_size"),
			Timeout:     durations["dispatch.timeout"],
			MaxFailures: v.GetUint("dispatch.max_failures"),
		},
		Delivery: DeliveryConfig{
			Schedule:      v.GetString("delivery.schedule"),
			BatchSize:     v.GetInt("delivery.batch_size"),
			Timeout:       durations["delivery.timeout"],
			SendTimeout:   durations["delivery.send_timeout"],
			MaxAttempts:   v.GetUint("delivery.max_attempts"),
			BackoffBase:   durations["delivery.backoff_base"],
			BackoffFactor: v.GetFloat64("delivery.backoff_factor"),
			BackoffMax:    durations["delivery.backoff_max"],
			StaleAfter:    durations["delivery.stale_after"],
		},
		Email: EmailConfig{
			Provider:       strings.ToLower(strings.TrimSpace(v.GetString("email.provider"))),
			SendGridAPIKey: v.GetString("email.sendgrid_api_key"),
			FromName:       v.GetString("email.from_name"),
			FromAddress:    v.GetString("email.from_address"),
		},
		NotificationKeepAlive: durations["notifications.keepalive"],
		EventsRateLimit:       v.GetInt("events.rate_limit"),
		CORSAllowOrigins:      v.GetString("cors.allow_origins"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.Dispatch.BatchSize <= 0 || c.Delivery.BatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	if c.Delivery.MaxAttempts == 0 {
		return fmt.Errorf("delivery.max_attempts must be positive")
	}
	if c.Delivery.BackoffFactor < 1 {
		return fmt.Errorf("delivery.backoff_factor must be at least 1")
	}
	if c.Delivery.BackoffMax < c.Delivery.BackoffBase {
		return fmt.Errorf("delivery.backoff_max must not be below delivery.backoff_base")
	}

	switch c.Email.Provider {
	case EmailProviderLog:
	case EmailProviderSendGrid:
		if c.Email.SendGridAPIKey == "" || c.Email.FromAddress == "" {
			return fmt.Errorf("sendgrid provider requires email.sendgrid_api_key and email.from_address")
		}
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	Stripe
	Cache
	Workers
	Server
	Payment
	Poll
	Session
}

type Stripe struct {
	SecretKey       string
	PublishableKey  string
	WebhookSecret   string
	SimulatedReader bool
	RateRPS         int
	RateBurst       int
}

type Cache struct {
	Host     string
	Port     string
	Password string
}

type Workers struct {
	FollowUpCount      int
	FollowUpBufferSize int
	StorageCount       int
	StorageBufferSize  int
	MaxRetries         int
}

type Server struct {
	Port        string
	Environment string
	Debug       bool
}

type Payment struct {
	Amount   int64
	Currency string
}

type Poll struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
	MaxAttempts     int
}

type Session struct {
	TTL time.Duration
}

// Load reads the configuration from the environment. The Stripe keys have no
// defaults; every missing one is named in the returned error.
func Load() (*Config, error) {
	cfg := &Config{
		Stripe: Stripe{
			SecretKey:       getEnvString("STRIPE_SECRET_KEY", ""),
			PublishableKey:  getEnvString("STRIPE_PUBLISHABLE_KEY", ""),
			WebhookSecret:   getEnvString("STRIPE_WEBHOOK_SECRET", ""),
			SimulatedReader: getEnvBool("SIMULATED_READER", false),
			RateRPS:         getEnvInt("PROVIDER_RATE_RPS", 20),
			RateBurst:       getEnvInt("PROVIDER_RATE_BURST", 5),
		},
		Cache: Cache{
			Host:     getEnvString("CACHE_HOST", "localhost"),
			Port:     getEnvString("CACHE_PORT", "6379"),
			Password: getEnvString("CACHE_PASSWORD", ""),
		},
		Workers: Workers{
			FollowUpCount:      getEnvInt("FOLLOWUP_WORKERS_COUNT", 2),
			FollowUpBufferSize: getEnvInt("FOLLOWUP_WORKERS_EVENTS_BUFFER_SIZE", 100),
			StorageCount:       getEnvInt("STORAGE_WORKERS_COUNT", 1),
			StorageBufferSize:  getEnvInt("STORAGE_WORKERS_EVENTS_BUFFER_SIZE", 100),
			MaxRetries:         getEnvInt("WORKERS_MAX_RETRIES", 5),
		},
		Server: Server{
			Port:        getEnvString("SERVER_PORT", "3000"),
			Environment: getEnvString("ENVIRONMENT", "development"),
			Debug:       getEnvBool("DEBUG", false),
		},
		Payment: Payment{
			Amount:   int64(getEnvInt("PAYMENT_AMOUNT", 1000)),
			Currency: strings.ToLower(getEnvString("PAYMENT_CURRENCY", "usd")),
		},
		Poll: Poll{
			InitialInterval: getEnvMillis("POLL_INITIAL_INTERVAL_MS", 250*time.Millisecond),
			MaxInterval:     getEnvMillis("POLL_MAX_INTERVAL_MS", 2*time.Second),
			Timeout:         getEnvMillis("POLL_TIMEOUT_MS", 60*time.Second),
			MaxAttempts:     getEnvInt("POLL_MAX_ATTEMPTS", 120),
		},
		Session: Session{
			TTL: getEnvMillis("SESSION_TTL_MS", 900000*time.Millisecond),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Stripe.PublishableKey == "" {
		missing = append(missing, "STRIPE_PUBLISHABLE_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: add %s to the environment", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.Payment.Amount <= 0 {
		return fmt.Errorf("PAYMENT_AMOUNT must be positive, got %d", c.Payment.Amount)
	}

	return nil
}

// IsProduction reports whether the server runs outside local development.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnvString(key string, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return defaultValue
	}

	return time.Duration(ms) * time.Millisecond
}

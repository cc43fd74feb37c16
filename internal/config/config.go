package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the storefront API
// process. Every value has a default so the binary runs locally with no
// backing services: memory storage, simulated payments, logged
// notifications.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisNamespace string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	StripeAPIKey        string
	StripeCurrency      string
	StripePaymentMethod string

	PaymentAuthorizeDelay time.Duration
	PaymentConfirmDelay   time.Duration
	PaymentPhaseTimeout   time.Duration

	EmailEndpoint    string
	EmailAPIKey      string
	RendererEndpoint string

	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration

	LogLevel      string
	RunMigrations bool
}

// StorageBackend names the key/value backend chosen by the config:
// postgres wins over redis, memory is the fallback.
func (c ServerConfig) StorageBackend() string {
	switch {
	case c.PGDSN != "":
		return "postgres"
	case c.RedisAddr != "":
		return "redis"
	}
	return "memory"
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:              ":8080",
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           120 * time.Second,
		ShutdownTimeout:       15 * time.Second,
		RedisNamespace:        "tahwisa:",
		KafkaTopic:            "agency-bookings",
		StripeCurrency:        "dzd",
		PaymentAuthorizeDelay: 1500 * time.Millisecond,
		PaymentConfirmDelay:   2000 * time.Millisecond,
		PaymentPhaseTimeout:   30 * time.Second,
		SessionIdleTimeout:    30 * time.Minute,
		SessionSweepInterval:  time.Minute,
		LogLevel:              "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisNamespace, "REDIS_NAMESPACE")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.StripeAPIKey = strings.TrimSpace(os.Getenv("STRIPE_API_KEY"))
	setStringFromEnv(&cfg.StripeCurrency, "STRIPE_CURRENCY")
	cfg.StripePaymentMethod = strings.TrimSpace(os.Getenv("STRIPE_PAYMENT_METHOD"))

	setDurationFromEnv(&cfg.PaymentAuthorizeDelay, "PAYMENT_AUTHORIZE_DELAY", &errs)
	setDurationFromEnv(&cfg.PaymentConfirmDelay, "PAYMENT_CONFIRM_DELAY", &errs)
	setDurationFromEnv(&cfg.PaymentPhaseTimeout, "PAYMENT_PHASE_TIMEOUT", &errs)

	cfg.EmailEndpoint = strings.TrimSpace(os.Getenv("EMAIL_ENDPOINT"))
	cfg.EmailAPIKey = os.Getenv("EMAIL_API_KEY")
	cfg.RendererEndpoint = strings.TrimSpace(os.Getenv("RENDERER_ENDPOINT"))

	setDurationFromEnv(&cfg.SessionIdleTimeout, "SESSION_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.SessionSweepInterval, "SESSION_SWEEP_INTERVAL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.PaymentAuthorizeDelay < 0 || cfg.PaymentConfirmDelay < 0 {
		errs = append(errs, fmt.Errorf("payment delays must be >= 0"))
	}
	if cfg.PaymentPhaseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PAYMENT_PHASE_TIMEOUT must be > 0"))
	}
	if cfg.SessionIdleTimeout <= 0 || cfg.SessionSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_IDLE_TIMEOUT and SESSION_SWEEP_INTERVAL must be > 0"))
	}
	if cfg.RunMigrations && cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("MIGRATE requires PG_DSN"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig is the agency-side consumer of booking notices.
type ConsumerConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RetryAttempts int
	RetryDelay    time.Duration
	LogLevel      string
}

func defaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		MetricsAddr:   ":2112",
		KafkaBrokers:  []string{"localhost:9092"},
		KafkaTopic:    "agency-bookings",
		KafkaGroup:    "agency-consumer",
		RedisAddr:     "localhost:6379",
		RetryAttempts: 3,
		RetryDelay:    200 * time.Millisecond,
		LogLevel:      "info",
	}
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := defaultConsumerConfig()
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setIntFromEnv(&cfg.RetryAttempts, "REDIS_RETRY_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.RetryDelay, "REDIS_RETRY_DELAY", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("REDIS_RETRY_ATTEMPTS must be > 0"))
	}
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must name at least one broker"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

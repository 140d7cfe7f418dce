package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultPostgresMaxConns   = 16
	defaultPostgresPingWait   = 5 * time.Second
	defaultKafkaTopic         = "marketplace.notifications"
	defaultKafkaClientID      = "craftmarket-api"
	defaultTaxRate            = "0.10"
	defaultShippingFlat       = "0"
	defaultOrderNumberPrefix  = "ORD"
	defaultQuoteExpiryDays    = 7
	defaultQuoteSweepInterval = 10 * time.Minute
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Pricing  PricingConfig
	Quotes   QuoteConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	URL         string
	MaxConns    int32
	PingTimeout time.Duration
}

// KafkaConfig stores broker addresses and the notification topic.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// PricingConfig controls order totals derivation.
type PricingConfig struct {
	TaxRate           decimal.Decimal
	ShippingFlat      decimal.Decimal
	OrderNumberPrefix string
}

// QuoteConfig controls quote expiry behaviour.
type QuoteConfig struct {
	ExpiryDays    int
	SweepInterval time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables. Precedence: explicit map > OS env > .env file > defaults.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Postgres: PostgresConfig{
			URL:         stringWithDefault(lookup, "API_POSTGRES_URL", ""),
			MaxConns:    int32(intWithDefault(lookup, "API_POSTGRES_MAX_CONNS", defaultPostgresMaxConns)),
			PingTimeout: durationWithDefault(lookup, "API_POSTGRES_PING_TIMEOUT", defaultPostgresPingWait),
		},
		Kafka: KafkaConfig{
			Brokers:  csvWithDefault(lookup, "API_KAFKA_BROKERS"),
			Topic:    stringWithDefault(lookup, "API_KAFKA_TOPIC", defaultKafkaTopic),
			ClientID: stringWithDefault(lookup, "API_KAFKA_CLIENT_ID", defaultKafkaClientID),
		},
		Pricing: PricingConfig{
			TaxRate:           decimalWithDefault(lookup, "API_PRICING_TAX_RATE", defaultTaxRate),
			ShippingFlat:      decimalWithDefault(lookup, "API_PRICING_SHIPPING_FLAT", defaultShippingFlat),
			OrderNumberPrefix: stringWithDefault(lookup, "API_PRICING_ORDER_NUMBER_PREFIX", defaultOrderNumberPrefix),
		},
		Quotes: QuoteConfig{
			ExpiryDays:    intWithDefault(lookup, "API_QUOTES_EXPIRY_DAYS", defaultQuoteExpiryDays),
			SweepInterval: durationWithDefault(lookup, "API_QUOTES_SWEEP_INTERVAL", defaultQuoteSweepInterval),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Postgres.URL) == "" {
		missing = append(missing, "Postgres.URL")
	}
	if cfg.Postgres.MaxConns <= 0 {
		missing = append(missing, "Postgres.MaxConns")
	}
	if cfg.Pricing.TaxRate.IsNegative() {
		missing = append(missing, "Pricing.TaxRate")
	}
	if cfg.Pricing.ShippingFlat.IsNegative() {
		missing = append(missing, "Pricing.ShippingFlat")
	}
	if cfg.Quotes.ExpiryDays <= 0 {
		missing = append(missing, "Quotes.ExpiryDays")
	}
	if cfg.Quotes.SweepInterval <= 0 {
		missing = append(missing, "Quotes.SweepInterval")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func decimalWithDefault(lookup func(string) (string, bool), key, fallback string) decimal.Decimal {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
	}
	return decimal.RequireFromString(fallback)
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

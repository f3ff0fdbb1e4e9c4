// Package config loads service settings in order: .env (if present) →
// environment → flags. Flags win.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN renders the pgx connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Pricing stores the tunable pricing constants.
type Pricing struct {
	BasePrice    float64
	PricePerKm   float64
	MinimumPrice float64
	CourierShare float64
}

// Stripe stores the payment processor settings. An empty SecretKey
// disables the payment gateway entirely.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

// Kafka stores the notification broker settings. Empty brokers disable
// publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// PaymentGateway stores the retry behavior of the payment gateway.
type PaymentGateway struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Routing stores the external route provider settings. An empty BaseURL
// falls back to the straight-line estimate.
type Routing struct {
	BaseURL string
	Timeout time.Duration
}

// Escrow stores the retry sweep settings.
type Escrow struct {
	SweepInterval time.Duration
	SweepBatch    int
}

// Config stores all service settings.
type Config struct {
	Port             int
	OperationTimeout time.Duration
	DB               DB
	Pricing          Pricing
	Stripe           Stripe
	Kafka            Kafka
	Gateway          PaymentGateway
	Routing          Routing
	Escrow           Escrow
}

// Load reads the configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:             defaultPort,
		OperationTimeout: defaultOperationTimeout,
		DB:               DefaultDB(),
		Pricing:          DefaultPricing(),
		Stripe:           DefaultStripe(),
		Kafka:            DefaultKafka(),
		Gateway:          DefaultPaymentGateway(),
		Routing:          DefaultRouting(),
		Escrow:           DefaultEscrow(),
	}

	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.OperationTimeout, err = envDuration("OPERATION_TIMEOUT", cfg.OperationTimeout); err != nil {
		return nil, err
	}

	cfg.DB.Host = envStr("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envStr("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envStr("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envStr("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envStr("POSTGRES_DB", cfg.DB.Name)
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		return nil, fmt.Errorf("invalid postgres port: %q", cfg.DB.Port)
	}

	if cfg.Pricing.BasePrice, err = envFloat("PRICING_BASE_PRICE", cfg.Pricing.BasePrice); err != nil {
		return nil, err
	}
	if cfg.Pricing.PricePerKm, err = envFloat("PRICING_PRICE_PER_KM", cfg.Pricing.PricePerKm); err != nil {
		return nil, err
	}
	if cfg.Pricing.MinimumPrice, err = envFloat("PRICING_MINIMUM_PRICE", cfg.Pricing.MinimumPrice); err != nil {
		return nil, err
	}
	if cfg.Pricing.CourierShare, err = envFloat("PRICING_COURIER_SHARE", cfg.Pricing.CourierShare); err != nil {
		return nil, err
	}

	cfg.Stripe.SecretKey = envStr("STRIPE_SECRET_KEY", cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = envStr("STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret)
	cfg.Stripe.SuccessURL = envStr("STRIPE_SUCCESS_URL", cfg.Stripe.SuccessURL)
	cfg.Stripe.CancelURL = envStr("STRIPE_CANCEL_URL", cfg.Stripe.CancelURL)
	cfg.Stripe.Currency = envStr("STRIPE_CURRENCY", cfg.Stripe.Currency)

	if v := envStr("KAFKA_BROKERS", ""); v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
	}
	cfg.Kafka.Topic = envStr("KAFKA_NOTIFY_TOPIC", cfg.Kafka.Topic)

	if cfg.Gateway.MaxAttempts, err = envInt("PAYMENT_RETRY_MAX_ATTEMPTS", cfg.Gateway.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.Gateway.BaseDelay, err = envDuration("PAYMENT_RETRY_BASE_DELAY", cfg.Gateway.BaseDelay); err != nil {
		return nil, err
	}
	if cfg.Gateway.MaxDelay, err = envDuration("PAYMENT_RETRY_MAX_DELAY", cfg.Gateway.MaxDelay); err != nil {
		return nil, err
	}

	cfg.Routing.BaseURL = envStr("ROUTING_BASE_URL", cfg.Routing.BaseURL)
	if cfg.Routing.Timeout, err = envDuration("ROUTING_TIMEOUT", cfg.Routing.Timeout); err != nil {
		return nil, err
	}

	if cfg.Escrow.SweepInterval, err = envDuration("ESCROW_SWEEP_INTERVAL", cfg.Escrow.SweepInterval); err != nil {
		return nil, err
	}
	if cfg.Escrow.SweepBatch, err = envInt("ESCROW_SWEEP_BATCH", cfg.Escrow.SweepBatch); err != nil {
		return nil, err
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.DB.Host, "db-host", cfg.DB.Host, "postgres host")
	pflag.DurationVar(&cfg.Escrow.SweepInterval, "sweep-interval", cfg.Escrow.SweepInterval, "escrow retry sweep interval")
	if err := parseFlags(); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Pricing.CourierShare <= 0 || cfg.Pricing.CourierShare >= 1 {
		return nil, fmt.Errorf("courier share must be in (0, 1), got %v", cfg.Pricing.CourierShare)
	}
	return cfg, nil
}

func parseFlags() error {
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

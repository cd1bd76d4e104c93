// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env    string // APP_ENV (dev, test, prod)
	Port   string // APP_PORT
	DBUser string
	DBPass string // may be empty
	DBHost string
	DBPort string
	DBName string
	// AutoMigrate applies the schema at startup (DB_AUTO_MIGRATE).
	AutoMigrate bool

	JWTSecret string // verifies bearer tokens
	// AccessTTLMin is only used by cmd/devtoken when minting tokens.
	AccessTTLMin int

	PaymentSecret  string        // PAYMENT_SHARED_SECRET, HMAC key of payment assertions
	StripeKey      string        // STRIPE_SECRET_KEY; empty disables order creation
	Currency       string        // PAYMENT_CURRENCY
	TaxBasisPoints int           // TAX_BASIS_POINTS, 1000 = 10%
	StoreTimeout   time.Duration // STORE_TIMEOUT
	GatewayTimeout time.Duration // GATEWAY_TIMEOUT

	OverdueCron      string        // OVERDUE_CRON
	OverdueBatch     int           // OVERDUE_BATCH
	CheckoutCacheTTL time.Duration // CHECKOUT_CACHE_TTL
	EventsLogDir     string        // EVENTS_LOG_DIR
}

// Load reads the configuration and exits the process when a required
// variable is missing or malformed.
func Load() Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse reads the configuration from the environment.  Every missing or
// malformed required variable is reported in the returned error.
func Parse() (Config, error) {
	var p parser
	cfg := Config{
		Env:         p.must("APP_ENV"),
		Port:        p.must("APP_PORT"),
		DBUser:      p.must("DB_USER"),
		DBPass:      os.Getenv("DB_PASS"),
		DBHost:      p.must("DB_HOST"),
		DBPort:      p.must("DB_PORT"),
		DBName:      p.must("DB_NAME"),
		AutoMigrate: envBool("DB_AUTO_MIGRATE", false),

		JWTSecret:    p.must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),

		PaymentSecret:  p.must("PAYMENT_SHARED_SECRET"),
		StripeKey:      os.Getenv("STRIPE_SECRET_KEY"),
		Currency:       strings.ToLower(envStr("PAYMENT_CURRENCY", "usd")),
		TaxBasisPoints: envInt("TAX_BASIS_POINTS", 0),
		StoreTimeout:   envDur("STORE_TIMEOUT", 5*time.Second),
		GatewayTimeout: envDur("GATEWAY_TIMEOUT", 10*time.Second),

		OverdueCron:      envStr("OVERDUE_CRON", "@every 5m"),
		OverdueBatch:     envInt("OVERDUE_BATCH", 100),
		CheckoutCacheTTL: envDur("CHECKOUT_CACHE_TTL", 15*time.Minute),
		EventsLogDir:     envStr("EVENTS_LOG_DIR", "logs"),
	}
	if cfg.TaxBasisPoints < 0 || cfg.TaxBasisPoints > 10000 {
		p.fail("TAX_BASIS_POINTS must be between 0 and 10000, got %d", cfg.TaxBasisPoints)
	}
	if cfg.StoreTimeout <= 0 || cfg.GatewayTimeout <= 0 {
		p.fail("STORE_TIMEOUT and GATEWAY_TIMEOUT must be positive")
	}
	if err := p.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parser accumulates problems so startup reports all of them at once.
type parser struct {
	problems []string
}

// must retrieves the value of a required environment variable.
func (p *parser) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		p.fail("missing required env var: %s", key)
	}
	return v
}

func (p *parser) fail(format string, args ...any) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

func (p *parser) err() error {
	if len(p.problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(p.problems, "; "))
}

// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload" // Load .env for local development

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/pkg/db"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string
	LogLevel    string
	AutoMigrate bool
	DB          db.Config
	Metering    MeteringConfig
	Stripe      StripeConfig
}

// MeteringConfig holds the free-tier limits and the wallet prices of metered actions.
type MeteringConfig struct {
	Limits      domain.FreeTierLimits
	UsageWindow time.Duration
	Prices      domain.PriceList
}

// StripeConfig holds the webhook secret and the price IDs of the paid plans.
type StripeConfig struct {
	WebhookSecret string
	PricePlans    map[string]domain.Plan
}

// LoadConfig loads configuration from environment variables.
// It returns an AppConfig instance or an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	dbPort, err := getInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	retries, err := getInt("DB_CONNECT_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	autoMigrate, err := getBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return nil, err
	}

	metering, err := loadMetering()
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		ServerPort:  getenv("SERVER_PORT", "8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		AutoMigrate: autoMigrate,
		DB: db.Config{
			Host:           getenv("DB_HOST", "localhost"),
			Port:           dbPort,
			User:           getenv("DB_USER", "user"),
			Password:       getenv("DB_PASSWORD", "password"),
			DBName:         getenv("DB_NAME", "leadflow"),
			SSLMode:        getenv("DB_SSLMODE", "disable"),
			ConnectRetries: retries,
		},
		Metering: metering,
		Stripe:   loadStripe(),
	}, nil
}

func loadMetering() (MeteringConfig, error) {
	analyses, err := getInt("FREE_ANALYSES_LIMIT", 5)
	if err != nil {
		return MeteringConfig{}, err
	}
	enrichments, err := getInt("FREE_ENRICHMENTS_LIMIT", 25)
	if err != nil {
		return MeteringConfig{}, err
	}
	if analyses < 0 || enrichments < 0 {
		return MeteringConfig{}, fmt.Errorf("free tier limits must not be negative")
	}

	window, err := time.ParseDuration(getenv("USAGE_WINDOW", "720h"))
	if err != nil {
		return MeteringConfig{}, fmt.Errorf("invalid USAGE_WINDOW: %w", err)
	}

	postAnalysis, err := getPrice("PRICE_POST_ANALYSIS", "10.00")
	if err != nil {
		return MeteringConfig{}, err
	}
	enrichment, err := getPrice("PRICE_ENRICHMENT", "1.00")
	if err != nil {
		return MeteringConfig{}, err
	}

	return MeteringConfig{
		Limits:      domain.FreeTierLimits{Analyses: analyses, Enrichments: enrichments},
		UsageWindow: window,
		Prices: domain.PriceList{
			domain.ActionPostAnalysis: postAnalysis,
			domain.ActionEnrichment:   enrichment,
		},
	}, nil
}

func loadStripe() StripeConfig {
	plans := map[string]domain.Plan{}
	for key, plan := range map[string]domain.Plan{
		"STRIPE_PRICE_TIER_1": domain.PlanTier1,
		"STRIPE_PRICE_TIER_2": domain.PlanTier2,
		"STRIPE_PRICE_TIER_3": domain.PlanTier3,
	} {
		if priceID := os.Getenv(key); priceID != "" {
			plans[priceID] = plan
		}
	}
	return StripeConfig{
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PricePlans:    plans,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getPrice parses a major unit price such as "10.00" into minor units.
func getPrice(key, def string) (int64, error) {
	minor, err := domain.ParseMinor(getenv(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if minor <= 0 {
		return 0, fmt.Errorf("invalid %s: price must be positive", key)
	}
	return minor, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/kicksvault/storefront/internal/pricing"
)

type Config struct {
	Port         string
	Environment  string
	StoreBackend string
	Database     DatabaseConfig
	OrderAPI     OrderAPIConfig
	CatalogAPI   CatalogAPIConfig
	Pricing      PricingConfig
	LogLevel     string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type OrderAPIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// CatalogAPIConfig is optional. Without a base URL add-to-cart trusts the
// product sent by the client.
type CatalogAPIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type PricingConfig struct {
	VATRate                  decimal.Decimal
	FreeShippingThreshold    int64
	ReducedShippingThreshold int64
	ReducedShippingFee       int64
	StandardShippingFee      int64
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("STORE_BACKEND", "postgres")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ORDER_API_TIMEOUT", "15s")
	viper.SetDefault("CATALOG_API_TIMEOUT", "15s")
	viper.SetDefault("PRICING_VAT_RATE", "0.01")
	viper.SetDefault("SHIPPING_FREE_THRESHOLD", 1000000)
	viper.SetDefault("SHIPPING_REDUCED_THRESHOLD", 500000)
	viper.SetDefault("SHIPPING_REDUCED_FEE", 30000)
	viper.SetDefault("SHIPPING_STANDARD_FEE", 50000)

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	timeout, err := time.ParseDuration(getEnvOrViper("ORDER_API_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORDER_API_TIMEOUT: %w", err)
	}

	catalogTimeout, err := time.ParseDuration(getEnvOrViper("CATALOG_API_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_API_TIMEOUT: %w", err)
	}

	vatRate, err := decimal.NewFromString(getEnvOrViper("PRICING_VAT_RATE", "0.01"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_VAT_RATE: %w", err)
	}

	cfg := &Config{
		Port:         getEnvOrViper("PORT", "8080"),
		Environment:  getEnvOrViper("ENVIRONMENT", "development"),
		StoreBackend: getEnvOrViper("STORE_BACKEND", "postgres"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "storefront"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		OrderAPI: OrderAPIConfig{
			BaseURL: getEnvOrViper("ORDER_API_BASE_URL", ""),
			Token:   getEnvOrViper("ORDER_API_TOKEN", ""),
			Timeout: timeout,
		},
		CatalogAPI: CatalogAPIConfig{
			BaseURL: getEnvOrViper("CATALOG_API_BASE_URL", ""),
			Token:   getEnvOrViper("CATALOG_API_TOKEN", ""),
			Timeout: catalogTimeout,
		},
		Pricing: PricingConfig{
			VATRate:                  vatRate,
			FreeShippingThreshold:    viper.GetInt64("SHIPPING_FREE_THRESHOLD"),
			ReducedShippingThreshold: viper.GetInt64("SHIPPING_REDUCED_THRESHOLD"),
			ReducedShippingFee:       viper.GetInt64("SHIPPING_REDUCED_FEE"),
			StandardShippingFee:      viper.GetInt64("SHIPPING_STANDARD_FEE"),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.OrderAPI.BaseURL == "" {
		return nil, fmt.Errorf("ORDER_API_BASE_URL is required")
	}
	if cfg.StoreBackend != "postgres" && cfg.StoreBackend != "memory" {
		return nil, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", cfg.StoreBackend)
	}
	if cfg.Pricing.ReducedShippingThreshold > cfg.Pricing.FreeShippingThreshold {
		return nil, fmt.Errorf("SHIPPING_REDUCED_THRESHOLD must not exceed SHIPPING_FREE_THRESHOLD")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

// EngineConfig converts the loaded values into the pricing engine's configuration
func (p PricingConfig) EngineConfig() pricing.Config {
	return pricing.Config{
		VATRate: p.VATRate,
		Tiers: []pricing.ShippingTier{
			{MinSubtotal: p.FreeShippingThreshold, Fee: 0},
			{MinSubtotal: p.ReducedShippingThreshold, Fee: p.ReducedShippingFee},
		},
		StandardFee: p.StandardShippingFee,
	}
}

// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	AWS         AWSConfig
	Blockchain  BlockchainConfig
	Royalty     RoyaltyConfig
	Payment     PaymentConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
}

type BlockchainConfig struct {
	Network            string
	RPCURL             string
	ExplorerURL        string
	TokenMint          string
	MaxSubmitAttempts  int
	ConfirmPollSeconds int
	ConfirmTimeout     int // seconds, default for callers that pass none
}

// RoyaltyConfig carries the marketplace-wide split rules. The baseline is the
// fixed platform/creator-of-record share that every split starts with; the cap
// bounds the total of baseline plus all added recipients.
type RoyaltyConfig struct {
	BaselinePercent     float64
	CapPercent          float64
	BaselineRecipientID string
	BaselineWallet      string
}

type PaymentConfig struct {
	StripeSecretKey      string
	StripePublishableKey string
	PlatformFeePercent   float64
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "art_marketplace"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "art-marketplace-assets"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		Blockchain: BlockchainConfig{
			Network:            getEnv("BLOCKCHAIN_NETWORK", "mainnet-beta"),
			RPCURL:             getEnv("BLOCKCHAIN_RPC_URL", "https://api.mainnet-beta.solana.com"),
			ExplorerURL:        getEnv("BLOCKCHAIN_EXPLORER_URL", "https://explorer.solana.com"),
			TokenMint:          getEnv("BLOCKCHAIN_TOKEN_MINT", ""),
			MaxSubmitAttempts:  getEnvAsInt("BLOCKCHAIN_MAX_SUBMIT_ATTEMPTS", 5),
			ConfirmPollSeconds: getEnvAsInt("BLOCKCHAIN_CONFIRM_POLL_SECONDS", 2),
			ConfirmTimeout:     getEnvAsInt("BLOCKCHAIN_CONFIRM_TIMEOUT", 90),
		},
		Royalty: RoyaltyConfig{
			BaselinePercent:     getEnvAsFloat("ROYALTY_BASELINE_PERCENT", 5.0),
			CapPercent:          getEnvAsFloat("ROYALTY_CAP_PERCENT", 20.0),
			BaselineRecipientID: getEnv("ROYALTY_BASELINE_RECIPIENT_ID", "00000000-0000-0000-0000-000000000001"),
			BaselineWallet:      getEnv("ROYALTY_BASELINE_WALLET", ""),
		},
		Payment: PaymentConfig{
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			PlatformFeePercent:   getEnvAsFloat("PLATFORM_FEE_PERCENT", 5.0),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Royalty.BaselinePercent < 0 || c.Royalty.CapPercent <= 0 {
		return fmt.Errorf("royalty percentages must be positive")
	}

	if c.Royalty.BaselinePercent > c.Royalty.CapPercent {
		return fmt.Errorf("royalty baseline %.1f%% exceeds cap %.1f%%",
			c.Royalty.BaselinePercent, c.Royalty.CapPercent)
	}

	return nil
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode  string // Set via flag, not env
	LogLevel string
	DevLog   bool

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string

	// Server
	ApiPort        string
	ServiceApiPort string
	AppBaseURL     string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AwsS3Endpoint      string
	ImageBaseS3URL     string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// Payments
	PaymentAPIURL           string
	PaymentSecretKey        string
	PaymentWebhookSecret    string
	CheckoutSuccessURL      string
	CheckoutCancelURL       string
	ServicesListingFeeCents int64
	ListingCurrency         string
	WebhookDedupTTL         time.Duration

	// Listings & moderation
	FlagThreshold    int64
	StaleDraftTTL    time.Duration
	ExpirySweepCron  string
	DraftCleanupCron string
	FeedPageSize     int
	MaxPinnedPosts   int

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getHours := func(key, defaultValue string) (time.Duration, error) {
		v, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(v) * time.Hour, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "localboard")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.DevLog = getEnv("LOG_DEV", "false") == "true"
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.AppBaseURL = getEnv("APP_BASE_URL", "http://localhost:3000")

	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "us-east-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AwsS3Endpoint = getEnv("AWS_S3_ENDPOINT", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")

	cfg.PaymentAPIURL = getEnv("PAYMENT_API_URL", "https://api.stripe.com")
	cfg.PaymentSecretKey = getEnv("PAYMENT_SECRET_KEY", "")
	cfg.PaymentWebhookSecret = getEnv("PAYMENT_WEBHOOK_SECRET", "")
	cfg.CheckoutSuccessURL = getEnv("CHECKOUT_SUCCESS_URL", cfg.AppBaseURL+"/local/checkout/success?listing={LISTING_ID}")
	cfg.CheckoutCancelURL = getEnv("CHECKOUT_CANCEL_URL", cfg.AppBaseURL+"/local/checkout/cancelled?listing={LISTING_ID}")
	cfg.ListingCurrency = getEnv("LISTING_CURRENCY", "usd")
	cfg.ExpirySweepCron = getEnv("EXPIRY_SWEEP_CRON", "@every 15m")
	cfg.DraftCleanupCron = getEnv("DRAFT_CLEANUP_CRON", "@daily")

	cfg.RedisDB, err = getInt("REDIS_DB", "0")
	if err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "2048"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB", "10"); err != nil {
		return nil, err
	}

	fee, err := strconv.ParseInt(getEnv("SERVICES_LISTING_FEE_CENTS", "2900"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVICES_LISTING_FEE_CENTS: %w", err)
	}
	cfg.ServicesListingFeeCents = fee

	threshold, err := strconv.ParseInt(getEnv("FLAG_THRESHOLD", "5"), 10, 64)
	if err != nil || threshold < 1 {
		return nil, fmt.Errorf("invalid FLAG_THRESHOLD: must be a positive integer")
	}
	cfg.FlagThreshold = threshold

	if cfg.WebhookDedupTTL, err = getHours("WEBHOOK_DEDUP_TTL_HOURS", "72"); err != nil {
		return nil, err
	}
	if cfg.StaleDraftTTL, err = getHours("STALE_DRAFT_TTL_HOURS", "168"); err != nil {
		return nil, err
	}
	if cfg.FeedPageSize, err = getInt("FEED_PAGE_SIZE", "30"); err != nil {
		return nil, err
	}
	if cfg.FeedPageSize < 1 {
		return nil, fmt.Errorf("invalid FEED_PAGE_SIZE: must be a positive integer")
	}
	if cfg.MaxPinnedPosts, err = getInt("MAX_PINNED_POSTS", "3"); err != nil {
		return nil, err
	}

	// Rate Limiting
	if cfg.RateLimitSoftBucketSize, err = getInt("RATE_LIMIT_SOFT_BUCKET_SIZE", "20"); err != nil {
		return nil, err
	}
	if cfg.RateLimitSoftRefillRate, err = getInt("RATE_LIMIT_SOFT_REFILL_RATE", "5"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardBucketSize, err = getInt("RATE_LIMIT_HARD_BUCKET_SIZE", "60"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardRefillRate, err = getInt("RATE_LIMIT_HARD_REFILL_RATE", "20"); err != nil {
		return nil, err
	}

	return cfg, nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	// AdminToken guards the fulfillment status endpoints; empty disables them.
	AdminToken      string
	TierCatalogPath string

	Stripe      StripeConfig
	ImageSource ImageSourceConfig
	Sink        SinkConfig
	Fulfillment FulfillmentConfig
	Sweeper     SweeperConfig
	Alert       AlertConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Checkout    CheckoutConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	Currency           string
	SuccessURL         string
	CancelURL          string
	SignatureTolerance time.Duration
}

type ImageSourceConfig struct {
	BaseURL  string
	APIKey   string
	Query    string
	PerPage  int
	MaxPages int
	Timeout  time.Duration

	// SearchCacheTTL keeps search pages in memory; zero disables caching.
	SearchCacheTTL time.Duration
}

type SinkConfig struct {
	URL            string
	Secret         string
	SecretHeader   string
	Timeout        time.Duration
	IncludeArchive bool
}

type FulfillmentConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	// Store is "memory" or "database".
	Store string
	// Locker is "local" or "redis".
	Locker string
}

type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	MinAge    time.Duration
}

type AlertConfig struct {
	SlackWebhookURL string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	Recipients      []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	CheckoutRate  float64
	CheckoutBurst int
}

type CheckoutConfig struct {
	MaxTipCents     int64
	CompactMetadata bool
}

const (
	StoreMemory   = "memory"
	StoreDatabase = "database"

	LockerLocal = "local"
	LockerRedis = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:         getenv("APP_SERVICE", "mysteryart"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:    getenv("OTLP_ENDPOINT", "localhost:4317"),
		AdminToken:      strings.TrimSpace(getenv("ADMIN_TOKEN", "")),
		TierCatalogPath: strings.TrimSpace(getenv("TIER_CATALOG_PATH", "")),
		Stripe: StripeConfig{
			SecretKey:          strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:      strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			Currency:           strings.ToLower(getenv("STRIPE_CURRENCY", "usd")),
			SuccessURL:         getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:          getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/"),
			SignatureTolerance: getenvDuration("STRIPE_SIGNATURE_TOLERANCE", 5*time.Minute),
		},
		ImageSource: ImageSourceConfig{
			BaseURL:  getenv("PEXELS_BASE_URL", "https://api.pexels.com"),
			APIKey:   strings.TrimSpace(getenv("PEXELS_API_KEY", "")),
			Query:    getenv("PEXELS_QUERY", "art"),
			PerPage:  getenvInt("PEXELS_PER_PAGE", 15),
			MaxPages: getenvInt("PEXELS_MAX_PAGES", 100),
			Timeout:  getenvDuration("PEXELS_TIMEOUT", 10*time.Second),

			SearchCacheTTL: getenvDuration("PEXELS_SEARCH_CACHE_TTL", 10*time.Minute),
		},
		Sink: SinkConfig{
			URL:            strings.TrimSpace(getenv("ZAPIER_WEBHOOK_URL", "")),
			Secret:         strings.TrimSpace(getenv("ZAPIER_WEBHOOK_SECRET", "")),
			SecretHeader:   getenv("ZAPIER_SECRET_HEADER", "X-Zapier-Secret"),
			Timeout:        getenvDuration("ZAPIER_TIMEOUT", 10*time.Second),
			IncludeArchive: getenvBool("ZAPIER_INCLUDE_ARCHIVE", true),
		},
		Fulfillment: FulfillmentConfig{
			MaxAttempts:    getenvInt("FULFILLMENT_MAX_ATTEMPTS", 5),
			AttemptTimeout: getenvDuration("FULFILLMENT_ATTEMPT_TIMEOUT", 30*time.Second),
			Store:          strings.ToLower(getenv("FULFILLMENT_STORE", StoreMemory)),
			Locker:         strings.ToLower(getenv("FULFILLMENT_LOCKER", LockerLocal)),
		},
		Sweeper: SweeperConfig{
			Enabled:   getenvBool("SWEEPER_ENABLED", false),
			Interval:  getenvDuration("SWEEPER_INTERVAL", time.Minute),
			BatchSize: getenvInt("SWEEPER_BATCH_SIZE", 25),
			MinAge:    getenvDuration("SWEEPER_MIN_AGE", 30*time.Second),
		},
		Alert: AlertConfig{
			SlackWebhookURL: strings.TrimSpace(getenv("ALERT_SLACK_WEBHOOK_URL", "")),
			SMTPHost:        strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:        getenvInt("SMTP_PORT", 587),
			SMTPUsername:    getenv("SMTP_USERNAME", ""),
			SMTPPassword:    getenv("SMTP_PASSWORD", ""),
			SMTPFrom:        getenv("SMTP_FROM", "ops@mysteryart.local"),
			Recipients:      splitList(getenv("ALERT_EMAIL_RECIPIENTS", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", true),
			CheckoutRate:  getenvFloat("RATE_LIMIT_CHECKOUT_RATE", 1),
			CheckoutBurst: getenvInt("RATE_LIMIT_CHECKOUT_BURST", 5),
		},
		Checkout: CheckoutConfig{
			MaxTipCents:     getenvInt64("CHECKOUT_MAX_TIP_CENTS", 100_000),
			CompactMetadata: getenvBool("CHECKOUT_COMPACT_METADATA", false),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "mysteryart"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "mysteryart.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

// UsesDatabase reports whether fulfillment records are persisted through gorm.
func (c Config) UsesDatabase() bool {
	return c.Fulfillment.Store == StoreDatabase
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

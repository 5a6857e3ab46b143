package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	APIPort string
	AppMode string

	SessionSecret        []byte
	FocusThreshold       int
	TotalSecondsOverride int // 0 means use the bundle estimates
	RequireSessionToken  bool
	RedactBundleAnswers  bool

	AdminSecret string
	JWTKey      []byte
	JWTExp      time.Duration

	StorageDriver string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventQueueName      string
	TeamLockTTL         time.Duration
	RateLimitRequests   int // per client IP on instance and session creation
	RateLimitWindow     time.Duration
	TrustProxyHeaders   bool
	LogLevel            string
	LogFile             string
	OTLPEndpoint        string
	ShutdownGracePeriod time.Duration
}

// TestMode reports whether timing should be shortened for CI and test runs.
func (c *Config) TestMode() bool {
	return c.AppMode == "test"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:             getEnv("API_PORT", "8080"),
		AppMode:             getEnv("APP_MODE", "development"),
		SessionSecret:       []byte(getEnv("SESSION_SECRET", "dev_secret_change_me")),
		FocusThreshold:      getEnvAsInt("FOCUS_THRESHOLD", 3),
		RequireSessionToken: getEnvAsBool("REQUIRE_SESSION_TOKEN", true),
		RedactBundleAnswers: getEnvAsBool("REDACT_BUNDLE_ANSWERS", false),
		AdminSecret:         getEnv("ADMIN_SECRET", "tecstasy2026"),
		JWTKey:              []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:              time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 12)) * time.Hour,
		StorageDriver:       getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "user"),
		DBPassword:          getEnv("DB_PASSWORD", "password"),
		DBName:              getEnv("DB_NAME", "csi_locks"),
		DBSslMode:           getEnv("DB_SSLMODE", "disable"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		EventQueueName:      getEnv("EVENT_QUEUE_NAME", "session_events_queue"),
		TeamLockTTL:         time.Duration(getEnvAsInt("TEAM_LOCK_TTL_SECONDS", 10)) * time.Second,
		RateLimitRequests:   getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:     time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		TrustProxyHeaders:   getEnvAsBool("TRUST_PROXY_HEADERS", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             getEnv("LOG_FILE", "logs/app.log"),
		OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownGracePeriod: 15 * time.Second,
	}

	if getEnvAsBool("CI", false) {
		cfg.AppMode = "test"
	}
	if cfg.TestMode() {
		cfg.TotalSecondsOverride = getEnvAsInt("TEST_TOTAL_SECONDS", 15)
	}
	if cfg.FocusThreshold <= 0 {
		cfg.FocusThreshold = 3
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode
	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

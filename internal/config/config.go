package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPolicyHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	StorageRoot string

	SeedDemoData bool

	School SchoolConfig

	RateLimit RateLimitConfig

	BatchMetrics BatchMetricsConfig
}

// SchoolConfig is printed on generated statements and receipts.
type SchoolConfig struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

// RateLimitConfig configures the redis backed upload limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadActorRate             float64
	UploadActorBurst            int
	UploadConcurrencyTTLSeconds int
}

// BatchMetricsConfig selects where batch jobs push their results. An empty
// exporter disables pushing.
type BatchMetricsConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "schoolbill"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("SNOWFLAKE_NODE", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "schoolbill"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "schoolbill.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		StorageRoot: getenv("STORAGE_ROOT", "./data/documents"),

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),

		School: SchoolConfig{
			Name:    getenv("SCHOOL_NAME", "School"),
			Address: getenv("SCHOOL_ADDRESS", ""),
			Email:   getenv("SCHOOL_EMAIL", ""),
			Phone:   getenv("SCHOOL_PHONE", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:                     getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:                   strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:               strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:                     getenvInt("RATE_LIMIT_REDIS_DB", 0),
			UploadActorRate:             getenvFloat("RATE_LIMIT_UPLOAD_ACTOR_RATE", 0.5),
			UploadActorBurst:            getenvInt("RATE_LIMIT_UPLOAD_ACTOR_BURST", 10),
			UploadConcurrencyTTLSeconds: getenvInt("RATE_LIMIT_UPLOAD_CONCURRENCY_TTL_SECONDS", 120),
		},

		BatchMetrics: BatchMetricsConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("BATCH_METRICS_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("BATCH_METRICS_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("BATCH_METRICS_AUTH_TOKEN", "")),
		},
	}

	return cfg
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

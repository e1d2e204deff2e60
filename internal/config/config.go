package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Sale      SaleConfig
	Report    ReportConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port          string
	Env           string
	AllowedOrigin string
	// Location buckets transaction-number dates and report days.
	Location     *time.Location
	PhoneRegion  string
	SeedDemoData bool
}

type DatabaseConfig struct {
	// Driver is "postgres", "sqlite" or "memory". Empty picks postgres when
	// URL is set and memory otherwise.
	Driver string
	URL    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers    []string
	TopicSales string
}

type AuthConfig struct {
	Secret                string
	AccessTokenTTLMinutes int
	ManagerPIN            string
}

type SaleConfig struct {
	TransactionPrefix string
	TaxRatePercent    int
	// MaxAttempts covers transaction number conflicts; SerializationAttempts
	// covers lock and serialization aborts from the store.
	MaxAttempts           int
	SerializationAttempts int
	LoyaltyCentsPerPoint  int64
	ClampFixedDiscount    bool
	// Sequence is "store" or "redis".
	Sequence string
}

type ReportConfig struct {
	CacheTTLSeconds int
}

type TelemetryConfig struct {
	JaegerEndpoint string
	ServiceName    string
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			Env:           getEnv("ENV", "development"),
			AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
			Location:      loadLocation(getEnv("STORE_TIMEZONE", "Asia/Jakarta")),
			PhoneRegion:   strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "ID")),
			SeedDemoData:  getBool("SEED_DEMO_DATA", true),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(os.Getenv("DATABASE_DRIVER"))),
			URL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0, 0),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			TopicSales: getEnv("KAFKA_TOPIC_SALES", "pos.sales"),
		},
		Auth: AuthConfig{
			Secret:                strings.TrimSpace(os.Getenv("AUTH_SECRET")),
			AccessTokenTTLMinutes: getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
			ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		},
		Sale: SaleConfig{
			TransactionPrefix:     strings.ToUpper(getEnv("TXN_PREFIX", "TXN")),
			TaxRatePercent:        getInt("SALE_TAX_RATE_PERCENT", 10, 0),
			MaxAttempts:           getInt("SALE_MAX_ATTEMPTS", 3, 1),
			SerializationAttempts: getInt("SALE_SERIALIZATION_ATTEMPTS", 10, 1),
			LoyaltyCentsPerPoint:  int64(getInt("LOYALTY_CENTS_PER_POINT", 1_000_000, 1)),
			ClampFixedDiscount:    getBool("PROMOTION_CLAMP_FIXED_DISCOUNT", false),
			Sequence:              strings.ToLower(getEnv("TXN_SEQUENCE", "store")),
		},
		Report: ReportConfig{
			CacheTTLSeconds: getInt("REPORT_CACHE_TTL_SECONDS", 60, 0),
		},
		Telemetry: TelemetryConfig{
			JaegerEndpoint: strings.TrimSpace(os.Getenv("JAEGER_ENDPOINT")),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "kasirpos"),
		},
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Server.Port)
}

// StoreDriver resolves the configured repository backend.
func (c Config) StoreDriver() string {
	if c.Database.Driver != "" {
		return c.Database.Driver
	}
	if c.Database.URL != "" {
		return "postgres"
	}
	return "memory"
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.Report.CacheTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

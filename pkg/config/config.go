package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env        string
	Port       int
	APIPrefix  string
	KodeAsrama string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Bulk     BulkConfig
	Billing  BillingConfig
	Payments PaymentsConfig
	Exports  ExportsConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BulkConfig paces the bulk roster operations.
type BulkConfig struct {
	ImportItemDelay  time.Duration
	DeleteBatchSize  int
	DeleteBatchPause time.Duration
	DismissAfter     time.Duration
}

// BillingConfig points at the remote payment aggregation function.
type BillingConfig struct {
	FunctionURL         string
	Timeout             time.Duration
	InitialEmptyWait    time.Duration
	SubsequentEmptyWait time.Duration
}

// PaymentsConfig configures the Midtrans Snap gateway used for payment submission.
type PaymentsConfig struct {
	ServerKey  string
	Production bool
}

// ExportsConfig controls export storage and signed download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// CacheConfig tunes roster and report caching.
type CacheConfig struct {
	Enabled   bool
	RosterTTL time.Duration
	ReportTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.KodeAsrama = v.GetString("KODE_ASRAMA")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Bulk = BulkConfig{
		ImportItemDelay:  parseDuration(v.GetString("BULK_IMPORT_ITEM_DELAY"), 200*time.Millisecond),
		DeleteBatchSize:  v.GetInt("BULK_DELETE_BATCH_SIZE"),
		DeleteBatchPause: parseDuration(v.GetString("BULK_DELETE_BATCH_PAUSE"), 500*time.Millisecond),
		DismissAfter:     parseDuration(v.GetString("BULK_PROGRESS_DISMISS_AFTER"), 5*time.Second),
	}
	if cfg.Bulk.DeleteBatchSize <= 0 {
		cfg.Bulk.DeleteBatchSize = 20
	}

	cfg.Billing = BillingConfig{
		FunctionURL:         v.GetString("BILLING_FUNCTION_URL"),
		Timeout:             parseDuration(v.GetString("BILLING_TIMEOUT"), 30*time.Second),
		InitialEmptyWait:    parseDuration(v.GetString("PAYMENT_EMPTY_INITIAL_WAIT"), 30*time.Second),
		SubsequentEmptyWait: parseDuration(v.GetString("PAYMENT_EMPTY_SUBSEQUENT_WAIT"), 60*time.Second),
	}

	cfg.Payments = PaymentsConfig{
		ServerKey:  v.GetString("MIDTRANS_SERVER_KEY"),
		Production: v.GetBool("MIDTRANS_PRODUCTION"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Cache = CacheConfig{
		Enabled:   v.GetBool("ENABLE_CACHE"),
		RosterTTL: parseDuration(v.GetString("CACHE_ROSTER_TTL"), 5*time.Minute),
		ReportTTL: parseDuration(v.GetString("CACHE_REPORT_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("KODE_ASRAMA", "A1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "asrama_adp")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BULK_IMPORT_ITEM_DELAY", "200ms")
	v.SetDefault("BULK_DELETE_BATCH_SIZE", 20)
	v.SetDefault("BULK_DELETE_BATCH_PAUSE", "500ms")
	v.SetDefault("BULK_PROGRESS_DISMISS_AFTER", "5s")

	v.SetDefault("BILLING_FUNCTION_URL", "http://localhost:5001")
	v.SetDefault("BILLING_TIMEOUT", "30s")
	v.SetDefault("PAYMENT_EMPTY_INITIAL_WAIT", "30s")
	v.SetDefault("PAYMENT_EMPTY_SUBSEQUENT_WAIT", "60s")

	v.SetDefault("MIDTRANS_SERVER_KEY", "")
	v.SetDefault("MIDTRANS_PRODUCTION", false)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_ROSTER_TTL", "5m")
	v.SetDefault("CACHE_REPORT_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

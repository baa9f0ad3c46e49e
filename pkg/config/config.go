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
	Env       string
	Port      int
	APIPrefix string
	Version   string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Imports       ImportsConfig
	Attendance    AttendanceConfig
	Transcripts   TranscriptsConfig
	Notifications NotificationsConfig
	Legacy        LegacyConfig
	Audit         AuditConfig
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

// ImportsConfig governs the CSV bulk-import pipeline.
type ImportsConfig struct {
	StorageDir          string
	DuplicateWindow     time.Duration
	AsyncCommitRowLimit int
	PhoneCountryCode    string
	WorkerConcurrency   int
	WorkerRetries       int
}

// AttendanceConfig tunes roster caching and eligibility.
type AttendanceConfig struct {
	RosterCacheTTL       time.Duration
	EligibilityThreshold int
}

// TranscriptsConfig holds the QR signing secret and token lifetime.
// The secret is immutable for the process lifetime.
type TranscriptsConfig struct {
	SigningSecret string
	TokenTTL      time.Duration
}

// NotificationsConfig tunes the fan-out worker pool.
type NotificationsConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
}

// LegacyConfig controls the legacy write guard.
type LegacyConfig struct {
	PathPrefix    string
	WritesEnabled bool
}

// AuditConfig bounds what the write-audit middleware captures.
type AuditConfig struct {
	MaxBodyBytes int64
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
	cfg.Version = v.GetString("APP_VERSION")

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

	cfg.Imports = ImportsConfig{
		StorageDir:          v.GetString("IMPORTS_STORAGE_DIR"),
		DuplicateWindow:     parseDuration(v.GetString("IMPORTS_DUPLICATE_WINDOW"), 24*time.Hour),
		AsyncCommitRowLimit: v.GetInt("IMPORTS_ASYNC_COMMIT_ROW_LIMIT"),
		PhoneCountryCode:    v.GetString("IMPORTS_PHONE_COUNTRY_CODE"),
		WorkerConcurrency:   v.GetInt("IMPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:       v.GetInt("IMPORTS_WORKER_RETRIES"),
	}

	cfg.Attendance = AttendanceConfig{
		RosterCacheTTL:       parseDuration(v.GetString("ATTENDANCE_ROSTER_CACHE_TTL"), 5*time.Minute),
		EligibilityThreshold: v.GetInt("ATTENDANCE_ELIGIBILITY_THRESHOLD"),
	}

	cfg.Transcripts = TranscriptsConfig{
		SigningSecret: v.GetString("TRANSCRIPT_SIGNING_SECRET"),
		TokenTTL:      parseDuration(v.GetString("TRANSCRIPT_TOKEN_TTL"), 365*24*time.Hour),
	}

	cfg.Notifications = NotificationsConfig{
		WorkerConcurrency: v.GetInt("NOTIFICATIONS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFICATIONS_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Legacy = LegacyConfig{
		PathPrefix:    v.GetString("LEGACY_PATH_PREFIX"),
		WritesEnabled: v.GetBool("LEGACY_WRITES_ENABLED"),
	}

	cfg.Audit = AuditConfig{
		MaxBodyBytes: v.GetInt64("AUDIT_MAX_BODY_BYTES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("APP_VERSION", "dev")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sims")
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

	v.SetDefault("IMPORTS_STORAGE_DIR", "./uploads")
	v.SetDefault("IMPORTS_DUPLICATE_WINDOW", "24h")
	v.SetDefault("IMPORTS_ASYNC_COMMIT_ROW_LIMIT", 2000)
	v.SetDefault("IMPORTS_PHONE_COUNTRY_CODE", "92")
	v.SetDefault("IMPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("IMPORTS_WORKER_RETRIES", 1)

	v.SetDefault("ATTENDANCE_ROSTER_CACHE_TTL", "5m")
	v.SetDefault("ATTENDANCE_ELIGIBILITY_THRESHOLD", 75)

	v.SetDefault("TRANSCRIPT_SIGNING_SECRET", "dev_transcript_secret")
	v.SetDefault("TRANSCRIPT_TOKEN_TTL", "8760h")

	v.SetDefault("NOTIFICATIONS_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATIONS_WORKER_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "5s")

	v.SetDefault("LEGACY_PATH_PREFIX", "/legacy")
	v.SetDefault("LEGACY_WRITES_ENABLED", false)

	v.SetDefault("AUDIT_MAX_BODY_BYTES", 4096)
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

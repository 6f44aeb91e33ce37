package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type AppConfig struct {
	// Weather API.
	APIBaseURL     string        `validate:"required,url"`
	StationID      string        `validate:"required"`
	UserAgent      string        `validate:"required"`
	HTTPTimeout    time.Duration `validate:"gte=0"`
	WorkDir        string        `validate:"required"`
	SnapshotSource string        `validate:"required"`

	// Loader.
	DuckDBPath     string `validate:"required"`
	SQLTemplateDir string

	// Variable store for the watermark.
	VariableBackend   string `validate:"oneof=memory redis postgres"`
	RedisAddr         string `validate:"required_if=VariableBackend redis"`
	RedisPassword     string
	RedisDB           int    `validate:"gte=0"`
	DatabaseURL       string `validate:"required_if=VariableBackend postgres"`
	WatermarkVariable string `validate:"required"`

	// Scheduling and retries.
	ScheduleInterval     time.Duration `validate:"gte=0"`
	TaskRetries          int           `validate:"gte=0,lte=20"`
	TaskRetryDelay       time.Duration `validate:"gte=0"`
	TaskRetryExponential bool

	// Run history retention (0 = unlimited).
	RunHistoryMax int `validate:"gte=0"`

	// Optional snapshot archive; disabled when ArchiveEndpoint is empty.
	ArchiveEndpoint  string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveBucket    string `validate:"required_with=ArchiveEndpoint"`
	ArchiveSSL       bool

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	Port string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
// Values from envFiles (default .env) never override the process environment.
func Load(envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.APIBaseURL = getenvDefault("WEATHER_API_BASE_URL", "https://api.weather.gov")
	cfg.StationID = getenvDefault("WEATHER_STATION_ID", "0112W")
	cfg.UserAgent = getenvDefault("WEATHER_API_USER_AGENT", "weather-api-pipeline")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 0); err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	cfg.WorkDir = getenvDefault("WORK_DIR", wd)
	cfg.SnapshotSource = getenvDefault("SNAPSHOT_SOURCE", "weather_api")

	cfg.DuckDBPath = getenvDefault("DUCKDB_PATH", "include/database/duck.db")
	cfg.SQLTemplateDir = os.Getenv("SQL_TEMPLATE_DIR")

	cfg.VariableBackend = getenvDefault("VARIABLE_BACKEND", BackendMemory)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.WatermarkVariable = getenvDefault("WATERMARK_VARIABLE", "weather_obs_last_date")

	if cfg.ScheduleInterval, err = getenvDuration("SCHEDULE_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.TaskRetries, err = getenvInt("TASK_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.TaskRetryDelay, err = getenvDuration("TASK_RETRY_DELAY", time.Minute); err != nil {
		return nil, err
	}
	if cfg.TaskRetryExponential, err = getenvBool("TASK_RETRY_EXPONENTIAL", true); err != nil {
		return nil, err
	}
	if cfg.RunHistoryMax, err = getenvInt("RUN_HISTORY_MAX", 100); err != nil {
		return nil, err
	}

	cfg.ArchiveEndpoint = os.Getenv("ARCHIVE_ENDPOINT")
	cfg.ArchiveAccessKey = os.Getenv("ARCHIVE_ACCESS_KEY")
	cfg.ArchiveSecretKey = os.Getenv("ARCHIVE_SECRET_KEY")
	cfg.ArchiveBucket = os.Getenv("ARCHIVE_BUCKET")
	if cfg.ArchiveSSL, err = getenvBool("ARCHIVE_SSL", false); err != nil {
		return nil, err
	}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
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

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	httpapi "github.com/jean18/front/internal/api/http"
	"github.com/jean18/front/internal/common"
	"github.com/jean18/front/internal/config"
	"github.com/jean18/front/internal/loader"
	"github.com/jean18/front/internal/pipeline"
	"github.com/jean18/front/internal/scheduler"
	"github.com/jean18/front/internal/snapshot"
	"github.com/jean18/front/internal/store"
	"github.com/jean18/front/internal/weather"
	"github.com/jean18/front/internal/weather/providers"
)

const serviceName = "weather-api-pipeline"

type variableStore interface {
	pipeline.Variables
	Close() error
}

func main() {
	once := flag.Bool("once", false, "execute a single pipeline run and exit")
	logicalDate := flag.String("logical-date", "", "logical date of the run (RFC3339 or unix seconds); defaults to now")
	envFile := flag.String("env-file", "", "path to a .env file (default .env)")
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}

	// Load configuration.
	cfg, err := config.Load(envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := buildLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	client := providers.NewNWSClient(httpClient, cfg.APIBaseURL, cfg.UserAgent, zl)

	// Snapshots, optionally mirrored to object storage.
	var archive snapshot.Archiver
	if cfg.ArchiveEndpoint != "" {
		a, err := snapshot.NewArchive(ctx, cfg.ArchiveEndpoint, cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveSSL)
		if err != nil {
			zl.Fatal("failed to connect snapshot archive", zap.Error(err))
		}
		archive = a
	}
	writer := snapshot.NewWriter(cfg.WorkDir, cfg.SnapshotSource, archive, zl)

	service := weather.NewService(client, writer, cfg.StationID, zl)

	dbPath := cfg.DuckDBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(cfg.WorkDir, dbPath)
	}
	duck := loader.NewDuckDB(dbPath, zl)

	vars, err := openVariables(ctx, cfg)
	if err != nil {
		zl.Fatal("failed to open variable store", zap.String("backend", cfg.VariableBackend), zap.Error(err))
	}
	defer vars.Close()

	runs := store.NewMemoryRunStore(cfg.RunHistoryMax)

	dag := pipeline.NewWeatherDAG(pipeline.WeatherTasks{
		Extractor:    service,
		Loader:       duck,
		Templates:    loader.NewTemplates(cfg.SQLTemplateDir),
		Variables:    vars,
		WatermarkKey: cfg.WatermarkVariable,
		Logger:       zl,
	})
	runner := pipeline.NewRunner(dag, pipeline.RetryPolicy{
		Retries:     cfg.TaskRetries,
		Delay:       cfg.TaskRetryDelay,
		Exponential: cfg.TaskRetryExponential,
		MaxDelay:    pipeline.DefaultRetryPolicy.MaxDelay,
	}, runs, zl)

	if *once {
		code := runOnce(ctx, runner, *logicalDate, zl)
		vars.Close()
		zl.Sync()
		os.Exit(code)
	}

	// Scheduler that periodically triggers pipeline runs.
	sched := scheduler.New(ctx, runner, cfg.ScheduleInterval, zl)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
			"station": cfg.StationID,
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Runner:      runner,
		Runs:        runs,
		Variables:   vars,
		BaseContext: ctx,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Warn("fiber server stopped", zap.Error(err))
		}
	}()
	zl.Info("service started", zap.String("port", cfg.Port), zap.String("station", cfg.StationID))

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}

// runOnce executes a single run and returns the process exit code.
func runOnce(ctx context.Context, runner *pipeline.Runner, rawDate string, zl *zap.Logger) int {
	logical := time.Now().UTC()
	if rawDate != "" {
		ts, err := common.ParseTimestamp(rawDate)
		if err != nil {
			zl.Error("invalid --logical-date", zap.String("value", rawDate), zap.Error(err))
			return 2
		}
		logical = ts
	}

	run, err := runner.Trigger(ctx, logical)
	if err != nil {
		zl.Error("run could not start", zap.Error(err))
		return 1
	}
	if run.State != pipeline.RunSuccess {
		return 1
	}
	return 0
}

func openVariables(ctx context.Context, cfg *config.AppConfig) (variableStore, error) {
	switch cfg.VariableBackend {
	case config.BackendRedis:
		return store.NewRedisVariables(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case config.BackendPostgres:
		return store.NewPostgresVariables(ctx, cfg.DatabaseURL)
	case config.BackendMemory:
		return store.NewMemoryVariables(), nil
	}
	return nil, fmt.Errorf("unknown variable backend %q", cfg.VariableBackend)
}

func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build(zap.Fields(zap.String("service", serviceName)))
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ms-attendance/internal/analytics"
	analytics_api "ms-attendance/internal/analytics/api"
	"ms-attendance/internal/attendance"
	"ms-attendance/internal/attendance/attendance_api"
	attendancedb "ms-attendance/internal/attendance/db"
	rediswrap "ms-attendance/internal/attendance/redis"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/config"
	"ms-attendance/internal/database"
	"ms-attendance/internal/database/migrations"
	"ms-attendance/internal/events"
	"ms-attendance/internal/events/event_api"
	"ms-attendance/internal/kafka"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/qr"
	"ms-attendance/internal/sse"
	"ms-attendance/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func newVerifier(ctx context.Context, cfg config.AuthConfig, l *logger.Logger) auth.TokenVerifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.RoleClaim)
		if err != nil {
			l.Fatal("AUTH", fmt.Sprintf("OIDC discovery failed for %s: %v", cfg.OIDCIssuer, err))
		}
		l.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against issuer %s", cfg.OIDCIssuer))
		return v
	}
	if cfg.JWTSecret == "" {
		l.Fatal("CONFIG", "Either OIDC_ISSUER or JWT_SECRET must be set")
	}
	l.Info("AUTH", "Verifying HS256 bearer tokens with the shared secret")
	return auth.NewHMACVerifier(cfg.JWTSecret, cfg.RoleClaim)
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logDir := ""
	if cfg.Log.ToFile {
		logDir = cfg.Log.Dir
	}
	logger := logger.NewLogger(logDir)
	defer logger.Close()

	logger.Info("APP", "Starting Attendance Service initialization")
	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	sqldb, bunDB, err := database.ConnectPostgres(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(sqldb, cfg.Database.MigrationsDir, logger)
		if err := runner.Up(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	store := attendancedb.New(bunDB, cfg.Database.TxTimeout)
	clock := clockwork.NewRealClock()
	emitter := sse.NewAttendanceEmitter()

	var codec *qr.Codec
	if cfg.Attendance.QRSecret != "" {
		codec = qr.NewCodec(cfg.Attendance.QRSecret)
	} else {
		logger.Warn("CONFIG", "QR_SECRET not set, encrypted QR scans are disabled")
	}

	lifecycleOpts := events.Options{
		Notifier:   emitter,
		Clock:      clock,
		Logger:     logger,
		MaxRetries: cfg.Attendance.MaxRetries,
	}
	attendanceOpts := attendance.Options{
		Notifier:   emitter,
		Clock:      clock,
		Logger:     logger,
		MaxRetries: cfg.Attendance.MaxRetries,
	}
	if codec != nil {
		attendanceOpts.QR = codec
	}

	if cfg.Redis.Enabled {
		redisClient, err := database.ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("DATABASE", err.Error())
		}
		defer redisClient.Close()

		cache := rediswrap.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL, logger)
		attendanceOpts.Locker = rediswrap.NewScanLock(redisClient, cfg.Redis.ScanLockTTL, logger)
		attendanceOpts.Cache = cache
		lifecycleOpts.Cache = cache
	} else {
		logger.Warn("REDIS", "Redis disabled, scans rely on row versions alone")
	}

	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
		defer producer.Close()
		logger.Info("KAFKA", "Kafka producer initialized successfully")

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		attendanceOpts.Publisher = producer
		lifecycleOpts.Publisher = producer
	}

	lifecycle := events.NewService(store, lifecycleOpts)
	attendanceOpts.Refresher = lifecycle
	attendanceService := attendance.NewService(store, attendanceOpts)

	if cfg.Attendance.SweepEnabled {
		sweeper := events.NewSweeper(store, lifecycle, attendanceService, logger)
		if err := sweeper.Start(cfg.Attendance.SweepInterval, clock); err != nil {
			logger.Fatal("APP", fmt.Sprintf("Failed to start status sweeper: %v", err))
		}
		defer sweeper.Stop()
	}

	authn := auth.Middleware(newVerifier(ctx, cfg.Auth, logger), logger)
	attendanceHandler := attendance_api.NewHandler(attendanceService, emitter, codec, logger)
	eventHandler := event_api.NewHandler(lifecycle, logger)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(bunDB), logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(logger.RequestLogger)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Mount("/api/attendance", attendanceHandler.Routes(authn))
	logger.Info("ROUTER", "Attendance routes registered under /api/attendance")
	r.Mount("/api/events", eventHandler.Routes(authn))
	logger.Info("ROUTER", "Event status routes registered under /api/events")
	r.Mount("/api/analytics", analyticsHandler.Routes(authn))
	logger.Info("ROUTER", "Analytics routes registered under /api/analytics")

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// no WriteTimeout: the attendance stream stays open
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Attendance Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Attendance Service shutdown complete")
	}
}

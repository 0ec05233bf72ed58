package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ms-attendance/internal/attendance"
	attendancedb "ms-attendance/internal/attendance/db"
	rediswrap "ms-attendance/internal/attendance/redis"
	"ms-attendance/internal/config"
	"ms-attendance/internal/database"
	"ms-attendance/internal/events"
	"ms-attendance/internal/kafka"
	"ms-attendance/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// status-sweeper runs one status and counter sweep over every event and
// exits. It is meant for cron jobs when the service's in-process sweep is
// disabled.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	flags := pflag.NewFlagSet("status-sweeper", pflag.ContinueOnError)
	publish := flags.Bool("publish", cfg.Kafka.Enabled, "publish status changes to Kafka")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}

	l := logger.NewLogger("")
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, bunDB, err := database.ConnectPostgres(ctx, cfg.Database, l)
	if err != nil {
		l.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	store := attendancedb.New(bunDB, cfg.Database.TxTimeout)
	lifecycleOpts := events.Options{Logger: l, MaxRetries: cfg.Attendance.MaxRetries}
	attendanceOpts := attendance.Options{Logger: l, MaxRetries: cfg.Attendance.MaxRetries}

	if cfg.Redis.Enabled {
		redisClient, err := database.ConnectRedis(ctx, cfg.Redis, l)
		if err != nil {
			l.Warn("REDIS", fmt.Sprintf("Sweeping without snapshot invalidation: %v", err))
		} else {
			defer redisClient.Close()
			cache := rediswrap.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL, l)
			lifecycleOpts.Cache = cache
			attendanceOpts.Cache = cache
		}
	}

	if *publish {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, l)
		defer producer.Close()
		lifecycleOpts.Publisher = producer
	}

	lifecycle := events.NewService(store, lifecycleOpts)
	attendanceOpts.Refresher = lifecycle
	sweeper := events.NewSweeper(store, lifecycle, attendance.NewService(store, attendanceOpts), l)

	report, err := sweeper.RunOnce(ctx)
	if err != nil {
		l.Fatal("SWEEP", fmt.Sprintf("Sweep aborted: %v", err))
	}
	l.Info("SWEEP", fmt.Sprintf("Checked %d events: %d status changes, %d counter repairs, %d failures",
		report.Checked, report.Refreshed, report.Reconciled, report.Failed))
	if report.Failed > 0 {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/keinerst7/tollsync/internal/config"
	"github.com/keinerst7/tollsync/internal/publisher"
	"github.com/keinerst7/tollsync/internal/scheduler"
	"github.com/keinerst7/tollsync/internal/service"
	"github.com/keinerst7/tollsync/internal/source/fx"
	"github.com/keinerst7/tollsync/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	startDate, err := time.Parse("2006-01-02", cfg.Import.StartDate)
	if err != nil {
		logger.Error("invalid import start date", "start_date", cfg.Import.StartDate, "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	// Initialize store and toll API source
	tollStore := postgres.NewTollStore(db)
	txManager := postgres.NewTransactionManager(db)

	source := fx.New(fx.Config{
		BaseURL:  cfg.API.BaseURL,
		Username: cfg.API.Username,
		Password: cfg.API.Password,
		Timeout:  cfg.API.Timeout,
	}, logger)

	importer := service.NewImporter(
		source,
		tollStore,
		txManager,
		rabbitMQ,
		logger,
		cfg.Import,
	)

	sched := scheduler.NewScheduler(importer, startDate, cfg.Import.Interval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting toll ingestion daemon",
		"start_date", cfg.Import.StartDate,
		"interval", cfg.Import.Interval,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

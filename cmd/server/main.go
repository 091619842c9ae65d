package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iudanet/trackmail/internal/config"
	"github.com/iudanet/trackmail/internal/server"
	"github.com/iudanet/trackmail/internal/server/jwt"
	"github.com/iudanet/trackmail/internal/server/mail"
	"github.com/iudanet/trackmail/internal/server/storage/boltdb"
	"github.com/iudanet/trackmail/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load(".env", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	logger := cfg.NewLogger(os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, path := range []string{cfg.DBPath, cfg.EventsDBPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	key, err := jwt.NewKeyLoader(cfg.KeyFile).Key()
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", slog.Any("error", err))
		}
	}()

	events, err := boltdb.New(ctx, cfg.EventsDBPath)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer func() {
		if err := events.Close(); err != nil {
			logger.Error("Failed to close event log", slog.Any("error", err))
		}
	}()

	templates := mail.NewTemplates(cfg.PublicURL)
	var sender mail.Sender
	if cfg.SMTPEnabled() {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, templates)
	} else {
		// Без SMTP письма только пишутся в лог
		logger.Warn("SMTP_HOST is not set, emails are written to the log")
		sender = mail.NewLogSender(logger, templates)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger.Info("Starting TrackMail server",
		slog.String("version", Version),
		slog.String("env", cfg.Env),
		slog.String("addr", cfg.Addr),
	)

	srv := server.New(server.Options{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Events:   events,
		Mail:     sender,
		Registry: registry,
		Key:      key,
		Version:  Version,
	})

	return srv.Run(ctx)
}

func printVersion() {
	fmt.Printf("TrackMail Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

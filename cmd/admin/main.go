package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/iudanet/trackmail/internal/admin"
	"github.com/iudanet/trackmail/internal/admin/iocli"
	"github.com/iudanet/trackmail/internal/config"
	"github.com/iudanet/trackmail/internal/crypto"
	"github.com/iudanet/trackmail/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// DB_PATH и BCRYPT_COST берём из той же конфигурации, что и сервер
	cfg, err := config.Load(".env", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	showVersion := flag.Bool("version", false, "Show version information")
	dbPath := flag.String("d", cfg.DBPath, "Path to the SQLite database")
	flag.Parse()

	stdio := iocli.NewStdio()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		admin.PrintUsage(stdio)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := sqlite.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	cmd := admin.New(stdio, db, crypto.NewPasswordHasher(cfg.BcryptCost))
	runErr := cmd.Run(ctx, args[0], args[1:])

	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("TrackMail Admin\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/credisync/internal/config"
	"github.com/iudanet/credisync/internal/logging"
	"github.com/iudanet/credisync/internal/server"
	"github.com/iudanet/credisync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "Path to server database (overrides config)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*configPath, *addr, *dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, dbPath string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}
	// Флаги командной строки важнее файла конфигурации
	if addr != "" {
		cfg.Addr = addr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger, logCloser, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	logger.Info("CrediSync server starting",
		"version", Version,
		"addr", cfg.Addr,
		"db", cfg.DBPath,
	)

	if err := server.New(cfg, db, logger).Run(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("Failed to close log output", "error", err)
	}
}

func printVersion() {
	fmt.Printf("CrediSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

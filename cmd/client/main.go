package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/credisync/internal/client/api"
	"github.com/iudanet/credisync/internal/client/backup"
	"github.com/iudanet/credisync/internal/client/cli"
	"github.com/iudanet/credisync/internal/client/data"
	"github.com/iudanet/credisync/internal/client/events"
	"github.com/iudanet/credisync/internal/client/iocli"
	"github.com/iudanet/credisync/internal/client/storage/boltdb"
	"github.com/iudanet/credisync/internal/client/store"
	"github.com/iudanet/credisync/internal/client/sync"
	"github.com/iudanet/credisync/internal/config"
	"github.com/iudanet/credisync/internal/conflict"
	"github.com/iudanet/credisync/internal/logging"
	"github.com/iudanet/credisync/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

type flags struct {
	config string
	server string
	db     string
	scope  string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "Path to config file")
	flag.StringVar(&f.server, "server", "", "Server URL (overrides config)")
	flag.StringVar(&f.db, "db", "", "Path to local database (overrides config)")
	flag.StringVar(&f.scope, "scope", "", "Owner scope id (overrides config)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	stdio := iocli.NewStdio()
	if len(args) == 0 {
		cli.New(stdio, cli.Deps{}).PrintUsage()
		os.Exit(1)
	}

	if err := run(f, stdio, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(f.config)
	if err != nil {
		return nil, err
	}
	// Флаги командной строки важнее файла конфигурации
	if f.server != "" {
		cfg.ServerURL = f.server
	}
	if f.db != "" {
		cfg.DBPath = f.db
	}
	if f.scope != "" {
		cfg.ScopeID = f.scope
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(f flags, stdio iocli.IO, command string, args []string) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	// Логи клиента не должны смешиваться с выводом команд
	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	notifier := events.NewNotifier(logger)
	localStore := store.New(db, notifier, logger)
	dataService := data.NewService(localStore, db, validation.New(), logger)

	apiClient := api.NewClient(cfg.ServerURL, cfg.ScopeID, api.WithTimeout(cfg.Sync.RequestTimeout))
	resolver := conflict.NewResolver(conflict.WithTolerance(cfg.ConflictTolerance))

	// До первой проверки считаем сеть недоступной
	monitor := sync.NewMonitor(false)
	prober := sync.NewProber(apiClient, monitor, cfg.Sync.ProbeInterval, logger)
	dispatcher := sync.NewDispatcher(
		db,
		localStore,
		sync.NewRegistryFromClient(apiClient),
		resolver,
		monitor,
		logger,
		sync.WithMaxAttempts(cfg.Sync.MaxAttempts),
		sync.WithMetadata(db),
	)
	scheduler := sync.NewScheduler(dispatcher, cfg.Sync.Interval, logger)
	syncService := sync.NewService(dispatcher, scheduler, monitor, prober, db, db, logger)

	backupService := backup.NewService(db, localStore, logger)
	rotator := backup.NewRotator(backupService, cfg.Backup.Dir, cfg.Backup.Keep, logger)

	// Записи, сохраненные без постановки в очередь (сбой между двумя шагами)
	if _, err := dataService.RequeueOrphans(ctx); err != nil {
		logger.Warn("Failed to requeue orphaned records", "error", err)
	}

	c := cli.New(stdio, cli.Deps{
		Store:          localStore,
		Outbox:         db,
		Data:           dataService,
		Sync:           syncService,
		Backup:         backupService,
		Rotator:        rotator,
		Events:         notifier,
		ScopeID:        cfg.ScopeID,
		BackupInterval: cfg.Backup.Interval,
	})

	err = c.Run(ctx, command, args)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("Failed to close log output", "error", err)
	}
}

func printVersion() {
	fmt.Printf("CrediSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

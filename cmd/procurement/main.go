// Command procurement opens the configured document store and runs one
// maintenance command against it: init, stats, backup or backups.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"procurement/internal/blob"
	"procurement/internal/config"
	"procurement/internal/core"
	"procurement/internal/logger"
	"procurement/pkg/domain"
)

const serviceName = "procurement"

var exitFunc = os.Exit

func main() {
	exitFunc(cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: procurement [-env-file path] [-trace] [-metrics-file path] <init|stats|backup|backups>")
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", ".env", "dotenv file loaded before reading the environment")
	trace := fs.Bool("trace", false, "write one JSON span per service operation to stderr")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics in text format to this file on exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		usage(stderr)
		return 2
	}
	cmd := fs.Arg(0)

	// bootstrap logger, rebuilt once config is known
	logg := logger.New(logger.Options{ServiceName: serviceName, Output: stderr})
	if err := godotenv.Load(*envFile); err != nil {
		logg.Warn(logg.WithField(ctx, "path", *envFile), "env file not loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return 1
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      stderr,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"cmd":     cmd,
		"storage": cfg.Storage.Driver,
	})

	handler, ok := commands[cmd]
	if !ok {
		usage(stderr)
		return 2
	}

	store, err := core.OpenPersistentStore(ctx, cfg.Storage.Core(), logg)
	if err != nil {
		logg.Error(ctx, "failed to open document store", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(ctx, "failed to close document store", err)
		}
	}()

	backups, err := blob.Open(ctx, cfg.Backup.Blob())
	if err != nil {
		logg.Error(ctx, "failed to open backup store", err)
		return 1
	}

	registry := prometheus.NewRegistry()
	opts := []core.ServiceOption{
		core.WithLogger(logg),
		core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(registry)),
	}
	if *trace {
		opts = append(opts, core.WithTracer(core.NewSpanRecorder(stderr)))
	}
	if backups != nil {
		opts = append(opts, core.WithBlobStore(backups))
	}
	svc := core.NewService(store, opts...)

	code := 0
	if err := handler(ctx, svc, cfg, stdout); err != nil {
		logg.Error(ctx, "command failed", err)
		code = 1
	}
	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, registry); err != nil {
			logg.Error(logg.WithField(ctx, "path", *metricsFile), "failed to write metrics", err)
			return 1
		}
	}
	return code
}

type command func(ctx context.Context, svc *core.Service, cfg *config.Config, stdout io.Writer) error

var commands = map[string]command{
	"init":    runInit,
	"stats":   runStats,
	"backup":  runBackup,
	"backups": runListBackups,
}

func runInit(ctx context.Context, svc *core.Service, cfg *config.Config, stdout io.Writer) error {
	seeded := false
	if cfg.App.SeedDefaultUsers {
		var err error
		if seeded, err = svc.EnsureDefaultUsers(ctx); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(stdout, "store ready (driver=%s, seeded=%t)\n", cfg.Storage.Driver, seeded)
	return err
}

func runStats(ctx context.Context, svc *core.Service, _ *config.Config, stdout io.Writer) error {
	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(stdout, "users: %d\nsuppliers: %d\nstock items: %d (below target: %d)\norders: %d\n",
		stats.Users, stats.Suppliers, stats.StockItems, stats.LowStockItems, stats.Orders()); err != nil {
		return err
	}
	statuses := make([]domain.OrderStatus, 0, len(stats.OrdersByStatus))
	for status := range stats.OrdersByStatus {
		statuses = append(statuses, status)
	}
	slices.Sort(statuses)
	for _, status := range statuses {
		if _, err := fmt.Fprintf(stdout, "  %s: %d\n", status, stats.OrdersByStatus[status]); err != nil {
			return err
		}
	}
	return nil
}

func runBackup(ctx context.Context, svc *core.Service, _ *config.Config, stdout io.Writer) error {
	info, err := svc.Backup(ctx)
	if err != nil {
		if errors.Is(err, core.ErrBackupsDisabled) {
			return fmt.Errorf("%w: set %s", err, config.EnvBackupDriver)
		}
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\t%d\n", info.Key, info.Size)
	return err
}

func runListBackups(ctx context.Context, svc *core.Service, _ *config.Config, stdout io.Writer) error {
	infos, err := svc.ListBackups(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(stdout, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.UTC().Format("2006-01-02T15:04:05Z")); err != nil {
			return err
		}
	}
	return nil
}

// Command cleanup deletes presence and chat records that have not been written for a while.
// It runs one sweep against the configured store and exits, for use from cron or a scheduled job.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"chatr/internal/app/cleanup"
	"chatr/internal/app/state"
	"chatr/internal/configs"
	"chatr/internal/pkg/logx"
)

func main() {
	hours := pflag.Int("hours", int(cleanup.DefaultMaxAge/time.Hour), "delete records not written for this many hours")
	dryRun := pflag.Bool("dry-run", false, "report the store backend and cutoff without sweeping")
	timeout := pflag.Duration("timeout", 5*time.Minute, "abort the sweep after this long")
	pflag.Parse()

	// A sweep needs a fully configured store, so a ConfigError is fatal here.
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logx.InitGlobalLogger(cfg.IsDevelopment())

	if *hours <= 0 {
		logx.Fatal(fmt.Errorf("invalid --hours %d", *hours), "Refusing to sweep")
	}
	maxAge := time.Duration(*hours) * time.Hour

	if *dryRun {
		logx.Info("Dry run", "backend", cfg.StoreBackend, "cutoff", time.Now().Add(-maxAge).UTC().Format(time.RFC3339))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, closeStore, err := state.Open(ctx, state.Options{
		Backend:       cfg.StoreBackend,
		DatabaseDSN:   cfg.DatabaseDSN,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logx.Fatal(err, "Failed to open state store", "backend", cfg.StoreBackend)
	}
	defer closeStore()

	report, err := cleanup.NewSweeper(store).Sweep(ctx, maxAge)
	if err != nil {
		logx.Error(err, "Sweep failed", "users_deleted", len(report.Users), "chats_deleted", len(report.Chats))
		closeStore()
		os.Exit(1)
	}

	logx.Info("Sweep complete", "users_deleted", len(report.Users), "chats_deleted", len(report.Chats))
}

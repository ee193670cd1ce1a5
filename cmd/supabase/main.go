package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/supabase-go/adapter/cli"
	cliAuth "github.com/felixgeelhaar/supabase-go/adapter/cli/auth"
	"github.com/felixgeelhaar/supabase-go/adapter/cli/db"
	cliStorage "github.com/felixgeelhaar/supabase-go/adapter/cli/storage"
	"github.com/felixgeelhaar/supabase-go/pkg/config"
	"github.com/felixgeelhaar/supabase-go/pkg/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logCfg := observability.DefaultLogConfig()
	if cfg.IsProduction() {
		logCfg = observability.ProductionLogConfig()
	}
	logCfg.Level = observability.LogLevel(cfg.LogLevel)
	logCfg.Format = observability.LogFormat(cfg.LogFormat)
	logCfg.Version = cli.Version
	logger := observability.NewLogger(logCfg)
	cli.SetLogger(logger)

	// Without a project the CLI still runs, so that version and help work.
	app, err := cli.NewApp(cfg, logger, nil)
	if err != nil {
		logger.Debug("supabase client not configured", "error", err)
	} else {
		defer app.Close()
		if err := app.Restore(ctx); err != nil {
			logger.Warn("failed to restore session", "error", err)
		}
		cli.SetApp(app)
	}

	cli.AddCommand(cliAuth.Cmd)
	cli.AddCommand(db.Cmd)
	cli.AddCommand(cliStorage.Cmd)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

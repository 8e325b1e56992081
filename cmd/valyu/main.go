package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kitbuilder587/valyu-go/internal/app"
	"github.com/kitbuilder587/valyu-go/internal/cli"
	"github.com/kitbuilder587/valyu-go/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(newApp).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, err
	}
	// в терминале info-логи только мешают
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	cfg.Log.Service = "valyu-cli"

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return app.New(ctx, cfg, logger, nil)
}

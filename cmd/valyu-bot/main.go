package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/valyu-go/internal/app"
	"github.com/kitbuilder587/valyu-go/internal/config"
	"github.com/kitbuilder587/valyu-go/internal/metrics"
	"github.com/kitbuilder587/valyu-go/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}
	cfg.Log.Service = "valyu-bot"

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server started", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	a, err := app.New(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, err := telegram.New(telegram.BotConfig{
		Token:             cfg.Telegram.Token,
		Debug:             strings.EqualFold(cfg.Log.Level, "debug"),
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
	}, a.Query, a.Research, logger.Named("telegram"), m)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("bot stopped")
	return nil
}

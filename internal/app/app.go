// Package app wires the SDK client, task history and services from config.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/cache/memory"
	"github.com/kitbuilder587/valyu-go/internal/config"
	"github.com/kitbuilder587/valyu-go/internal/metrics"
	"github.com/kitbuilder587/valyu-go/internal/repository"
	"github.com/kitbuilder587/valyu-go/internal/repository/postgres"
	"github.com/kitbuilder587/valyu-go/internal/service"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Client   *valyu.Client
	Tasks    repository.TaskRepository
	Research *service.ResearchService
	Query    *service.QueryService

	closers []func()
}

// New builds the application. With DATABASE_URL set the task history lives
// in postgres, otherwise in memory. m may be nil.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	}

	var recorder valyu.Recorder
	if m != nil {
		recorder = m
	}
	a.Client = valyu.New(cfg.ClientConfig(recorder), logger.Named("valyu"))

	if cfg.Database.URL != "" {
		db, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.Tasks = postgres.NewTaskRepo(db)
		a.closers = append(a.closers, db.Close)
		logger.Info("task history in postgres")
	} else {
		a.Tasks = repository.NewMemoryTaskRepository()
		logger.Info("task history in memory")
	}

	a.Research = service.NewResearchService(service.ResearchServiceDeps{
		Client:      a.Client.Research,
		Tasks:       a.Tasks,
		Logger:      logger.Named("research"),
		Metrics:     m,
		WaitOptions: cfg.WaitOptions,
	})

	searches := memory.NewWithContext[*valyu.SearchResponse](ctx, 0)
	answers := memory.NewWithContext[*valyu.AnswerResponse](ctx, 0)
	a.closers = append(a.closers, searches.Stop, answers.Stop)

	a.Query = service.NewQueryService(service.QueryServiceDeps{
		Client:      a.Client,
		Logger:      logger.Named("query"),
		Metrics:     m,
		Config:      service.QueryConfig{CacheTTL: cfg.Cache.TTL},
		SearchCache: searches,
		AnswerCache: answers,
	})

	return a, nil
}

// Close releases the database pool and cache sweepers.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

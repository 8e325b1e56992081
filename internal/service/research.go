package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
	"github.com/kitbuilder587/valyu-go/internal/metrics"
	"github.com/kitbuilder587/valyu-go/internal/repository"
)

// ResearchClient is the part of *valyu.ResearchService the app uses.
type ResearchClient interface {
	Create(ctx context.Context, req valyu.ResearchCreateRequest) (*valyu.ResearchTask, error)
	Status(ctx context.Context, id string) (*valyu.ResearchStatus, error)
	Wait(ctx context.Context, id string, opts valyu.WaitOptions) (*valyu.ResearchStatus, error)
	Update(ctx context.Context, id, instruction string) (*valyu.OperationResult, error)
	Cancel(ctx context.Context, id string) (*valyu.OperationResult, error)
	Delete(ctx context.Context, id string) (*valyu.OperationResult, error)
}

const defaultWaitConcurrency = 4

type ResearchServiceDeps struct {
	Client  ResearchClient
	Tasks   repository.TaskRepository
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// WaitOptions выбирает бюджет ожидания по режиму задачи
	WaitOptions     func(valyu.Mode) valyu.WaitOptions
	WaitConcurrency int
	Now             func() time.Time
}

// ResearchService runs research tasks and keeps the local history in step.
// History writes are best effort: a failed write is logged and never hides
// the result of the remote call.
type ResearchService struct {
	client      ResearchClient
	tasks       repository.TaskRepository
	logger      *zap.Logger
	metrics     *metrics.Metrics
	waitOptions func(valyu.Mode) valyu.WaitOptions
	concurrency int
	now         func() time.Time
}

func NewResearchService(deps ResearchServiceDeps) *ResearchService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.WaitOptions == nil {
		deps.WaitOptions = valyu.DefaultWaitOptions
	}
	if deps.WaitConcurrency <= 0 {
		deps.WaitConcurrency = defaultWaitConcurrency
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ResearchService{
		client:      deps.Client,
		tasks:       deps.Tasks,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		waitOptions: deps.WaitOptions,
		concurrency: deps.WaitConcurrency,
		now:         deps.Now,
	}
}

// Start creates the task remotely and records it for owner.
func (s *ResearchService) Start(ctx context.Context, owner string, req valyu.ResearchCreateRequest) (*domain.TaskRecord, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, domain.ErrEmptyQuery
	}

	task, err := s.client.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &domain.TaskRecord{
		ID:        task.ID,
		Owner:     owner,
		Query:     req.Input,
		Mode:      task.Mode,
		Status:    task.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !record.Status.IsValid() {
		record.Status = valyu.StatusQueued
	}

	if err := s.tasks.Save(ctx, record); err != nil {
		s.logger.Warn("failed to save research task",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("research task started",
		zap.String("task_id", task.ID),
		zap.String("owner", owner),
		zap.String("mode", string(record.Mode)),
	)
	return record, nil
}

// Status polls the service once and refreshes the history entry.
func (s *ResearchService) Status(ctx context.Context, id string) (*valyu.ResearchStatus, error) {
	snap, err := s.client.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	s.observe(ctx, id, snap)
	return snap, nil
}

// Wait blocks until the task is terminal, the mode's wait budget runs out
// or ctx is done. onStatus may be nil.
func (s *ResearchService) Wait(ctx context.Context, id string, onStatus func(*valyu.ResearchStatus)) (*valyu.ResearchStatus, error) {
	var mode valyu.Mode
	if record, err := s.tasks.Get(ctx, id); err == nil {
		mode = record.Mode
	}

	opts := s.waitOptions(mode)
	opts.OnStatus = func(snap *valyu.ResearchStatus) {
		s.observe(ctx, id, snap)
		if onStatus != nil {
			onStatus(snap)
		}
	}

	if s.metrics != nil {
		s.metrics.IncWaitsActive()
		defer s.metrics.DecWaitsActive()
	}

	snap, err := s.client.Wait(ctx, id, opts)
	if err != nil {
		if valyu.IsTimeout(err) {
			s.logger.Info("research wait timed out, task keeps running",
				zap.String("task_id", id),
				zap.Duration("max_wait", opts.MaxWait),
			)
		}
		return nil, err
	}
	return snap, nil
}

type WaitResult struct {
	ID     string
	Status *valyu.ResearchStatus
	Err    error
}

// WaitAll waits for several tasks at once. One task failing does not stop
// the others; each result carries its own error. Results keep the order of
// ids.
func (s *ResearchService) WaitAll(ctx context.Context, ids []string) []WaitResult {
	results := make([]WaitResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			snap, err := s.Wait(gctx, id, nil)
			results[i] = WaitResult{ID: id, Status: snap, Err: err}
			return nil
		})
	}

	g.Wait()
	return results
}

func (s *ResearchService) Update(ctx context.Context, id, instruction string) (*valyu.OperationResult, error) {
	return s.client.Update(ctx, id, instruction)
}

// Cancel forwards to the service and reports its answer unchanged, including
// a rejection for a task that already finished.
func (s *ResearchService) Cancel(ctx context.Context, id string) (*valyu.OperationResult, error) {
	res, err := s.client.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status.IsValid() {
		s.observe(ctx, id, &valyu.ResearchStatus{ID: id, Status: res.Status})
	}
	return res, nil
}

// Delete removes the task remotely, then from the history.
func (s *ResearchService) Delete(ctx context.Context, id string) (*valyu.OperationResult, error) {
	res, err := s.client.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		s.logger.Warn("failed to delete research task from history",
			zap.String("task_id", id),
			zap.Error(err),
		)
	}
	return res, nil
}

// Task returns the history entry for id, or domain.ErrTaskNotFound.
func (s *ResearchService) Task(ctx context.Context, id string) (*domain.TaskRecord, error) {
	return s.tasks.Get(ctx, id)
}

func (s *ResearchService) History(ctx context.Context, owner string, limit int) ([]domain.TaskRecord, error) {
	return s.tasks.ListRecent(ctx, owner, limit)
}

// observe applies a snapshot to the history entry, if we have one.
func (s *ResearchService) observe(ctx context.Context, id string, snap *valyu.ResearchStatus) {
	record, err := s.tasks.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrTaskNotFound) {
			s.logger.Warn("failed to load research task", zap.String("task_id", id), zap.Error(err))
		}
		return
	}

	record.Observe(snap, s.now())
	if err := s.tasks.UpdateStatus(ctx, record); err != nil {
		s.logger.Warn("failed to update research task",
			zap.String("task_id", id),
			zap.Error(err),
		)
	}
}

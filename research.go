package valyu

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 5 * time.Second

// ResearchService manages asynchronous research tasks. The remote service
// is the only authority on task state; nothing here caches it.
type ResearchService struct {
	client *Client
}

// WaitOptions bounds a Wait call. OnStatus, when set, is called each time a
// poll observes a status later than any seen before.
type WaitOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	OnStatus     func(*ResearchStatus)
}

// DefaultWaitOptions returns the recommended polling budget for a mode.
func DefaultWaitOptions(mode Mode) WaitOptions {
	opts := WaitOptions{PollInterval: DefaultPollInterval}
	switch mode {
	case ModeFast:
		opts.MaxWait = 5 * time.Minute
	case ModeHeavy:
		opts.MaxWait = 90 * time.Minute
	default:
		opts.MaxWait = 15 * time.Minute
	}
	return opts
}

type ListOptions struct {
	APIKeyID string
	Limit    int
}

func taskPath(id, action string) string {
	return "/deepresearch/tasks/" + url.PathEscape(id) + "/" + action
}

func (s *ResearchService) Create(ctx context.Context, req ResearchCreateRequest) (*ResearchTask, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var task ResearchTask
	if err := s.client.post(ctx, "research.create", "/deepresearch/tasks", req, &task); err != nil {
		return nil, err
	}
	if task.ID == "" {
		return nil, &Error{Kind: KindDeserialization, Message: "create response has no deepresearch_id"}
	}
	if task.Mode == "" {
		task.Mode = req.Mode
	}
	return &task, nil
}

// Status fetches one snapshot of the task.
func (s *ResearchService) Status(ctx context.Context, id string) (*ResearchStatus, error) {
	if err := validateTaskID(id); err != nil {
		return nil, err
	}
	var status ResearchStatus
	req := &Request{Method: http.MethodGet, Path: taskPath(id, "status")}
	if err := s.client.call(ctx, "research.status", req, &status); err != nil {
		return nil, err
	}
	if status.ID == "" {
		status.ID = id
	}
	return &status, nil
}

// Wait polls the task until it reaches a terminal state and returns that
// snapshot. A failed or cancelled task is returned as a snapshot, not an
// error. Running out of MaxWait yields a Timeout error and leaves the remote
// task untouched.
//
// Polls that fail with Network, ServiceUnavailable or RateLimitExceeded are
// retried at the next interval; any other error aborts the wait. Cancelling
// ctx stops the wait, between polls or during one, and returns ctx.Err().
func (s *ResearchService) Wait(ctx context.Context, id string, opts WaitOptions) (*ResearchStatus, error) {
	if err := validateTaskID(id); err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		return nil, invalidRequest("poll interval must be positive, got %s", opts.PollInterval)
	}
	if opts.MaxWait < 0 {
		return nil, invalidRequest("max wait must not be negative, got %s", opts.MaxWait)
	}

	c := s.client
	logger := c.logger.With(zap.String("task_id", id))
	start := c.clock.Now()

	finish := func(outcome string) {
		c.recorder.RecordWait(outcome, c.clock.Now().Sub(start))
	}

	if opts.MaxWait == 0 {
		finish(KindTimeout.String())
		return nil, &Error{Kind: KindTimeout, Message: "max wait is zero"}
	}

	var (
		highest Status
		mode    Mode
		polls   int
	)
	for {
		polls++
		snap, err := s.Status(ctx, id)
		switch {
		case err == nil:
			c.recorder.RecordPoll(string(snap.Status))
			if mode != "" && snap.Mode != "" && snap.Mode != mode {
				logger.Warn("research task mode changed",
					zap.String("was", string(mode)), zap.String("now", string(snap.Mode)))
			}
			if snap.Mode != "" {
				mode = snap.Mode
			}
			if highest != "" && snap.Status.rank() < highest.rank() {
				// откат статуса, оставляем самый поздний
				logger.Warn("research task status went backwards",
					zap.String("was", string(highest)), zap.String("now", string(snap.Status)))
			} else if snap.Status != highest {
				highest = snap.Status
				if opts.OnStatus != nil {
					opts.OnStatus(snap)
				}
			}
			if snap.Status.IsTerminal() {
				logger.Debug("research task finished",
					zap.String("status", string(snap.Status)), zap.Int("polls", polls))
				finish(string(snap.Status))
				return snap, nil
			}
		case ctx.Err() != nil:
			finish("cancelled")
			return nil, ctx.Err()
		case isTransientPollError(err):
			c.recorder.RecordPoll(KindOf(err).String())
			logger.Info("research poll failed, will retry", zap.Int("poll", polls), zap.Error(err))
		default:
			c.recorder.RecordPoll(KindOf(err).String())
			finish(KindOf(err).String())
			return nil, err
		}

		elapsed := c.clock.Now().Sub(start)
		if elapsed >= opts.MaxWait {
			finish(KindTimeout.String())
			return nil, &Error{
				Kind:    KindTimeout,
				Message: "research task " + id + " not finished after " + opts.MaxWait.String() + " (last status " + statusLabel(highest) + ")",
			}
		}

		select {
		case <-ctx.Done():
			finish("cancelled")
			return nil, ctx.Err()
		case <-c.clock.After(opts.PollInterval):
		}
	}
}

func statusLabel(s Status) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

func isTransientPollError(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServiceUnavailable, KindRateLimitExceeded:
		return true
	}
	return false
}

// List returns task summaries. There is no cursor: callers that need more
// than Limit results must track ids themselves.
func (s *ResearchService) List(ctx context.Context, opts ListOptions) (*ResearchList, error) {
	if opts.Limit < 0 {
		return nil, invalidRequest("limit must be positive, got %d", opts.Limit)
	}
	query := url.Values{}
	if opts.APIKeyID != "" {
		query.Set("api_key_id", opts.APIKeyID)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	var list ResearchList
	req := &Request{Method: http.MethodGet, Path: "/deepresearch/list", Query: query}
	if err := s.client.call(ctx, "research.list", req, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Update adds a follow-up instruction to a running task.
func (s *ResearchService) Update(ctx context.Context, id, instruction string) (*OperationResult, error) {
	if err := validateTaskID(id); err != nil {
		return nil, err
	}
	if err := requireText("instruction", instruction); err != nil {
		return nil, err
	}
	if err := maxChars("instruction", instruction, MaxInstructionLength); err != nil {
		return nil, err
	}
	payload := map[string]string{"instruction": instruction}
	var res OperationResult
	if err := s.client.post(ctx, "research.update", taskPath(id, "update"), payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Cancel asks the service to stop a task. Whatever the service answers for
// an already finished task is returned as is.
func (s *ResearchService) Cancel(ctx context.Context, id string) (*OperationResult, error) {
	if err := validateTaskID(id); err != nil {
		return nil, err
	}
	var res OperationResult
	req := &Request{Method: http.MethodPost, Path: taskPath(id, "cancel")}
	if err := s.client.call(ctx, "research.cancel", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ResearchService) Delete(ctx context.Context, id string) (*OperationResult, error) {
	if err := validateTaskID(id); err != nil {
		return nil, err
	}
	var res OperationResult
	req := &Request{Method: http.MethodDelete, Path: taskPath(id, "delete")}
	if err := s.client.call(ctx, "research.delete", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IsTimeout reports whether err is a Wait deadline, as opposed to a task
// that failed remotely.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

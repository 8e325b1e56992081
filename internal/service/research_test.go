package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
	"github.com/kitbuilder587/valyu-go/internal/metrics"
	"github.com/kitbuilder587/valyu-go/internal/repository"
)

type MockResearchClient struct {
	mu sync.Mutex

	CreateTask *valyu.ResearchTask
	CreateErr  error
	Statuses   map[string][]*valyu.ResearchStatus
	WaitErrs   map[string]error
	CancelRes  *valyu.OperationResult
	DeleteErr  error

	CreateCalls int
	WaitOpts    map[string]valyu.WaitOptions
	LastUpdate  string
}

func NewMockResearchClient() *MockResearchClient {
	return &MockResearchClient{
		Statuses: make(map[string][]*valyu.ResearchStatus),
		WaitErrs: make(map[string]error),
		WaitOpts: make(map[string]valyu.WaitOptions),
	}
}

func (m *MockResearchClient) Create(ctx context.Context, req valyu.ResearchCreateRequest) (*valyu.ResearchTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return m.CreateTask, nil
}

func (m *MockResearchClient) Status(ctx context.Context, id string) (*valyu.ResearchStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := m.Statuses[id]
	if len(snaps) == 0 {
		return nil, &valyu.Error{Kind: valyu.KindInvalidRequest, StatusCode: 404, Message: "task not found"}
	}
	return snaps[len(snaps)-1], nil
}

// Wait replays the scripted snapshots through OnStatus, like the SDK does.
func (m *MockResearchClient) Wait(ctx context.Context, id string, opts valyu.WaitOptions) (*valyu.ResearchStatus, error) {
	m.mu.Lock()
	m.WaitOpts[id] = opts
	snaps := m.Statuses[id]
	err := m.WaitErrs[id]
	m.mu.Unlock()

	for _, s := range snaps {
		if opts.OnStatus != nil {
			opts.OnStatus(s)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, &valyu.Error{Kind: valyu.KindInvalidRequest, StatusCode: 404, Message: "task not found"}
	}
	return snaps[len(snaps)-1], nil
}

func (m *MockResearchClient) Update(ctx context.Context, id, instruction string) (*valyu.OperationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastUpdate = instruction
	return &valyu.OperationResult{Success: true, ID: id}, nil
}

func (m *MockResearchClient) Cancel(ctx context.Context, id string) (*valyu.OperationResult, error) {
	if m.CancelRes != nil {
		return m.CancelRes, nil
	}
	return &valyu.OperationResult{Success: true, ID: id, Status: valyu.StatusCancelled}, nil
}

func (m *MockResearchClient) Delete(ctx context.Context, id string) (*valyu.OperationResult, error) {
	if m.DeleteErr != nil {
		return nil, m.DeleteErr
	}
	return &valyu.OperationResult{Success: true, ID: id}, nil
}

func newTestResearchService(client *MockResearchClient) (*ResearchService, *repository.MemoryTaskRepository) {
	repo := repository.NewMemoryTaskRepository()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := NewResearchService(ResearchServiceDeps{
		Client:  client,
		Tasks:   repo,
		Logger:  zap.NewNop(),
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
	})
	return svc, repo
}

func TestResearchService_Start(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateTask = &valyu.ResearchTask{Success: true, ID: "dr_1", Status: valyu.StatusQueued, Mode: valyu.ModeHeavy}
	svc, repo := newTestResearchService(client)
	ctx := context.Background()

	req := valyu.NewResearchRequest("Stablecoin regulation in the EU").WithMode(valyu.ModeHeavy)
	record, err := svc.Start(ctx, "tg:7", req)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if record.ID != "dr_1" || record.Mode != valyu.ModeHeavy || record.Owner != "tg:7" {
		t.Errorf("Start() = %+v", record)
	}

	saved, err := repo.Get(ctx, "dr_1")
	if err != nil {
		t.Fatalf("task not saved: %v", err)
	}
	if saved.Query != "Stablecoin regulation in the EU" {
		t.Errorf("saved query = %q", saved.Query)
	}
}

func TestResearchService_StartValidation(t *testing.T) {
	client := NewMockResearchClient()
	svc, _ := newTestResearchService(client)

	_, err := svc.Start(context.Background(), "cli", valyu.NewResearchRequest("   "))
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("Start() error = %v, want ErrEmptyQuery", err)
	}
	if client.CreateCalls != 0 {
		t.Error("Create should not be called for an empty query")
	}
}

func TestResearchService_StartLongInput(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateTask = &valyu.ResearchTask{ID: "dr_long", Status: valyu.StatusQueued, Mode: valyu.ModeLite}
	svc, repo := newTestResearchService(client)

	input := strings.Repeat("контекст ", domain.MaxQueryLength)
	record, err := svc.Start(context.Background(), "cli", valyu.NewResearchRequest(input))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if client.CreateCalls != 1 {
		t.Errorf("CreateCalls = %d, want 1", client.CreateCalls)
	}
	if saved, err := repo.Get(context.Background(), record.ID); err != nil || saved.Query != input {
		t.Errorf("long input not recorded: %v", err)
	}
}

func TestResearchService_StartRemoteError(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateErr = &valyu.Error{Kind: valyu.KindInvalidRequest, StatusCode: 402, Message: "no credits"}
	svc, repo := newTestResearchService(client)

	_, err := svc.Start(context.Background(), "cli", valyu.NewResearchRequest("q"))
	if !errors.Is(err, valyu.ErrInvalidRequest) {
		t.Errorf("Start() error = %v", err)
	}
	if tasks, _ := repo.ListRecent(context.Background(), "cli", 0); len(tasks) != 0 {
		t.Error("failed task must not be recorded")
	}
}

func TestResearchService_WaitUpdatesHistory(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateTask = &valyu.ResearchTask{ID: "dr_1", Status: valyu.StatusQueued, Mode: valyu.ModeFast}
	client.Statuses["dr_1"] = []*valyu.ResearchStatus{
		{ID: "dr_1", Status: valyu.StatusRunning},
		{ID: "dr_1", Status: valyu.StatusCompleted, Usage: &valyu.ResearchUsage{TotalCost: 0.3}},
	}
	svc, repo := newTestResearchService(client)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "cli", valyu.NewResearchRequest("q")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var seen []valyu.Status
	snap, err := svc.Wait(ctx, "dr_1", func(s *valyu.ResearchStatus) {
		seen = append(seen, s.Status)
	})
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.Status != valyu.StatusCompleted {
		t.Errorf("Wait() status = %s", snap.Status)
	}
	if len(seen) != 2 {
		t.Errorf("callback saw %v", seen)
	}

	record, _ := repo.Get(ctx, "dr_1")
	if record.Status != valyu.StatusCompleted || record.CostDollars != 0.3 {
		t.Errorf("history = %+v", record)
	}

	// бюджет ожидания берётся по режиму из истории
	if got := client.WaitOpts["dr_1"].MaxWait; got != valyu.DefaultWaitOptions(valyu.ModeFast).MaxWait {
		t.Errorf("MaxWait = %v", got)
	}
}

func TestResearchService_WaitUnknownTask(t *testing.T) {
	client := NewMockResearchClient()
	client.Statuses["dr_ext"] = []*valyu.ResearchStatus{{ID: "dr_ext", Status: valyu.StatusFailed, Error: "boom"}}
	svc, _ := newTestResearchService(client)

	snap, err := svc.Wait(context.Background(), "dr_ext", nil)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.Status != valyu.StatusFailed {
		t.Errorf("status = %s", snap.Status)
	}
	if got := client.WaitOpts["dr_ext"].MaxWait; got != valyu.DefaultWaitOptions("").MaxWait {
		t.Errorf("MaxWait = %v, want default", got)
	}
}

func TestResearchService_WaitTimeout(t *testing.T) {
	client := NewMockResearchClient()
	client.Statuses["dr_1"] = []*valyu.ResearchStatus{{ID: "dr_1", Status: valyu.StatusRunning}}
	client.WaitErrs["dr_1"] = &valyu.Error{Kind: valyu.KindTimeout, Message: "wait budget exhausted"}
	svc, _ := newTestResearchService(client)

	_, err := svc.Wait(context.Background(), "dr_1", nil)
	if !valyu.IsTimeout(err) {
		t.Errorf("Wait() error = %v, want timeout", err)
	}
}

func TestResearchService_WaitAll(t *testing.T) {
	client := NewMockResearchClient()
	client.Statuses["a"] = []*valyu.ResearchStatus{{ID: "a", Status: valyu.StatusCompleted}}
	client.Statuses["b"] = []*valyu.ResearchStatus{{ID: "b", Status: valyu.StatusCancelled}}
	client.WaitErrs["c"] = &valyu.Error{Kind: valyu.KindTimeout, Message: "timeout"}
	client.Statuses["c"] = []*valyu.ResearchStatus{{ID: "c", Status: valyu.StatusRunning}}
	svc, _ := newTestResearchService(client)

	results := svc.WaitAll(context.Background(), []string{"a", "b", "c", "missing"})
	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}

	if results[0].ID != "a" || results[0].Err != nil || results[0].Status.Status != valyu.StatusCompleted {
		t.Errorf("a = %+v", results[0])
	}
	if results[1].Status == nil || results[1].Status.Status != valyu.StatusCancelled {
		t.Errorf("b = %+v", results[1])
	}
	if !valyu.IsTimeout(results[2].Err) {
		t.Errorf("c err = %v", results[2].Err)
	}
	if !errors.Is(results[3].Err, valyu.ErrInvalidRequest) {
		t.Errorf("missing err = %v", results[3].Err)
	}
}

func TestResearchService_CancelUpdatesHistory(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateTask = &valyu.ResearchTask{ID: "dr_1", Status: valyu.StatusRunning}
	svc, repo := newTestResearchService(client)
	ctx := context.Background()
	svc.Start(ctx, "cli", valyu.NewResearchRequest("q"))

	res, err := svc.Cancel(ctx, "dr_1")
	if err != nil || !res.Success {
		t.Fatalf("Cancel() = %+v, %v", res, err)
	}

	record, _ := repo.Get(ctx, "dr_1")
	if record.Status != valyu.StatusCancelled {
		t.Errorf("status = %s, want cancelled", record.Status)
	}
}

func TestResearchService_CancelRejected(t *testing.T) {
	client := NewMockResearchClient()
	client.CancelRes = &valyu.OperationResult{Success: false, Error: "task already completed"}
	svc, _ := newTestResearchService(client)

	res, err := svc.Cancel(context.Background(), "dr_done")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("Cancel() = %+v, want rejection", res)
	}
}

func TestResearchService_Delete(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateTask = &valyu.ResearchTask{ID: "dr_1", Status: valyu.StatusQueued}
	svc, repo := newTestResearchService(client)
	ctx := context.Background()
	svc.Start(ctx, "cli", valyu.NewResearchRequest("q"))

	if _, err := svc.Delete(ctx, "dr_1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "dr_1"); err != domain.ErrTaskNotFound {
		t.Errorf("history still has the task: %v", err)
	}

	// задача не из истории удаляется без ошибки
	if _, err := svc.Delete(ctx, "dr_other"); err != nil {
		t.Errorf("Delete(unknown) error = %v", err)
	}
}

func TestResearchService_DeleteRemoteErrorKeepsHistory(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateTask = &valyu.ResearchTask{ID: "dr_1", Status: valyu.StatusQueued}
	svc, repo := newTestResearchService(client)
	ctx := context.Background()
	svc.Start(ctx, "cli", valyu.NewResearchRequest("q"))

	client.DeleteErr = &valyu.Error{Kind: valyu.KindServiceUnavailable, Message: "down"}
	if _, err := svc.Delete(ctx, "dr_1"); err == nil {
		t.Fatal("Delete() should fail")
	}
	if _, err := repo.Get(ctx, "dr_1"); err != nil {
		t.Errorf("history lost the task: %v", err)
	}
}

func TestResearchService_History(t *testing.T) {
	client := NewMockResearchClient()
	svc, _ := newTestResearchService(client)
	ctx := context.Background()

	for _, id := range []string{"dr_1", "dr_2"} {
		client.CreateTask = &valyu.ResearchTask{ID: id, Status: valyu.StatusQueued}
		if _, err := svc.Start(ctx, "tg:1", valyu.NewResearchRequest("q "+id)); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := svc.History(ctx, "tg:1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("History() got %d", len(tasks))
	}
}

func TestResearchService_Update(t *testing.T) {
	client := NewMockResearchClient()
	svc, _ := newTestResearchService(client)

	if _, err := svc.Update(context.Background(), "dr_1", "focus on Germany"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if client.LastUpdate != "focus on Germany" {
		t.Errorf("instruction = %q", client.LastUpdate)
	}
}

func TestResearchService_Task(t *testing.T) {
	client := NewMockResearchClient()
	client.CreateTask = &valyu.ResearchTask{ID: "dr_1", Status: valyu.StatusQueued}
	svc, _ := newTestResearchService(client)
	ctx := context.Background()
	svc.Start(ctx, "tg:5", valyu.NewResearchRequest("q"))

	record, err := svc.Task(ctx, "dr_1")
	if err != nil || record.Owner != "tg:5" {
		t.Errorf("Task() = %+v, %v", record, err)
	}
	if _, err := svc.Task(ctx, "nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Task() error = %v", err)
	}
}

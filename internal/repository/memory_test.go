package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
)

var _ TaskRepository = (*MemoryTaskRepository)(nil)

func newRecord(id, owner string, created time.Time) *domain.TaskRecord {
	return &domain.TaskRecord{
		ID:        id,
		Owner:     owner,
		Query:     "research " + id,
		Mode:      valyu.ModeFast,
		Status:    valyu.StatusQueued,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryTaskRepository_SaveGet(t *testing.T) {
	repo := NewMemoryTaskRepository()
	ctx := context.Background()
	now := time.Now()

	if err := repo.Save(ctx, newRecord("dr_1", "tg:1", now)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, "dr_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Owner != "tg:1" || got.Status != valyu.StatusQueued {
		t.Errorf("Get() = %+v", got)
	}

	got.Status = valyu.StatusCompleted
	again, _ := repo.Get(ctx, "dr_1")
	if again.Status != valyu.StatusQueued {
		t.Error("Get() returned a reference into the store")
	}

	if _, err := repo.Get(ctx, "missing"); err != domain.ErrTaskNotFound {
		t.Errorf("Get() error = %v, want ErrTaskNotFound", err)
	}
}

func TestMemoryTaskRepository_SaveValidates(t *testing.T) {
	repo := NewMemoryTaskRepository()

	err := repo.Save(context.Background(), &domain.TaskRecord{ID: "dr_1", Query: "q"})
	if err != domain.ErrEmptyOwner {
		t.Errorf("Save() error = %v, want ErrEmptyOwner", err)
	}
}

func TestMemoryTaskRepository_UpdateStatus(t *testing.T) {
	repo := NewMemoryTaskRepository()
	ctx := context.Background()
	created := time.Now().Add(-time.Minute)
	repo.Save(ctx, newRecord("dr_1", "cli", created))

	update := &domain.TaskRecord{
		ID:          "dr_1",
		Status:      valyu.StatusCompleted,
		CostDollars: 0.42,
		UpdatedAt:   time.Now(),
	}
	if err := repo.UpdateStatus(ctx, update); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, _ := repo.Get(ctx, "dr_1")
	if got.Status != valyu.StatusCompleted || got.CostDollars != 0.42 {
		t.Errorf("after update = %+v", got)
	}
	if got.Query != "research dr_1" || !got.CreatedAt.Equal(created) {
		t.Error("UpdateStatus() overwrote immutable fields")
	}

	if err := repo.UpdateStatus(ctx, &domain.TaskRecord{ID: "missing"}); err != domain.ErrTaskNotFound {
		t.Errorf("UpdateStatus() error = %v, want ErrTaskNotFound", err)
	}
}

func TestMemoryTaskRepository_ListRecent(t *testing.T) {
	repo := NewMemoryTaskRepository()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		repo.Save(ctx, newRecord(fmt.Sprintf("dr_%d", i), "tg:1", base.Add(time.Duration(i)*time.Hour)))
	}
	repo.Save(ctx, newRecord("other", "tg:2", base))

	tasks, err := repo.ListRecent(ctx, "tg:1", 3)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("ListRecent() got %d tasks, want 3", len(tasks))
	}
	if tasks[0].ID != "dr_4" || tasks[2].ID != "dr_2" {
		t.Errorf("order = %s, %s, %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	all, _ := repo.ListRecent(ctx, "tg:1", 0)
	if len(all) != 5 {
		t.Errorf("ListRecent(limit 0) got %d, want 5", len(all))
	}
}

func TestMemoryTaskRepository_Delete(t *testing.T) {
	repo := NewMemoryTaskRepository()
	ctx := context.Background()
	repo.Save(ctx, newRecord("dr_1", "cli", time.Now()))

	if err := repo.Delete(ctx, "dr_1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "dr_1"); err != domain.ErrTaskNotFound {
		t.Errorf("Delete() error = %v, want ErrTaskNotFound", err)
	}
}

func TestMemoryTaskRepository_Concurrent(t *testing.T) {
	repo := NewMemoryTaskRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("dr_%d", i)
			repo.Save(ctx, newRecord(id, "cli", time.Now()))
			repo.UpdateStatus(ctx, &domain.TaskRecord{ID: id, Status: valyu.StatusRunning})
			repo.ListRecent(ctx, "cli", 10)
		}(i)
	}
	wg.Wait()

	all, _ := repo.ListRecent(ctx, "cli", 0)
	if len(all) != 50 {
		t.Errorf("got %d tasks, want 50", len(all))
	}
}

package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/kitbuilder587/valyu-go/internal/domain"
)

// MemoryTaskRepository keeps task history in process. Used by tests and
// when no DATABASE_URL is configured.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]domain.TaskRecord
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{
		tasks: make(map[string]domain.TaskRecord),
	}
}

func (m *MemoryTaskRepository) Save(ctx context.Context, task *domain.TaskRecord) error {
	if err := task.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[task.ID] = *task
	return nil
}

func (m *MemoryTaskRepository) UpdateStatus(ctx context.Context, task *domain.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	existing.Status = task.Status
	existing.CostDollars = task.CostDollars
	existing.Error = task.Error
	existing.UpdatedAt = task.UpdatedAt
	m.tasks[task.ID] = existing
	return nil
}

func (m *MemoryTaskRepository) Get(ctx context.Context, id string) (*domain.TaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &task, nil
}

func (m *MemoryTaskRepository) ListRecent(ctx context.Context, owner string, limit int) ([]domain.TaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.TaskRecord
	for _, task := range m.tasks {
		if task.Owner == owner {
			result = append(result, task)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryTaskRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

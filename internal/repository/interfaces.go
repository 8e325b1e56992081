package repository

import (
	"context"

	"github.com/kitbuilder587/valyu-go/internal/domain"
)

// TaskRepository - локальная история исследовательских задач.
// Статус в ней только последний увиденный, источник правды - сервис.
type TaskRepository interface {
	// Save inserts the record or replaces an existing one with the same id.
	Save(ctx context.Context, task *domain.TaskRecord) error
	// UpdateStatus stores status, cost, error and updated_at of an existing
	// record. Returns domain.ErrTaskNotFound when there is none.
	UpdateStatus(ctx context.Context, task *domain.TaskRecord) error
	Get(ctx context.Context, id string) (*domain.TaskRecord, error)
	// ListRecent returns the owner's newest tasks first.
	ListRecent(ctx context.Context, owner string, limit int) ([]domain.TaskRecord, error)
	Delete(ctx context.Context, id string) error
}

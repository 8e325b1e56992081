package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
)

type TaskRepo struct {
	db *DB
}

func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) Save(ctx context.Context, task *domain.TaskRecord) error {
	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO research_tasks (id, owner, query, mode, status, cost_dollars, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			query = EXCLUDED.query,
			mode = EXCLUDED.mode,
			status = EXCLUDED.status,
			cost_dollars = EXCLUDED.cost_dollars,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool.Exec(ctx, query,
		task.ID,
		task.Owner,
		task.Query,
		string(task.Mode),
		string(task.Status),
		task.CostDollars,
		nullString(task.Error),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (r *TaskRepo) UpdateStatus(ctx context.Context, task *domain.TaskRecord) error {
	query := `
		UPDATE research_tasks
		SET status = $2, cost_dollars = $3, error = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		task.ID,
		string(task.Status),
		task.CostDollars,
		nullString(task.Error),
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepo) Get(ctx context.Context, id string) (*domain.TaskRecord, error) {
	query := `
		SELECT id, owner, query, mode, status, cost_dollars, error, created_at, updated_at
		FROM research_tasks
		WHERE id = $1
	`

	task, err := scanTask(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (r *TaskRepo) ListRecent(ctx context.Context, owner string, limit int) ([]domain.TaskRecord, error) {
	query := `
		SELECT id, owner, query, mode, status, cost_dollars, error, created_at, updated_at
		FROM research_tasks
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	// LIMIT NULL - без ограничения
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.db.Pool.Query(ctx, query, owner, lim)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.TaskRecord
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM research_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.TaskRecord, error) {
	var (
		task   domain.TaskRecord
		mode   string
		status string
		errMsg *string
	)
	err := row.Scan(
		&task.ID,
		&task.Owner,
		&task.Query,
		&mode,
		&status,
		&task.CostDollars,
		&errMsg,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Mode = valyu.Mode(mode)
	task.Status = valyu.Status(status)
	if errMsg != nil {
		task.Error = *errMsg
	}
	return &task, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

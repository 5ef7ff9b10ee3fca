package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.IngestTask) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_tasks (id, document_id, status, attempts, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, task.ID, task.DocumentID, string(task.Status), task.Attempts, task.Error, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create ingest task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.IngestTask, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, status, attempts, COALESCE(error_message, ''), created_at, updated_at
FROM ingest_tasks
WHERE id = $1
`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: ingest task %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get ingest task: %w", err)
	}
	return &task, nil
}

// MarkRunning also counts the attempt, so retries stay visible after
// redelivery.
func (r *TaskRepository) MarkRunning(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_tasks
SET status = $2, attempts = attempts + 1, updated_at = $3
WHERE id = $1
`, id, string(domain.TaskRunning), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	return requireTaskRow(result, id)
}

func (r *TaskRepository) MarkDone(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_tasks
SET status = $2, error_message = '', updated_at = $3
WHERE id = $1
`, id, string(domain.TaskDone), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark task done: %w", err)
	}
	return requireTaskRow(result, id)
}

func (r *TaskRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_tasks
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(domain.TaskFailed), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return requireTaskRow(result, id)
}

func (r *TaskRepository) ListPending(ctx context.Context, limit int) ([]domain.IngestTask, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, status, attempts, COALESCE(error_message, ''), created_at, updated_at
FROM ingest_tasks
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2
`, string(domain.TaskPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.IngestTask, 0, limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending tasks: %w", err)
	}
	return out, nil
}

type taskScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row taskScanner) (domain.IngestTask, error) {
	var task domain.IngestTask
	var status string
	err := row.Scan(
		&task.ID,
		&task.DocumentID,
		&status,
		&task.Attempts,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return domain.IngestTask{}, err
	}
	task.Status = domain.TaskStatus(status)
	return task, nil
}

func requireTaskRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: ingest task %s", domain.ErrNotFound, id)
	}
	return nil
}

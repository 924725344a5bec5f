package postgres

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"

	"github.com/jackc/pgx/v5"
)

const syncTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (s *Store) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := time.Now()

	err := s.pool.QueryRow(ctx, `
        INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", classify(err))
	}
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns due pending and retry tasks, oldest first.
func (s *Store) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return s.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue
        WHERE status IN ($1, $2) AND (next_retry_at IS NULL OR next_retry_at <= $3)
        ORDER BY created_at ASC LIMIT $4`,
		models.SyncStatusPending, models.SyncStatusRetry, time.Now(), limit)
}

func (s *Store) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return s.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = $1 ORDER BY created_at DESC`,
		models.SyncStatusFailed)
}

func (s *Store) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	args := []interface{}{status, errMsg, nextRetryAt, id}

	switch status {
	case models.SyncStatusRetry:
		query = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, retry_count = retry_count + 1 WHERE id = $4`
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		query = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, processed_at = $5 WHERE id = $4`
		args = append(args, time.Now())
	default:
		query = `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3 WHERE id = $4`
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", classify(err))
	}
	return nil
}

func (s *Store) querySyncTasks(ctx context.Context, query string, args ...interface{}) ([]models.SyncTask, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", classify(err))
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SyncTask, error) {
		var t models.SyncTask
		err := row.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync task: %w", err)
	}
	return tasks, nil
}

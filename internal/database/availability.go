package database

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"
)

// GetAvailabilityTemplate returns the template row of one weekday or an error wrapping domain.ErrNotFound.
func (db *DB) GetAvailabilityTemplate(ctx context.Context, businessID string, day models.Weekday) (*models.AvailabilityTemplate, error) {
	query := `SELECT business_id, day_of_week, start_time, end_time, is_active, updated_at
              FROM availability WHERE business_id = ? AND day_of_week = ?`

	tpl, err := db.scanTemplate(db.QueryRowContext(ctx, query, businessID, int(day)))
	if err != nil {
		return nil, fmt.Errorf("failed to get availability for %s: %w", day, classify(err))
	}
	return tpl, nil
}

func (db *DB) ListAvailabilityTemplates(ctx context.Context, businessID string) ([]*models.AvailabilityTemplate, error) {
	query := `SELECT business_id, day_of_week, start_time, end_time, is_active, updated_at
              FROM availability WHERE business_id = ? ORDER BY day_of_week`

	rows, err := db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", classify(err))
	}
	defer rows.Close()

	var templates []*models.AvailabilityTemplate
	for rows.Next() {
		tpl, err := db.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// ReplaceAvailabilityTemplates overwrites the whole weekly template of a business in one transaction.
// Days missing from templates become closed.
func (db *DB) ReplaceAvailabilityTemplates(ctx context.Context, businessID string, templates []*models.AvailabilityTemplate) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability WHERE business_id = ?`, businessID); err != nil {
		return fmt.Errorf("failed to clear availability: %w", classify(err))
	}

	now := time.Now()
	insert := `INSERT INTO availability (business_id, day_of_week, start_time, end_time, is_active, updated_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	for _, tpl := range templates {
		if _, err := tx.ExecContext(ctx, insert, businessID, int(tpl.DayOfWeek), tpl.StartTime, tpl.EndTime, tpl.IsActive, formatTime(now)); err != nil {
			return fmt.Errorf("failed to insert availability for %s: %w", tpl.DayOfWeek, classify(err))
		}
		tpl.BusinessID = businessID
		tpl.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit availability: %w", classify(err))
	}
	return nil
}

func (db *DB) scanTemplate(row rowScanner) (*models.AvailabilityTemplate, error) {
	var (
		tpl       models.AvailabilityTemplate
		day       int
		updatedAt string
	)
	if err := row.Scan(&tpl.BusinessID, &day, &tpl.StartTime, &tpl.EndTime, &tpl.IsActive, &updatedAt); err != nil {
		return nil, err
	}
	tpl.DayOfWeek = models.Weekday(day)

	var err error
	if tpl.UpdatedAt, err = db.parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &tpl, nil
}

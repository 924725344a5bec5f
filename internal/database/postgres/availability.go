package postgres

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"

	"github.com/jackc/pgx/v5"
)

const templateColumns = `business_id, day_of_week, start_time, end_time, is_active, updated_at`

// GetAvailabilityTemplate returns the template row of one weekday or an error wrapping domain.ErrNotFound.
func (s *Store) GetAvailabilityTemplate(ctx context.Context, businessID string, day models.Weekday) (*models.AvailabilityTemplate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM availability WHERE business_id = $1 AND day_of_week = $2`,
		businessID, int16(day))
	tpl, err := s.scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get availability for %s: %w", day, classify(err))
	}
	return tpl, nil
}

func (s *Store) ListAvailabilityTemplates(ctx context.Context, businessID string) ([]*models.AvailabilityTemplate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM availability WHERE business_id = $1 ORDER BY day_of_week`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", classify(err))
	}
	defer rows.Close()

	var templates []*models.AvailabilityTemplate
	for rows.Next() {
		tpl, err := s.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// ReplaceAvailabilityTemplates overwrites the whole weekly template of a business in one transaction.
func (s *Store) ReplaceAvailabilityTemplates(ctx context.Context, businessID string, templates []*models.AvailabilityTemplate) error {
	now := time.Now()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM availability WHERE business_id = $1`, businessID); err != nil {
			return fmt.Errorf("failed to clear availability: %w", err)
		}

		batch := &pgx.Batch{}
		for _, tpl := range templates {
			batch.Queue(`
				INSERT INTO availability (business_id, day_of_week, start_time, end_time, is_active, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, businessID, int16(tpl.DayOfWeek), tpl.StartTime, tpl.EndTime, tpl.IsActive, now)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert availability: %w", err)
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}

	for _, tpl := range templates {
		tpl.BusinessID = businessID
		tpl.UpdatedAt = now
	}
	return nil
}

func (s *Store) scanTemplate(row pgx.Row) (*models.AvailabilityTemplate, error) {
	var (
		tpl models.AvailabilityTemplate
		day int16
	)
	if err := row.Scan(&tpl.BusinessID, &day, &tpl.StartTime, &tpl.EndTime, &tpl.IsActive, &tpl.UpdatedAt); err != nil {
		return nil, err
	}
	tpl.DayOfWeek = models.Weekday(day)
	tpl.UpdatedAt = s.local(tpl.UpdatedAt)
	return &tpl, nil
}

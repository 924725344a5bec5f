package database

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"
)

func (db *DB) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	query := `SELECT id, name, telegram_chat_id, is_active, created_at, updated_at FROM businesses WHERE id = ?`

	var (
		b                    models.Business
		createdAt, updatedAt string
	)
	err := db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Name, &b.TelegramChatID, &b.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get business %s: %w", id, classify(err))
	}

	if b.CreatedAt, err = db.parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = db.parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) SaveBusiness(ctx context.Context, b *models.Business) error {
	query := `INSERT INTO businesses (id, name, telegram_chat_id, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                telegram_chat_id = excluded.telegram_chat_id,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := db.ExecContext(ctx, query, b.ID, b.Name, b.TelegramChatID, b.IsActive, formatTime(b.CreatedAt), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to save business: %w", classify(err))
	}
	return nil
}

const serviceColumns = `id, business_id, name, duration_minutes, price, is_active, created_at, updated_at`

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	row := db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	s, err := db.scanService(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get service %s: %w", id, classify(err))
	}
	return s, nil
}

func (db *DB) SaveService(ctx context.Context, s *models.Service) error {
	query := `INSERT INTO services (` + serviceColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                duration_minutes = excluded.duration_minutes,
                price = excluded.price,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := db.ExecContext(ctx, query,
		s.ID,
		s.BusinessID,
		s.Name,
		s.DurationMinutes,
		s.Price.String(),
		s.IsActive,
		formatTime(s.CreatedAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", classify(err))
	}
	return nil
}

func (db *DB) ListServices(ctx context.Context, businessID string) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE business_id = ? ORDER BY name, id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", classify(err))
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		s, err := db.scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanService(row rowScanner) (*models.Service, error) {
	var (
		s                    models.Service
		createdAt, updatedAt string
	)
	if err := row.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &s.Price, &s.IsActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if s.CreatedAt, err = db.parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = db.parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (s *Store) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	var b models.Business
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, telegram_chat_id, is_active, created_at, updated_at
		FROM businesses WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.TelegramChatID, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get business %s: %w", id, classify(err))
	}
	b.CreatedAt = s.local(b.CreatedAt)
	b.UpdatedAt = s.local(b.UpdatedAt)
	return &b, nil
}

func (s *Store) SaveBusiness(ctx context.Context, b *models.Business) error {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO businesses (id, name, telegram_chat_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, b.ID, b.Name, b.TelegramChatID, b.IsActive, b.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("failed to save business: %w", classify(err))
	}
	return nil
}

const serviceColumns = `id, business_id, name, duration_minutes, price::text, is_active, created_at, updated_at`

func (s *Store) GetService(ctx context.Context, id string) (*models.Service, error) {
	svc, err := s.scanService(s.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get service %s: %w", id, classify(err))
	}
	return svc, nil
}

func (s *Store) SaveService(ctx context.Context, svc *models.Service) error {
	now := time.Now()
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	svc.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, svc.ID, svc.BusinessID, svc.Name, svc.DurationMinutes, svc.Price.String(), svc.IsActive, svc.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", classify(err))
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, businessID string) ([]*models.Service, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE business_id = $1 ORDER BY name, id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", classify(err))
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		svc, err := s.scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *Store) scanService(row pgx.Row) (*models.Service, error) {
	var (
		svc   models.Service
		price string
	)
	if err := row.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMinutes, &price, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if svc.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
	}
	svc.CreatedAt = s.local(svc.CreatedAt)
	svc.UpdatedAt = s.local(svc.UpdatedAt)
	return &svc, nil
}

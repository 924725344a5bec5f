package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/scheduling"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, business_id, service_id, service_name, customer_name, customer_email,
		start_time, end_time, duration_minutes, status, notes, created_at, updated_at, cancelled_at`

var errConflict = errors.New("conflict")

// CreateBookingWithLock serializes writers of one business day with a transaction-scoped
// advisory lock, re-checks overlap and inserts. The exclusion constraint rejects whatever
// slips past the check.
func (s *Store) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}
	now := time.Now()

	var conflictID string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		lockKey := scheduling.LockKey(booking.BusinessID, booking.StartTime)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return fmt.Errorf("failed to take advisory lock: %w", err)
		}

		err := tx.QueryRow(ctx, `
			SELECT id FROM bookings
			WHERE business_id = $1 AND status <> $2 AND start_time < $3 AND end_time > $4
			ORDER BY start_time
			LIMIT 1
		`, booking.BusinessID, models.StatusCancelled, booking.EndTime, booking.StartTime).Scan(&conflictID)
		switch {
		case err == nil:
			return errConflict
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("failed to check overlap in tx: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL)
		`,
			booking.ID,
			booking.BusinessID,
			booking.ServiceID,
			booking.ServiceName,
			booking.CustomerName,
			booking.CustomerEmail,
			booking.StartTime,
			booking.EndTime,
			booking.DurationMinutes,
			booking.Status,
			booking.Notes,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}
		return nil
	})
	if errors.Is(err, errConflict) {
		return fmt.Errorf("%w: overlaps booking %s", domain.ErrCollision, conflictID)
	}
	if err != nil {
		return classify(err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, classify(err))
	}
	return b, nil
}

func (s *Store) ListActiveBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error) {
	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE business_id = $1 AND status <> $2 AND start_time < $3 AND end_time > $4
		ORDER BY start_time
	`, businessID, models.StatusCancelled, to, from)
}

func (s *Store) ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error) {
	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE business_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time, created_at
	`, businessID, from, to)
}

// CancelBooking moves a booking to cancelled. Cancelling twice returns the stored booking unchanged.
func (s *Store) CancelBooking(ctx context.Context, id string, at time.Time) (*models.Booking, error) {
	var b *models.Booking
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		b, err = s.scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if b.Status == models.StatusCancelled {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE bookings SET status = $1, cancelled_at = $2, updated_at = $2 WHERE id = $3`,
			models.StatusCancelled, at, id)
		if err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		cancelledAt := s.local(at)
		b.Status = models.StatusCancelled
		b.CancelledAt = &cancelledAt
		b.UpdatedAt = cancelledAt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking %s: %w", id, classify(err))
	}
	return b, nil
}

func (s *Store) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", classify(err))
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := s.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *Store) scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.ServiceID,
		&b.ServiceName,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.StartTime,
		&b.EndTime,
		&b.DurationMinutes,
		&b.Status,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	b.StartTime = s.local(b.StartTime)
	b.EndTime = s.local(b.EndTime)
	b.CreatedAt = s.local(b.CreatedAt)
	b.UpdatedAt = s.local(b.UpdatedAt)
	if b.CancelledAt != nil {
		t := s.local(*b.CancelledAt)
		b.CancelledAt = &t
	}
	return &b, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/scheduling"

	"github.com/google/uuid"
)

const bookingColumns = `id, business_id, service_id, service_name, customer_name, customer_email,
        start_time, end_time, duration_minutes, status, notes, created_at, updated_at, cancelled_at`

// CreateBookingWithLock re-checks overlap against the active bookings of the business and
// inserts the booking inside one immediate transaction.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Check overlap inside transaction
	candidate := scheduling.Interval{Start: booking.StartTime, End: booking.EndTime}
	queryOverlap := `SELECT id, start_time, end_time FROM bookings
                     WHERE business_id = ? AND status != ? AND start_time < ? AND end_time > ?`
	rows, err := tx.QueryContext(ctx, queryOverlap,
		booking.BusinessID, models.StatusCancelled, formatTime(booking.EndTime), formatTime(booking.StartTime))
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", classify(err))
	}

	var conflictID string
	for rows.Next() {
		var id, start, end string
		if err := rows.Scan(&id, &start, &end); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan overlapping booking: %w", err)
		}
		existing, err := db.parseInterval(start, end)
		if err != nil {
			rows.Close()
			return err
		}
		if candidate.Overlaps(existing) {
			conflictID = id
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", classify(err))
	}
	if conflictID != "" {
		return fmt.Errorf("%w: overlaps booking %s", domain.ErrCollision, conflictID)
	}

	// 2. Create booking
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}
	now := time.Now()
	queryInsert := `INSERT INTO bookings (` + bookingColumns + `)
                    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`
	_, err = tx.ExecContext(ctx, queryInsert,
		booking.ID,
		booking.BusinessID,
		booking.ServiceID,
		booking.ServiceName,
		booking.CustomerName,
		booking.CustomerEmail,
		formatTime(booking.StartTime),
		formatTime(booking.EndTime),
		booking.DurationMinutes,
		booking.Status,
		booking.Notes,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", classify(err))
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := db.scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, classify(err))
	}
	return b, nil
}

func (db *DB) ListActiveBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE business_id = ? AND status != ? AND start_time < ? AND end_time > ?
              ORDER BY start_time`
	return db.queryBookings(ctx, query, businessID, models.StatusCancelled, formatTime(to), formatTime(from))
}

func (db *DB) ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE business_id = ? AND start_time >= ? AND start_time < ?
              ORDER BY start_time, created_at`
	return db.queryBookings(ctx, query, businessID, formatTime(from), formatTime(to))
}

// CancelBooking moves a confirmed booking to cancelled. Cancelling twice returns the stored booking unchanged.
func (db *DB) CancelBooking(ctx context.Context, id string, at time.Time) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	b, err := db.scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, classify(err))
	}
	if b.Status == models.StatusCancelled {
		return b, nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE bookings SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, formatTime(at), formatTime(at), id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", classify(err))
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", classify(err))
	}

	cancelledAt := at.In(db.loc)
	b.Status = models.StatusCancelled
	b.CancelledAt = &cancelledAt
	b.UpdatedAt = cancelledAt
	return b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", classify(err))
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                                models.Booking
		start, end, createdAt, updatedAt string
		cancelledAt                      sql.NullString
	)
	err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.ServiceID,
		&b.ServiceName,
		&b.CustomerName,
		&b.CustomerEmail,
		&start,
		&end,
		&b.DurationMinutes,
		&b.Status,
		&b.Notes,
		&createdAt,
		&updatedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if b.StartTime, err = db.parseTime(start); err != nil {
		return nil, err
	}
	if b.EndTime, err = db.parseTime(end); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = db.parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = db.parseTime(updatedAt); err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t, err := db.parseTime(cancelledAt.String)
		if err != nil {
			return nil, err
		}
		b.CancelledAt = &t
	}
	return &b, nil
}

func (db *DB) parseInterval(start, end string) (scheduling.Interval, error) {
	s, err := db.parseTime(start)
	if err != nil {
		return scheduling.Interval{}, err
	}
	e, err := db.parseTime(end)
	if err != nil {
		return scheduling.Interval{}, err
	}
	return scheduling.Interval{Start: s, End: e}, nil
}

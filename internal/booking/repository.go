// Package booking owns the persisted booking records and the commit step:
// the atomic, conflict-checked write that turns a confirmed selection into a
// booking. At most one booking can exist per staff member and time range.
package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tapbook/salon-booking/internal/availability"
	"github.com/tapbook/salon-booking/pkg/logging"
)

var bookingTracer = otel.Tracer("tapbook.internal.booking")

// ErrSlotConflict signals that an overlapping confirmed booking already
// exists for the staff member and time range.
var ErrSlotConflict = errors.New("booking: slot conflict")

const uniqueViolation = "23505"

// Booking is a persisted, confirmed appointment.
type Booking struct {
	ID         uuid.UUID
	SalonID    string
	ServiceID  string
	StaffID    string
	CustomerID string
	StartAt    time.Time
	EndAt      time.Time
	PriceCents int
	Currency   string
	Status     string
	Code       string
	CreatedAt  time.Time
}

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for bookings.
type Repository struct {
	db     DB
	logger *logging.Logger
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool, logger *logging.Logger) *Repository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: pool, logger: logger}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db DB, logger *logging.Logger) *Repository {
	if db == nil {
		panic("booking: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, logger: logger}
}

// FindOverlapping returns confirmed bookings for the staff member that
// intersect [start, end). Used both for the pre-commit availability re-check
// and, over a whole horizon, as the slot finder's range query.
func (r *Repository) FindOverlapping(ctx context.Context, staffID string, start, end time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, salon_id, service_id, staff_id, customer_id,
		       start_at, end_at, price_cents, currency, status, code, created_at
		FROM bookings
		WHERE staff_id = $1 AND status = 'confirmed' AND start_at < $3 AND end_at > $2
		ORDER BY start_at
	`, staffID, start, end)
	if err != nil {
		return nil, fmt.Errorf("booking: find overlapping: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.SalonID, &b.ServiceID, &b.StaffID, &b.CustomerID,
			&b.StartAt, &b.EndAt, &b.PriceCents, &b.Currency, &b.Status, &b.Code, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// BookedIntervals implements the slot finder's booking source with one range
// query per staff member.
func (r *Repository) BookedIntervals(ctx context.Context, staffID string, from, to time.Time) ([]availability.Interval, error) {
	bookings, err := r.FindOverlapping(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	intervals := make([]availability.Interval, 0, len(bookings))
	for _, b := range bookings {
		intervals = append(intervals, availability.Interval{Start: b.StartAt, End: b.EndAt})
	}
	return intervals, nil
}

// Commit inserts a confirmed booking if and only if no overlapping confirmed
// booking exists for the staff member and time range. It locks the staff row,
// re-checks overlap inside the transaction, and relies on the partial unique
// index on (staff_id, start_at) as the storage-layer backstop. Two customers
// racing to confirm the same slot get exactly one success and one
// ErrSlotConflict.
func (r *Repository) Commit(ctx context.Context, b Booking) (string, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("tapbook.salon_id", b.SalonID),
		attribute.String("tapbook.staff_id", b.StaffID),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("booking: begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lockedID string
	if err := tx.QueryRow(ctx, `SELECT id FROM staff WHERE id = $1 FOR UPDATE`, b.StaffID).Scan(&lockedID); err != nil {
		return "", fmt.Errorf("booking: lock staff calendar: %w", err)
	}

	var overlapping int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE staff_id = $1 AND status = 'confirmed' AND start_at < $3 AND end_at > $2
	`, b.StaffID, b.StartAt, b.EndAt).Scan(&overlapping)
	if err != nil {
		return "", fmt.Errorf("booking: overlap check: %w", err)
	}
	if overlapping > 0 {
		span.RecordError(ErrSlotConflict)
		return "", ErrSlotConflict
	}

	code := generateCode()
	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, salon_id, service_id, staff_id, customer_id,
		                      start_at, end_at, price_cents, currency, status, code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'confirmed', $10, NOW())
	`, uuid.New(), b.SalonID, b.ServiceID, b.StaffID, b.CustomerID,
		b.StartAt, b.EndAt, b.PriceCents, b.Currency, code)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrSlotConflict
		}
		return "", fmt.Errorf("booking: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("booking: commit tx: %w", err)
	}

	r.logger.Info("booking committed",
		"salon_id", b.SalonID,
		"staff_id", b.StaffID,
		"start_at", b.StartAt,
		"code", code,
	)
	return code, nil
}

// generateCode produces a human-readable booking code like BK104593.
func generateCode() string {
	return fmt.Sprintf("BK%06d", rand.IntN(1_000_000))
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("catalog: not found")

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides lookups over the salon catalog: services, staff,
// working hours and the waitlist.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db DB) *Repository {
	if db == nil {
		panic("catalog: db required")
	}
	return &Repository{db: db}
}

// GetSalon loads the salon record.
func (r *Repository) GetSalon(ctx context.Context, salonID string) (*Salon, error) {
	var s Salon
	err := r.db.QueryRow(ctx, `
		SELECT id, name, owner_email, owner_name
		FROM salons
		WHERE id = $1
	`, salonID).Scan(&s.ID, &s.Name, &s.OwnerEmail, &s.OwnerName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load salon: %w", err)
	}
	return &s, nil
}

// ResolveService finds a service by id or by case-insensitive name prefix.
func (r *Repository) ResolveService(ctx context.Context, salonID, nameOrID string) (*Service, error) {
	var s Service
	err := r.db.QueryRow(ctx, `
		SELECT id, salon_id, name, duration_minutes, price_cents, currency
		FROM services
		WHERE salon_id = $1 AND (id = $2 OR LOWER(name) LIKE LOWER($2) || '%')
		ORDER BY name
		LIMIT 1
	`, salonID, nameOrID).Scan(&s.ID, &s.SalonID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve service: %w", err)
	}
	return &s, nil
}

// ListServices returns all services offered by the salon.
func (r *Repository) ListServices(ctx context.Context, salonID string) ([]Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, salon_id, name, duration_minutes, price_cents, currency
		FROM services
		WHERE salon_id = $1
		ORDER BY name
	`, salonID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.SalonID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Currency); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// ResolveStaff finds a staff member by id or by case-insensitive name prefix.
func (r *Repository) ResolveStaff(ctx context.Context, salonID, nameOrID string) (*Staff, error) {
	var st Staff
	err := r.db.QueryRow(ctx, `
		SELECT id, salon_id, display_name
		FROM staff
		WHERE salon_id = $1 AND (id = $2 OR LOWER(display_name) LIKE LOWER($2) || '%')
		ORDER BY display_name
		LIMIT 1
	`, salonID, nameOrID).Scan(&st.ID, &st.SalonID, &st.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve staff: %w", err)
	}
	return &st, nil
}

// QualifiedStaff returns staff members qualified for the given service.
func (r *Repository) QualifiedStaff(ctx context.Context, salonID, serviceID string) ([]Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.salon_id, s.display_name
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE s.salon_id = $1 AND ss.service_id = $2
		ORDER BY s.display_name
	`, salonID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("catalog: qualified staff: %w", err)
	}
	defer rows.Close()

	var staff []Staff
	for rows.Next() {
		var st Staff
		if err := rows.Scan(&st.ID, &st.SalonID, &st.DisplayName); err != nil {
			return nil, fmt.Errorf("catalog: scan staff: %w", err)
		}
		staff = append(staff, st)
	}
	return staff, rows.Err()
}

// WorkingHours returns the staff member's shifts keyed by weekday. A weekday
// with no row means the staff member does not work that day.
func (r *Repository) WorkingHours(ctx context.Context, staffID string) (map[time.Weekday][]Shift, error) {
	rows, err := r.db.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM working_hours
		WHERE staff_id = $1
		ORDER BY weekday, start_minute
	`, staffID)
	if err != nil {
		return nil, fmt.Errorf("catalog: working hours: %w", err)
	}
	defer rows.Close()

	hours := make(map[time.Weekday][]Shift)
	for rows.Next() {
		var weekday int
		var shift Shift
		if err := rows.Scan(&weekday, &shift.StartMinute, &shift.EndMinute); err != nil {
			return nil, fmt.Errorf("catalog: scan working hours: %w", err)
		}
		hours[time.Weekday(weekday)] = append(hours[time.Weekday(weekday)], shift)
	}
	return hours, rows.Err()
}

// JoinWaitlist records a waitlist entry and returns its id. Joining twice for
// the same service is a no-op that returns the existing entry id.
func (r *Repository) JoinWaitlist(ctx context.Context, salonID, serviceID, customerID string) (string, error) {
	id := uuid.NewString()
	err := r.db.QueryRow(ctx, `
		INSERT INTO waitlist (id, salon_id, service_id, customer_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (salon_id, service_id, customer_id)
		DO UPDATE SET salon_id = EXCLUDED.salon_id
		RETURNING id
	`, id, salonID, serviceID, customerID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("catalog: join waitlist: %w", err)
	}
	return id, nil
}

// LeaveWaitlist removes a customer's waitlist entry.
func (r *Repository) LeaveWaitlist(ctx context.Context, entryID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM waitlist WHERE id = $1`, entryID); err != nil {
		return fmt.Errorf("catalog: leave waitlist: %w", err)
	}
	return nil
}

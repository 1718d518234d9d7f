// Package events records the funnel of every booking conversation so salons
// can see where customers drop off. Recording is best effort: a failed insert
// is logged and dropped, never surfaced to the customer flow.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tapbook/salon-booking/pkg/logging"
)

// Type identifies a funnel event.
type Type string

const (
	TypeRequestReceived  Type = "request_received"
	TypeSlotsShown       Type = "slots_shown"
	TypeNoAvailability   Type = "no_availability"
	TypeSlotSelected     Type = "slot_selected"
	TypeBookingConfirmed Type = "booking_confirmed"
	TypeBookingCompleted Type = "booking_completed"
	TypeSessionCancelled Type = "session_cancelled"
	TypeSessionExpired   Type = "session_expired"
	TypeWaitlistJoined   Type = "waitlist_joined"
	TypeErrorOccurred    Type = "error_occurred"
)

// Event is one persisted funnel record.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	SalonID   string          `json:"salon_id"`
	SessionID string          `json:"session_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Emitter records funnel events. Implementations must not fail the calling
// flow: errors stay inside the emitter.
type Emitter interface {
	Record(ctx context.Context, typ Type, salonID, sessionID string, details map[string]any)
}

// NopEmitter drops every event. Useful in tests.
type NopEmitter struct{}

func (NopEmitter) Record(context.Context, Type, string, string, map[string]any) {}

// Recorder persists events to Postgres through database/sql.
type Recorder struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

// NewRecorder creates a database-backed event recorder.
func NewRecorder(db *sql.DB, logger *logging.Logger) *Recorder {
	if db == nil {
		panic("events: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{db: db, logger: logger, now: time.Now}
}

// WithClock overrides the recorder's clock. Tests only.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record inserts one event row. Failures are logged and swallowed so the
// customer-facing flow never stalls on analytics.
func (r *Recorder) Record(ctx context.Context, typ Type, salonID, sessionID string, details map[string]any) {
	var detailsJSON []byte
	if len(details) > 0 {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			r.logger.Warn("event details not serializable", "type", string(typ), "error", err)
			detailsJSON = nil
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO booking_events (id, event_type, salon_id, session_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), string(typ), salonID, nullString(sessionID), detailsJSON, r.now().UTC())
	if err != nil {
		r.logger.Warn("failed to record funnel event",
			"type", string(typ),
			"salon_id", salonID,
			"error", err,
		)
	}
}

// Funnel aggregates the KPIs the product is judged on: how often one message
// leads straight to a booking, how many taps it takes, and how long.
type Funnel struct {
	Requests             int64   `json:"requests"`
	Completed            int64   `json:"completed"`
	OneMessageFraction   float64 `json:"one_message_fraction"`
	AvgTaps              float64 `json:"avg_taps"`
	AvgSecondsToComplete float64 `json:"avg_seconds_to_complete"`
}

// QueryFunnel computes funnel KPIs for a salon over [from, to).
func (r *Recorder) QueryFunnel(ctx context.Context, salonID string, from, to time.Time) (Funnel, error) {
	var f Funnel

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE event_type = $2),
			COUNT(*) FILTER (WHERE event_type = $3)
		FROM booking_events
		WHERE salon_id = $1 AND created_at >= $4 AND created_at < $5
	`, salonID, string(TypeRequestReceived), string(TypeBookingCompleted), from, to).
		Scan(&f.Requests, &f.Completed)
	if err != nil {
		return Funnel{}, fmt.Errorf("events: funnel counts: %w", err)
	}
	if f.Requests > 0 {
		f.OneMessageFraction = float64(f.Completed) / float64(f.Requests)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(AVG((details->>'taps')::float), 0),
			COALESCE(AVG((details->>'seconds_to_complete')::float), 0)
		FROM booking_events
		WHERE salon_id = $1 AND event_type = $2 AND created_at >= $3 AND created_at < $4
	`, salonID, string(TypeBookingCompleted), from, to).
		Scan(&f.AvgTaps, &f.AvgSecondsToComplete)
	if err != nil {
		return Funnel{}, fmt.Errorf("events: funnel averages: %w", err)
	}
	return f, nil
}

// RecentEvents returns the latest events for a salon, newest first.
func (r *Recorder) RecentEvents(ctx context.Context, salonID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, salon_id, session_id, details, created_at
		FROM booking_events
		WHERE salon_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, salonID, limit)
	if err != nil {
		return nil, fmt.Errorf("events: query recent: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var sessionID sql.NullString
		var details []byte // details is nullable; most flow events carry none
		if err := rows.Scan(&e.ID, &e.Type, &e.SalonID, &sessionID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan event: %w", err)
		}
		e.SessionID = sessionID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

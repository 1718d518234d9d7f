// Package session holds the ephemeral state of one in-progress booking
// negotiation per (customer, salon) pair. Sessions are short-lived: they are
// created when slots are first shown and removed on confirmation, explicit
// cancellation or TTL expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tapbook/salon-booking/internal/availability"
	"github.com/tapbook/salon-booking/internal/intent"
)

// ErrNotFound is returned for missing or expired sessions. Callers treat both
// identically ("please start over").
var ErrNotFound = errors.New("session: not found")

// Session tracks one customer's not-yet-confirmed booking negotiation.
// Exactly one session exists per (customer, salon) pair; a new inbound
// request overwrites the prior one.
type Session struct {
	ID         string                       `json:"id"`
	SalonID    string                       `json:"salon_id"`
	CustomerID string                       `json:"customer_id"`
	Language   string                       `json:"language"`
	Intent     intent.Intent                `json:"intent"`
	Slots      []availability.CandidateSlot `json:"slots"`
	Selected   *availability.CandidateSlot  `json:"selected,omitempty"`
	Page       int                          `json:"page"`
	Taps       int                          `json:"taps"`
	CreatedAt  time.Time                    `json:"created_at"`
	UpdatedAt  time.Time                    `json:"updated_at"`
}

// New creates a session for freshly offered slots.
func New(salonID, customerID, language string, in intent.Intent, slots []availability.CandidateSlot, now time.Time) *Session {
	return &Session{
		ID:         uuid.NewString(),
		SalonID:    salonID,
		CustomerID: customerID,
		Language:   language,
		Intent:     in,
		Slots:      slots,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Store persists sessions with a TTL measured from the last write. The store
// is injected so the orchestrator can run against Redis in production and an
// in-process map in tests without changing its logic.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, salonID, customerID string) (*Session, error)
	Delete(ctx context.Context, salonID, customerID string) error
}

func key(salonID, customerID string) string {
	return fmt.Sprintf("session:%s:%s", salonID, customerID)
}

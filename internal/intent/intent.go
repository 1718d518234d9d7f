// Package intent defines the boundary to natural-language intent extraction.
// The orchestrator consumes extraction as a black box: a structured intent or
// an inconclusive result, never an error for ordinary unparseable text.
package intent

import (
	"context"
	"time"
)

// ClockTime is a wall-clock preference like 15:00.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Intent is the structured result of parsing one free-text message. All
// fields are optional; Confidence below the caller's threshold means "ask the
// customer to clarify". Immutable; consumed once per request.
type Intent struct {
	ServiceName string     `json:"service_name,omitempty"`
	StaffName   string     `json:"staff_name,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Time        *ClockTime `json:"time,omitempty"`
	Confidence  float64    `json:"confidence"`
}

// Inconclusive reports whether the intent is too weak to act on.
func (i Intent) Inconclusive() bool {
	return i.ServiceName == "" || i.Confidence < 0.3
}

// Extractor parses a free-text message. Implementations must return a
// low-confidence Intent for unparseable text rather than an error; errors are
// reserved for transport failures (timeouts, upstream outages).
type Extractor interface {
	Parse(ctx context.Context, text, language string) (Intent, error)
}

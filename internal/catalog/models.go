package catalog

import "time"

// Service is a bookable salon service.
type Service struct {
	ID              string
	SalonID         string
	Name            string
	DurationMinutes int
	PriceCents      int
	Currency        string
}

// Duration returns the service duration as a time.Duration.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Staff is a salon employee who performs services.
type Staff struct {
	ID          string
	SalonID     string
	DisplayName string
}

// Shift is one working interval on a weekday, expressed as minutes from
// midnight so it is timezone-agnostic until anchored to a calendar date.
type Shift struct {
	StartMinute int
	EndMinute   int
}

// Salon holds the contact details needed for confirmations.
type Salon struct {
	ID         string
	Name       string
	OwnerEmail string
	OwnerName  string
}

// WaitlistEntry records a customer waiting for an opening.
type WaitlistEntry struct {
	ID         string
	SalonID    string
	ServiceID  string
	CustomerID string
	CreatedAt  time.Time
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/tapbook/salon-booking/pkg/logging"
)

// BookingDetails carries everything the owner email needs.
type BookingDetails struct {
	Code        string
	SalonName   string
	OwnerEmail  string
	OwnerName   string
	ServiceName string
	StaffName   string
	CustomerID  string
	StartAt     time.Time
	PriceCents  int
	Currency    string
}

// Service notifies salon owners about completed bookings.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// NotifyBookingConfirmed emails the salon owner about a new booking. Failures
// are logged and returned but callers treat them as best effort.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, d BookingDetails) error {
	if s.email == nil || d.OwnerEmail == "" {
		s.logger.Debug("notify: no owner email configured, skipping", "salon", d.SalonName)
		return nil
	}

	when := d.StartAt.Format("Monday, January 2 at 3:04 PM")
	amount := fmt.Sprintf("%.2f %s", float64(d.PriceCents)/100, d.Currency)

	subject := fmt.Sprintf("New booking %s - %s", d.Code, d.ServiceName)
	body := fmt.Sprintf(`A customer just booked through chat.

Booking code: %s
Service: %s
Staff: %s
When: %s
Price: %s

The slot is already confirmed on the calendar.

- %s via Tapbook`, d.Code, d.ServiceName, d.StaffName, when, amount, d.SalonName)

	msg := EmailMessage{
		To:      d.OwnerEmail,
		ToName:  d.OwnerName,
		Subject: subject,
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send booking email", "error", err, "to", d.OwnerEmail, "code", d.Code)
		return fmt.Errorf("notify: booking email: %w", err)
	}
	s.logger.Info("notify: booking email sent", "to", d.OwnerEmail, "code", d.Code)
	return nil
}

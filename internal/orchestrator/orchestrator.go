// Package orchestrator drives the booking conversation: one free-text message
// produces a slot offer, and from then on every step is a button tap until the
// booking is committed or the session ends.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tapbook/salon-booking/internal/action"
	"github.com/tapbook/salon-booking/internal/availability"
	"github.com/tapbook/salon-booking/internal/booking"
	"github.com/tapbook/salon-booking/internal/card"
	"github.com/tapbook/salon-booking/internal/catalog"
	"github.com/tapbook/salon-booking/internal/events"
	"github.com/tapbook/salon-booking/internal/intent"
	"github.com/tapbook/salon-booking/internal/notify"
	"github.com/tapbook/salon-booking/internal/observability/metrics"
	"github.com/tapbook/salon-booking/internal/session"
	"github.com/tapbook/salon-booking/pkg/logging"
)

var orchestratorTracer = otel.Tracer("tapbook.internal.orchestrator")

// Catalog is the salon data the flow needs.
type Catalog interface {
	GetSalon(ctx context.Context, salonID string) (*catalog.Salon, error)
	ResolveService(ctx context.Context, salonID, nameOrID string) (*catalog.Service, error)
	ResolveStaff(ctx context.Context, salonID, nameOrID string) (*catalog.Staff, error)
	QualifiedStaff(ctx context.Context, salonID, serviceID string) ([]catalog.Staff, error)
	WorkingHours(ctx context.Context, staffID string) (map[time.Weekday][]catalog.Shift, error)
	JoinWaitlist(ctx context.Context, salonID, serviceID, customerID string) (string, error)
	LeaveWaitlist(ctx context.Context, entryID string) error
}

// Bookings commits confirmed selections and answers availability re-checks.
type Bookings interface {
	FindOverlapping(ctx context.Context, staffID string, start, end time.Time) ([]booking.Booking, error)
	Commit(ctx context.Context, b booking.Booking) (string, error)
}

// SlotFinder searches for candidate slots.
type SlotFinder interface {
	FindSlots(ctx context.Context, q availability.Query) ([]availability.CandidateSlot, error)
}

// Notifier tells the salon owner about completed bookings.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, d notify.BookingDetails) error
}

// Config bounds the flow.
type Config struct {
	HorizonDays   int
	MaxResults    int
	LookupTimeout time.Duration
	CommitTimeout time.Duration
}

// Orchestrator is the conversational booking state machine.
type Orchestrator struct {
	catalog  Catalog
	bookings Bookings
	finder   SlotFinder
	sessions session.Store
	intents  intent.Extractor
	cards    *card.Builder
	emitter  events.Emitter
	notifier Notifier
	metrics  *metrics.FlowMetrics
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

// New creates the orchestrator. The notifier and metrics may be nil; every
// other collaborator is required.
func New(cat Catalog, bookings Bookings, finder SlotFinder, sessions session.Store,
	intents intent.Extractor, cards *card.Builder, emitter events.Emitter,
	notifier Notifier, flowMetrics *metrics.FlowMetrics, cfg Config, logger *logging.Logger) *Orchestrator {
	if cat == nil || bookings == nil || finder == nil || sessions == nil || intents == nil || cards == nil {
		panic("orchestrator: missing required collaborator")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 14
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Orchestrator{
		catalog:  cat,
		bookings: bookings,
		finder:   finder,
		sessions: sessions,
		intents:  intents,
		cards:    cards,
		emitter:  emitter,
		notifier: notifier,
		metrics:  flowMetrics,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the orchestrator's clock. Tests only.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// HandleInboundMessage turns one free-text message into a slot offer (or a
// clarification, or a waitlist invitation). A fresh request replaces any
// in-progress session for the same customer and salon.
func (o *Orchestrator) HandleInboundMessage(ctx context.Context, salonID, customerID, language, text string) (card.Presentation, error) {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.inbound_message")
	defer span.End()
	span.SetAttributes(attribute.String("tapbook.salon_id", salonID))

	msgs := o.cards.Messages(language)
	o.emitter.Record(ctx, events.TypeRequestReceived, salonID, "", map[string]any{"customer_id": customerID})

	in, err := o.intents.Parse(ctx, text, language)
	if err != nil {
		// Extractors degrade internally; an error here is a programming bug
		// upstream, but the customer still gets a usable reply.
		o.logger.Error("intent extraction errored", "error", err)
		in = intent.Intent{}
	}
	if in.Inconclusive() {
		o.observeInbound("clarify")
		return card.Text(msgs.ClarifyService), nil
	}

	svc, err := o.catalog.ResolveService(ctx, salonID, in.ServiceName)
	if errors.Is(err, catalog.ErrNotFound) {
		o.observeInbound("clarify")
		return card.Text(msgs.ClarifyService), nil
	}
	if err != nil {
		o.recordError(ctx, salonID, "", "resolve_service", err)
		o.observeInbound("error")
		return card.Text(msgs.TryAgainLater), nil
	}

	staff, err := o.staffCandidates(ctx, salonID, svc.ID, in.StaffName)
	if err != nil {
		o.recordError(ctx, salonID, "", "staff_candidates", err)
		o.observeInbound("error")
		return card.Text(msgs.TryAgainLater), nil
	}

	slots, err := o.findSlots(ctx, salonID, *svc, staff, in)
	if err != nil {
		o.recordError(ctx, salonID, "", "find_slots", err)
		o.observeInbound("error")
		return card.Text(msgs.TryAgainLater), nil
	}

	if len(slots) == 0 {
		// No session survives a fruitless search.
		_ = o.sessions.Delete(ctx, salonID, customerID)
		o.emitter.Record(ctx, events.TypeNoAvailability, salonID, "", map[string]any{"service_id": svc.ID})
		o.observeInbound("no_availability")
		return o.cards.BuildWaitlistOffer(svc.ID, language), nil
	}

	sess := session.New(salonID, customerID, language, in, slots, o.now())
	if err := o.sessions.Put(ctx, sess); err != nil {
		o.recordError(ctx, salonID, sess.ID, "session_put", err)
		o.observeInbound("error")
		return card.Text(msgs.TryAgainLater), nil
	}

	o.emitter.Record(ctx, events.TypeSlotsShown, salonID, sess.ID, map[string]any{
		"service_id": svc.ID,
		"count":      len(slots),
	})
	o.observeInbound("slots_shown")
	return o.cards.BuildSlotCard(o.pageOf(sess), language), nil
}

// HandleAction processes one tapped button. Malformed identifiers fail closed
// and leave any session untouched.
func (o *Orchestrator) HandleAction(ctx context.Context, salonID, customerID, language, actionID string) (card.Presentation, error) {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.action")
	defer span.End()
	span.SetAttributes(attribute.String("tapbook.salon_id", salonID))

	msgs := o.cards.Messages(language)

	act, err := action.Decode(actionID)
	if err != nil {
		o.logger.Warn("rejected malformed action", "action_id", actionID, "salon_id", salonID)
		o.observeAction("malformed", "rejected")
		return card.Text(msgs.SomethingWrong), nil
	}
	span.SetAttributes(attribute.String("tapbook.action_type", string(act.Type())))

	switch a := act.(type) {
	case action.SlotAction:
		return o.handleSlotPick(ctx, salonID, customerID, language, a)
	case action.ConfirmAction:
		return o.handleConfirm(ctx, salonID, customerID, language, a)
	case action.CancelAction:
		return o.handleCancel(ctx, salonID, customerID, language)
	case action.WaitlistAction:
		return o.handleWaitlist(ctx, salonID, customerID, language, a)
	case action.NavAction:
		return o.handleNav(ctx, salonID, customerID, language, a)
	case action.NamedAction:
		return o.handleNamed(ctx, salonID, customerID, language, a)
	default:
		o.observeAction(string(act.Type()), "unhandled")
		return card.Text(msgs.SomethingWrong), nil
	}
}

func (o *Orchestrator) handleSlotPick(ctx context.Context, salonID, customerID, language string, a action.SlotAction) (card.Presentation, error) {
	msgs := o.cards.Messages(language)
	sess, err := o.sessions.Get(ctx, salonID, customerID)
	if errors.Is(err, session.ErrNotFound) {
		o.emitter.Record(ctx, events.TypeSessionExpired, salonID, "", nil)
		o.observeAction("slot", "expired")
		return card.Text(msgs.SessionExpired), nil
	}
	if err != nil {
		o.recordError(ctx, salonID, "", "session_get", err)
		o.observeAction("slot", "error")
		return card.Text(msgs.TryAgainLater), nil
	}

	var picked *availability.CandidateSlot
	for i := range sess.Slots {
		if sess.Slots[i].StaffID == a.StaffID && sess.Slots[i].Start.Equal(a.Start) {
			picked = &sess.Slots[i]
			break
		}
	}
	if picked == nil {
		// The tap references a slot this session never offered. Stale card.
		o.observeAction("slot", "stale")
		return card.Text(msgs.SessionExpired), nil
	}

	// Another customer may have booked this interval since the card went out.
	taken, err := o.bookings.FindOverlapping(ctx, picked.StaffID, picked.Start, picked.End)
	if err != nil {
		o.recordError(ctx, salonID, sess.ID, "slot_recheck", err)
		o.observeAction("slot", "error")
		return card.Text(msgs.TryAgainLater), nil
	}
	if len(taken) > 0 {
		return o.reofferSlots(ctx, sess, *picked, language)
	}

	sess.Selected = picked
	sess.Taps++
	sess.UpdatedAt = o.now()
	if err := o.sessions.Put(ctx, sess); err != nil {
		o.recordError(ctx, salonID, sess.ID, "session_put", err)
		o.observeAction("slot", "error")
		return card.Text(msgs.TryAgainLater), nil
	}

	o.emitter.Record(ctx, events.TypeSlotSelected, salonID, sess.ID, map[string]any{
		"staff_id": picked.StaffID,
		"start_at": picked.Start.Format(time.RFC3339),
	})
	o.observeAction("slot", "ok")
	return o.cards.BuildConfirmationCard(*picked, sess.ID, language), nil
}

// reofferSlots re-runs the search after a tapped slot turned out to be taken
// and replaces the session's candidates with fresh ones.
func (o *Orchestrator) reofferSlots(ctx context.Context, sess *session.Session, gone availability.CandidateSlot, language string) (card.Presentation, error) {
	msgs := o.cards.Messages(language)

	svc, err := o.catalog.ResolveService(ctx, sess.SalonID, gone.ServiceID)
	if err != nil {
		o.recordError(ctx, sess.SalonID, sess.ID, "reoffer_service", err)
		o.observeAction("slot", "error")
		return card.Text(msgs.TryAgainLater), nil
	}
	staff, err := o.staffCandidates(ctx, sess.SalonID, svc.ID, sess.Intent.StaffName)
	if err != nil {
		o.recordError(ctx, sess.SalonID, sess.ID, "reoffer_staff", err)
		o.observeAction("slot", "error")
		return card.Text(msgs.TryAgainLater), nil
	}
	slots, err := o.findSlots(ctx, sess.SalonID, *svc, staff, sess.Intent)
	if err != nil {
		o.recordError(ctx, sess.SalonID, sess.ID, "reoffer_find", err)
		o.observeAction("slot", "error")
		return card.Text(msgs.TryAgainLater), nil
	}
	if len(slots) == 0 {
		_ = o.sessions.Delete(ctx, sess.SalonID, sess.CustomerID)
		o.emitter.Record(ctx, events.TypeNoAvailability, sess.SalonID, sess.ID, map[string]any{"service_id": svc.ID})
		o.observeAction("slot", "no_availability")
		return o.cards.BuildWaitlistOffer(svc.ID, language), nil
	}

	sess.Slots = slots
	sess.Selected = nil
	sess.Page = 0
	sess.Taps++
	sess.UpdatedAt = o.now()
	if err := o.sessions.Put(ctx, sess); err != nil {
		o.recordError(ctx, sess.SalonID, sess.ID, "session_put", err)
		o.observeAction("slot", "error")
		return card.Text(msgs.TryAgainLater), nil
	}

	o.emitter.Record(ctx, events.TypeSlotsShown, sess.SalonID, sess.ID, map[string]any{
		"service_id": svc.ID,
		"count":      len(slots),
		"reason":     "slot_gone",
	})
	o.observeAction("slot", "reoffered")
	p := o.cards.BuildSlotCard(o.pageOf(sess), language)
	p.Text = msgs.SlotGoneReoffer + "\n\n" + p.Text
	return p, nil
}

func (o *Orchestrator) handleConfirm(ctx context.Context, salonID, customerID, language string, a action.ConfirmAction) (card.Presentation, error) {
	msgs := o.cards.Messages(language)
	sess, err := o.sessions.Get(ctx, salonID, customerID)
	if errors.Is(err, session.ErrNotFound) {
		// Duplicate or late confirm taps land here once the session is gone.
		o.observeAction("confirm", "expired")
		return card.Text(msgs.AlreadyConfirmed), nil
	}
	if err != nil {
		o.recordError(ctx, salonID, "", "session_get", err)
		o.observeAction("confirm", "error")
		return card.Text(msgs.TryAgainLater), nil
	}
	if sess.ID != a.EntityID || sess.Selected == nil {
		// A confirm from an older card must not commit the current selection.
		o.observeAction("confirm", "stale")
		return card.Text(msgs.AlreadyConfirmed), nil
	}

	sess.Taps++
	slot := *sess.Selected

	commitCtx := ctx
	if o.cfg.CommitTimeout > 0 {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(ctx, o.cfg.CommitTimeout)
		defer cancel()
	}
	code, err := o.bookings.Commit(commitCtx, booking.Booking{
		SalonID:    salonID,
		ServiceID:  slot.ServiceID,
		StaffID:    slot.StaffID,
		CustomerID: customerID,
		StartAt:    slot.Start,
		EndAt:      slot.End,
		PriceCents: slot.PriceCents,
		Currency:   slot.Currency,
	})
	if errors.Is(err, booking.ErrSlotConflict) {
		// Someone else got the slot between offer and confirm. The stale
		// candidates are useless, so the whole session goes.
		_ = o.sessions.Delete(ctx, salonID, customerID)
		o.emitter.Record(ctx, events.TypeErrorOccurred, salonID, sess.ID, map[string]any{"reason": "slot_conflict"})
		o.metrics.ObserveConflict()
		o.observeAction("confirm", "conflict")
		return card.Text(msgs.SlotTaken), nil
	}
	if err != nil {
		// The session stays so the customer can simply tap confirm again.
		o.recordError(ctx, salonID, sess.ID, "commit", err)
		o.observeAction("confirm", "error")
		return card.Text(msgs.TryAgainLater), nil
	}

	_ = o.sessions.Delete(ctx, salonID, customerID)

	elapsed := o.now().Sub(sess.CreatedAt)
	o.emitter.Record(ctx, events.TypeBookingConfirmed, salonID, sess.ID, map[string]any{"code": code})
	o.emitter.Record(ctx, events.TypeBookingCompleted, salonID, sess.ID, map[string]any{
		"code":                code,
		"taps":                sess.Taps,
		"seconds_to_complete": elapsed.Seconds(),
	})
	o.metrics.ObserveBooking(salonID)
	o.metrics.ObserveTimeToConfirmed(elapsed.Seconds())
	o.observeAction("confirm", "booked")

	o.notifyOwner(ctx, salonID, customerID, code, slot)

	date, clock := o.cards.FormatWhen(slot.Start, language)
	return card.Text(fmt.Sprintf(msgs.Booked, code, date, clock)), nil
}

func (o *Orchestrator) handleCancel(ctx context.Context, salonID, customerID, language string) (card.Presentation, error) {
	msgs := o.cards.Messages(language)
	sess, err := o.sessions.Get(ctx, salonID, customerID)
	if err == nil {
		_ = o.sessions.Delete(ctx, salonID, customerID)
		o.emitter.Record(ctx, events.TypeSessionCancelled, salonID, sess.ID, nil)
	}
	o.observeAction("cancel", "ok")
	return card.Text(msgs.Cancelled), nil
}

func (o *Orchestrator) handleWaitlist(ctx context.Context, salonID, customerID, language string, a action.WaitlistAction) (card.Presentation, error) {
	msgs := o.cards.Messages(language)
	switch a.Verb {
	case "join":
		entryID, err := o.catalog.JoinWaitlist(ctx, salonID, a.WaitlistID, customerID)
		if err != nil {
			o.recordError(ctx, salonID, "", "waitlist_join", err)
			o.observeAction("waitlist", "error")
			return card.Text(msgs.TryAgainLater), nil
		}
		o.emitter.Record(ctx, events.TypeWaitlistJoined, salonID, "", map[string]any{
			"service_id": a.WaitlistID,
			"entry_id":   entryID,
		})
		o.observeAction("waitlist", "joined")
		return card.Text(msgs.WaitlistJoined), nil
	case "leave":
		if err := o.catalog.LeaveWaitlist(ctx, a.WaitlistID); err != nil {
			o.recordError(ctx, salonID, "", "waitlist_leave", err)
			o.observeAction("waitlist", "error")
			return card.Text(msgs.TryAgainLater), nil
		}
		o.observeAction("waitlist", "left")
		return card.Text(msgs.Cancelled), nil
	default:
		o.observeAction("waitlist", "rejected")
		return card.Text(msgs.SomethingWrong), nil
	}
}

func (o *Orchestrator) handleNav(ctx context.Context, salonID, customerID, language string, a action.NavAction) (card.Presentation, error) {
	msgs := o.cards.Messages(language)
	sess, err := o.sessions.Get(ctx, salonID, customerID)
	if errors.Is(err, session.ErrNotFound) {
		o.observeAction("nav", "expired")
		return card.Text(msgs.SessionExpired), nil
	}
	if err != nil {
		o.recordError(ctx, salonID, "", "session_get", err)
		o.observeAction("nav", "error")
		return card.Text(msgs.TryAgainLater), nil
	}

	page := sess.Page
	if a.Direction == "next" {
		page++
	} else {
		page--
	}
	pageSize := o.cards.ListThreshold
	if page < 0 || page*pageSize >= len(sess.Slots) {
		o.observeAction("nav", "edge")
		return card.Text(msgs.NoMoreSlots), nil
	}

	sess.Page = page
	sess.Taps++
	sess.UpdatedAt = o.now()
	if err := o.sessions.Put(ctx, sess); err != nil {
		o.recordError(ctx, salonID, sess.ID, "session_put", err)
		o.observeAction("nav", "error")
		return card.Text(msgs.TryAgainLater), nil
	}
	o.observeAction("nav", "ok")
	return o.cards.BuildSlotCard(o.pageOf(sess), language), nil
}

func (o *Orchestrator) handleNamed(ctx context.Context, salonID, customerID, language string, a action.NamedAction) (card.Presentation, error) {
	msgs := o.cards.Messages(language)
	switch a.Name {
	case "restart":
		_ = o.sessions.Delete(ctx, salonID, customerID)
		o.observeAction("action", "restart")
		return card.Text(msgs.ClarifyService), nil
	case "help":
		o.observeAction("action", "help")
		return card.Text(msgs.Help), nil
	default:
		o.observeAction("action", "rejected")
		return card.Text(msgs.SomethingWrong), nil
	}
}

func (o *Orchestrator) staffCandidates(ctx context.Context, salonID, serviceID, staffName string) ([]availability.StaffCandidate, error) {
	qualified, err := o.catalog.QualifiedStaff(ctx, salonID, serviceID)
	if err != nil {
		return nil, err
	}

	if staffName != "" {
		if named, err := o.catalog.ResolveStaff(ctx, salonID, staffName); err == nil {
			for _, st := range qualified {
				if st.ID == named.ID {
					qualified = []catalog.Staff{st}
					break
				}
			}
		}
		// An unknown or unqualified name falls back to all qualified staff
		// rather than a dead end.
	}

	candidates := make([]availability.StaffCandidate, 0, len(qualified))
	for _, st := range qualified {
		hours, err := o.catalog.WorkingHours(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, availability.StaffCandidate{
			ID:    st.ID,
			Name:  st.DisplayName,
			Hours: hours,
		})
	}
	return candidates, nil
}

func (o *Orchestrator) findSlots(ctx context.Context, salonID string, svc catalog.Service, staff []availability.StaffCandidate, in intent.Intent) ([]availability.CandidateSlot, error) {
	if o.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.LookupTimeout)
		defer cancel()
	}

	q := availability.Query{
		SalonID:       salonID,
		Service:       svc,
		Staff:         staff,
		PreferredDate: in.Date,
		HorizonDays:   o.cfg.HorizonDays,
		MaxResults:    o.cfg.MaxResults,
	}
	if in.Time != nil {
		q.PreferredTime = &availability.TimeOfDay{Hour: in.Time.Hour, Minute: in.Time.Minute}
	}

	started := o.now()
	slots, err := o.finder.FindSlots(ctx, q)
	o.metrics.ObserveSlotLookup(salonID, o.now().Sub(started).Seconds())
	return slots, err
}

// pageOf returns the session's current page of slots.
func (o *Orchestrator) pageOf(sess *session.Session) []availability.CandidateSlot {
	pageSize := o.cards.ListThreshold
	start := sess.Page * pageSize
	if start >= len(sess.Slots) {
		return nil
	}
	end := start + pageSize
	if end > len(sess.Slots) {
		end = len(sess.Slots)
	}
	return sess.Slots[start:end]
}

func (o *Orchestrator) notifyOwner(ctx context.Context, salonID, customerID, code string, slot availability.CandidateSlot) {
	if o.notifier == nil {
		return
	}
	salon, err := o.catalog.GetSalon(ctx, salonID)
	if err != nil {
		o.logger.Warn("owner notification skipped, salon lookup failed", "error", err, "salon_id", salonID)
		return
	}
	serviceName := slot.ServiceID
	if svc, err := o.catalog.ResolveService(ctx, salonID, slot.ServiceID); err == nil {
		serviceName = svc.Name
	}
	if err := o.notifier.NotifyBookingConfirmed(ctx, notify.BookingDetails{
		Code:        code,
		SalonName:   salon.Name,
		OwnerEmail:  salon.OwnerEmail,
		OwnerName:   salon.OwnerName,
		ServiceName: serviceName,
		StaffName:   slot.StaffName,
		CustomerID:  customerID,
		StartAt:     slot.Start,
		PriceCents:  slot.PriceCents,
		Currency:    slot.Currency,
	}); err != nil {
		o.logger.Warn("owner notification failed", "error", err, "code", code)
	}
}

func (o *Orchestrator) recordError(ctx context.Context, salonID, sessionID, stage string, err error) {
	o.logger.Error("booking flow error", "stage", stage, "salon_id", salonID, "error", err)
	o.emitter.Record(ctx, events.TypeErrorOccurred, salonID, sessionID, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
}

func (o *Orchestrator) observeInbound(outcome string) {
	o.metrics.ObserveInbound(outcome)
}

func (o *Orchestrator) observeAction(actionType, outcome string) {
	o.metrics.ObserveAction(actionType, outcome)
}

package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tapbook/salon-booking/internal/catalog"
	"github.com/tapbook/salon-booking/pkg/logging"
)

const defaultGranularity = 30 * time.Minute

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// TimeOfDay is a wall-clock preference, e.g. 15:00.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// CandidateSlot is a computed, not-yet-persisted, conflict-free interval a
// customer could book. Generated fresh on every search.
type CandidateSlot struct {
	ServiceID  string    `json:"service_id"`
	StaffID    string    `json:"staff_id"`
	StaffName  string    `json:"staff_name"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	PriceCents int       `json:"price_cents"`
	Currency   string    `json:"currency"`
	Score      int       `json:"score"`
	Preferred  bool      `json:"preferred"`
}

// StaffCandidate is a staff member already filtered for service qualification,
// together with their weekly working hours.
type StaffCandidate struct {
	ID    string
	Name  string
	Hours map[time.Weekday][]catalog.Shift
}

// Query describes one slot search.
type Query struct {
	SalonID       string
	Service       catalog.Service
	Staff         []StaffCandidate
	PreferredDate *time.Time
	PreferredTime *TimeOfDay
	HorizonDays   int
	MaxResults    int
}

// BookingSource supplies already-booked intervals for a staff member. The
// finder issues exactly one call per staff member covering the whole horizon,
// never one call per slot.
type BookingSource interface {
	BookedIntervals(ctx context.Context, staffID string, from, to time.Time) ([]Interval, error)
}

// Finder enumerates conflict-free candidate slots against working hours and
// existing bookings.
type Finder struct {
	bookings    BookingSource
	granularity time.Duration
	logger      *logging.Logger
	now         func() time.Time
}

// NewFinder creates a slot finder. A non-positive granularity falls back to
// 30 minutes.
func NewFinder(bookings BookingSource, granularity time.Duration, logger *logging.Logger) *Finder {
	if bookings == nil {
		panic("availability: booking source required")
	}
	if granularity <= 0 {
		granularity = defaultGranularity
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Finder{
		bookings:    bookings,
		granularity: granularity,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the finder's clock. Tests only.
func (f *Finder) WithClock(now func() time.Time) *Finder {
	f.now = now
	return f
}

// FindSlots returns up to MaxResults candidate slots ordered by proximity to
// the stated preference, with the single best-scoring slot flagged preferred.
// It never returns nil; an empty result means no availability in the horizon.
func (f *Finder) FindSlots(ctx context.Context, q Query) ([]CandidateSlot, error) {
	slots := []CandidateSlot{}
	if q.MaxResults <= 0 || len(q.Staff) == 0 || q.Service.DurationMinutes <= 0 {
		return slots, nil
	}

	now := f.now()
	loc := now.Location()
	horizonStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	horizonEnd := horizonStart.AddDate(0, 0, q.HorizonDays+1)

	// One range query per staff member for the entire horizon.
	booked := make(map[string][]Interval, len(q.Staff))
	for _, st := range q.Staff {
		intervals, err := f.bookings.BookedIntervals(ctx, st.ID, horizonStart, horizonEnd)
		if err != nil {
			return nil, fmt.Errorf("availability: load booked intervals for %s: %w", st.ID, err)
		}
		booked[st.ID] = intervals
	}

	// Enumerate the whole horizon before ranking. Capping during enumeration
	// would let early days crowd out the slots closest to the preference.
	duration := q.Service.Duration()
	for day := 0; day <= q.HorizonDays; day++ {
		date := horizonStart.AddDate(0, 0, day)
		for _, st := range q.Staff {
			shifts := st.Hours[date.Weekday()]
			if len(shifts) == 0 {
				// Staff member does not work this day; contributes nothing.
				continue
			}
			for _, shift := range shifts {
				windowStart := date.Add(time.Duration(shift.StartMinute) * time.Minute)
				windowEnd := date.Add(time.Duration(shift.EndMinute) * time.Minute)
				for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(f.granularity) {
					if !start.After(now) {
						continue
					}
					slot := Interval{Start: start, End: start.Add(duration)}
					if overlapsAny(slot, booked[st.ID]) {
						continue
					}
					slots = append(slots, CandidateSlot{
						ServiceID:  q.Service.ID,
						StaffID:    st.ID,
						StaffName:  st.Name,
						Start:      slot.Start,
						End:        slot.End,
						PriceCents: q.Service.PriceCents,
						Currency:   q.Service.Currency,
					})
				}
			}
		}
	}

	target, hasTarget := preferenceTarget(now, q.PreferredDate, q.PreferredTime)
	for i := range slots {
		if hasTarget {
			slots[i].Score = absMinutes(slots[i].Start.Sub(target))
		} else {
			slots[i].Score = absMinutes(slots[i].Start.Sub(now))
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score < slots[j].Score
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	if len(slots) > q.MaxResults {
		slots = slots[:q.MaxResults]
	}
	if len(slots) > 0 {
		slots[0].Preferred = true
	}
	return slots, nil
}

// preferenceTarget anchors the customer's stated preference to a concrete
// instant. A date without a time anchors at noon so same-day slots always
// outrank adjacent days; a time without a date anchors on today.
func preferenceTarget(now time.Time, date *time.Time, tod *TimeOfDay) (time.Time, bool) {
	loc := now.Location()
	switch {
	case date != nil && tod != nil:
		return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, 0, 0, loc), true
	case date != nil:
		return time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, loc), true
	case tod != nil:
		return time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, loc), true
	default:
		return time.Time{}, false
	}
}

func overlapsAny(slot Interval, booked []Interval) bool {
	for _, b := range booked {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}

func absMinutes(d time.Duration) int {
	if d < 0 {
		d = -d
	}
	return int(d / time.Minute)
}

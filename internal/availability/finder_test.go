package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapbook/salon-booking/internal/catalog"
	"github.com/tapbook/salon-booking/pkg/logging"
)

type fakeBookings struct {
	intervals map[string][]Interval
	calls     map[string]int
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		intervals: make(map[string][]Interval),
		calls:     make(map[string]int),
	}
}

func (f *fakeBookings) BookedIntervals(_ context.Context, staffID string, _, _ time.Time) ([]Interval, error) {
	f.calls[staffID]++
	return f.intervals[staffID], nil
}

// Wednesday 2026-09-02 09:00 local is the reference "now" for these tests.
var testNow = time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)

func testService() catalog.Service {
	return catalog.Service{
		ID:              "svc-haircut",
		SalonID:         "salon-1",
		Name:            "Haircut",
		DurationMinutes: 30,
		PriceCents:      3500,
		Currency:        "USD",
	}
}

func fullWeekHours(startMin, endMin int) map[time.Weekday][]catalog.Shift {
	hours := make(map[time.Weekday][]catalog.Shift)
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = []catalog.Shift{{StartMinute: startMin, EndMinute: endMin}}
	}
	return hours
}

func newTestFinder(bookings BookingSource) *Finder {
	return NewFinder(bookings, 30*time.Minute, logging.New("error")).
		WithClock(func() time.Time { return testNow })
}

func TestFindSlotsRespectsWorkingHours(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	slots, err := finder.FindSlots(context.Background(), Query{
		Service: testService(),
		Staff: []StaffCandidate{{
			ID:    "staff-1",
			Name:  "Maria",
			Hours: fullWeekHours(9*60, 17*60),
		}},
		HorizonDays: 3,
		MaxResults:  50,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for _, s := range slots {
		minuteOfDay := s.Start.Hour()*60 + s.Start.Minute()
		endMinute := s.End.Hour()*60 + s.End.Minute()
		assert.GreaterOrEqual(t, minuteOfDay, 9*60, "slot %v starts before opening", s.Start)
		assert.LessOrEqual(t, endMinute, 17*60, "slot %v ends after closing", s.End)
	}
}

func TestFindSlotsRespectsExistingBookings(t *testing.T) {
	bookings := newFakeBookings()
	busyStart := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	bookings.intervals["staff-1"] = []Interval{{Start: busyStart, End: busyStart.Add(time.Hour)}}

	finder := newTestFinder(bookings)
	slots, err := finder.FindSlots(context.Background(), Query{
		Service: testService(),
		Staff: []StaffCandidate{{
			ID:    "staff-1",
			Name:  "Maria",
			Hours: fullWeekHours(9*60, 17*60),
		}},
		HorizonDays: 3,
		MaxResults:  100,
	})
	require.NoError(t, err)

	busy := Interval{Start: busyStart, End: busyStart.Add(time.Hour)}
	for _, s := range slots {
		assert.False(t, Interval{Start: s.Start, End: s.End}.Overlaps(busy),
			"slot %v overlaps existing booking", s.Start)
	}
}

func TestFindSlotsOneRangeQueryPerStaff(t *testing.T) {
	bookings := newFakeBookings()
	finder := newTestFinder(bookings)
	_, err := finder.FindSlots(context.Background(), Query{
		Service: testService(),
		Staff: []StaffCandidate{
			{ID: "staff-1", Name: "Maria", Hours: fullWeekHours(9*60, 17*60)},
			{ID: "staff-2", Name: "Sam", Hours: fullWeekHours(10*60, 18*60)},
		},
		HorizonDays: 14,
		MaxResults:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bookings.calls["staff-1"])
	assert.Equal(t, 1, bookings.calls["staff-2"])
}

func TestFindSlotsPreferredFlagClosestToPreference(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	friday := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	slots, err := finder.FindSlots(context.Background(), Query{
		Service: testService(),
		Staff: []StaffCandidate{{
			ID:    "staff-1",
			Name:  "Maria",
			Hours: fullWeekHours(9*60, 17*60),
		}},
		PreferredDate: &friday,
		PreferredTime: &TimeOfDay{Hour: 15},
		HorizonDays:   7,
		MaxResults:    100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	assert.True(t, slots[0].Preferred)
	assert.Equal(t, friday.Add(15*time.Hour), slots[0].Start)

	preferredCount := 0
	for _, s := range slots {
		if s.Preferred {
			preferredCount++
		}
	}
	assert.Equal(t, 1, preferredCount, "exactly one slot must be flagged preferred")
}

func TestFindSlotsRankedByProximity(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	slots, err := finder.FindSlots(context.Background(), Query{
		Service: testService(),
		Staff: []StaffCandidate{{
			ID:    "staff-1",
			Name:  "Maria",
			Hours: fullWeekHours(9*60, 17*60),
		}},
		PreferredTime: &TimeOfDay{Hour: 15},
		HorizonDays:   2,
		MaxResults:    100,
	})
	require.NoError(t, err)
	for i := 1; i < len(slots); i++ {
		assert.LessOrEqual(t, slots[i-1].Score, slots[i].Score, "slots must be ordered by score")
	}
}

func TestFindSlotsNoWorkingHoursDayContributesNothing(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	// Works Fridays only.
	hours := map[time.Weekday][]catalog.Shift{
		time.Friday: {{StartMinute: 9 * 60, EndMinute: 12 * 60}},
	}
	slots, err := finder.FindSlots(context.Background(), Query{
		Service:     testService(),
		Staff:       []StaffCandidate{{ID: "staff-1", Name: "Maria", Hours: hours}},
		HorizonDays: 7,
		MaxResults:  100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.Equal(t, time.Friday, s.Start.Weekday())
	}
}

func TestFindSlotsServiceLongerThanWindow(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	svc := testService()
	svc.DurationMinutes = 240
	hours := map[time.Weekday][]catalog.Shift{
		time.Thursday: {{StartMinute: 9 * 60, EndMinute: 11 * 60}},
	}
	slots, err := finder.FindSlots(context.Background(), Query{
		Service:     svc,
		Staff:       []StaffCandidate{{ID: "staff-1", Name: "Maria", Hours: hours}},
		HorizonDays: 7,
		MaxResults:  100,
	})
	require.NoError(t, err)
	assert.Empty(t, slots, "a service longer than any working window yields zero slots, not an error")
	assert.NotNil(t, slots)
}

func TestFindSlotsZeroMaxResults(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	slots, err := finder.FindSlots(context.Background(), Query{
		Service:     testService(),
		Staff:       []StaffCandidate{{ID: "staff-1", Name: "Maria", Hours: fullWeekHours(9*60, 17*60)}},
		HorizonDays: 7,
		MaxResults:  0,
	})
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestFindSlotsSkipsPastTimes(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	slots, err := finder.FindSlots(context.Background(), Query{
		Service:     testService(),
		Staff:       []StaffCandidate{{ID: "staff-1", Name: "Maria", Hours: fullWeekHours(8*60, 17*60)}},
		HorizonDays: 0,
		MaxResults:  100,
	})
	require.NoError(t, err)
	for _, s := range slots {
		assert.True(t, s.Start.After(testNow), "slot %v is in the past", s.Start)
	}
}

func TestFindSlotsPreferenceBeyondCapStillRanksFirst(t *testing.T) {
	// With full-week availability, Wednesday alone produces more than ten
	// candidates. A Friday-afternoon preference must still surface Friday
	// slots: ranking happens over the whole horizon, the cap applies after.
	finder := newTestFinder(newFakeBookings())
	friday := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	slots, err := finder.FindSlots(context.Background(), Query{
		Service: testService(),
		Staff: []StaffCandidate{{
			ID:    "staff-1",
			Name:  "Maria",
			Hours: fullWeekHours(9*60, 17*60),
		}},
		PreferredDate: &friday,
		PreferredTime: &TimeOfDay{Hour: 15},
		HorizonDays:   14,
		MaxResults:    10,
	})
	require.NoError(t, err)
	require.Len(t, slots, 10)

	assert.True(t, slots[0].Preferred)
	assert.Equal(t, friday.Add(15*time.Hour), slots[0].Start)
	for _, s := range slots {
		assert.Equal(t, time.Friday, s.Start.Weekday(),
			"slot %v: every offered slot should sit on the preferred day", s.Start)
	}
}

func TestFindSlotsCapsAtMaxResults(t *testing.T) {
	finder := newTestFinder(newFakeBookings())
	slots, err := finder.FindSlots(context.Background(), Query{
		Service:     testService(),
		Staff:       []StaffCandidate{{ID: "staff-1", Name: "Maria", Hours: fullWeekHours(9*60, 17*60)}},
		HorizonDays: 14,
		MaxResults:  10,
	})
	require.NoError(t, err)
	assert.Len(t, slots, 10)
}

package card

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapbook/salon-booking/internal/availability"
)

func makeSlots(n int) []availability.CandidateSlot {
	base := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)
	slots := make([]availability.CandidateSlot, 0, n)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		slots = append(slots, availability.CandidateSlot{
			ServiceID:  "svc-1",
			StaffID:    fmt.Sprintf("staff-%d", i%2+1),
			StaffName:  "Maria",
			Start:      start,
			End:        start.Add(30 * time.Minute),
			PriceCents: 3500,
			Currency:   "USD",
		})
	}
	return slots
}

func TestSlotCardShapeSwitchesAtBoundary(t *testing.T) {
	b := NewBuilder()

	three := b.BuildSlotCard(makeSlots(3), "en")
	assert.Equal(t, KindButtons, three.Kind, "exactly 3 candidates render as buttons")
	assert.Len(t, three.Buttons, 3)

	four := b.BuildSlotCard(makeSlots(4), "en")
	assert.Equal(t, KindList, four.Kind, "exactly 4 candidates render as a list")
	assert.Empty(t, four.Buttons)

	zero := b.BuildSlotCard(nil, "en")
	assert.Equal(t, KindText, zero.Kind, "0 candidates produce the no-availability text")
	assert.Empty(t, zero.Buttons)
	assert.Empty(t, zero.Sections)
}

func TestSlotCardButtonsCarryDecodableIDs(t *testing.T) {
	b := NewBuilder()
	p := b.BuildSlotCard(makeSlots(2), "en")
	require.Len(t, p.Buttons, 2)
	for _, btn := range p.Buttons {
		assert.True(t, strings.HasPrefix(btn.ID, "slot_"), "button id %q", btn.ID)
		assert.LessOrEqual(t, len(btn.ID), b.ButtonIDMaxLen)
	}
	assert.Equal(t, "slot_2026-09-04_09:00_staff-1", p.Buttons[0].ID)
}

func TestListCardGroupsByDate(t *testing.T) {
	b := NewBuilder()
	slots := makeSlots(3)
	nextDay := time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)
	slots = append(slots, availability.CandidateSlot{
		ServiceID: "svc-1", StaffID: "staff-1", StaffName: "Maria",
		Start: nextDay, End: nextDay.Add(30 * time.Minute),
		PriceCents: 3500, Currency: "USD",
	})

	p := b.BuildSlotCard(slots, "en")
	require.Equal(t, KindList, p.Kind)
	require.Len(t, p.Sections, 2, "one section per calendar date")
	assert.Len(t, p.Sections[0].Rows, 3)
	assert.Len(t, p.Sections[1].Rows, 1)
	for _, sec := range p.Sections {
		for _, row := range sec.Rows {
			assert.LessOrEqual(t, len(row.ID), b.ListRowIDMaxLen)
			assert.True(t, strings.HasPrefix(row.ID, "slot_"))
		}
	}
}

func TestListCardTruncatesBeyondThreshold(t *testing.T) {
	b := NewBuilder()
	p := b.BuildSlotCard(makeSlots(14), "en")
	require.Equal(t, KindList, p.Kind)
	total := 0
	for _, sec := range p.Sections {
		total += len(sec.Rows)
	}
	assert.Equal(t, 10, total)
}

func TestConfirmationCardHasExactlyTwoActions(t *testing.T) {
	b := NewBuilder()
	slot := makeSlots(1)[0]
	p := b.BuildConfirmationCard(slot, "sess-42", "en")

	require.Len(t, p.Buttons, 2)
	assert.Equal(t, "confirm_sess-42", p.Buttons[0].ID)
	assert.Equal(t, "cancel_sess-42", p.Buttons[1].ID)
	assert.Contains(t, p.Text, "Maria")
	assert.Contains(t, p.Text, "$35.00")
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	b := NewBuilder()
	p := b.BuildSlotCard(makeSlots(2), "xx")
	assert.Equal(t, KindButtons, p.Kind)
	assert.NotEmpty(t, p.Text, "unknown locale must fall back, not fail")
	assert.Equal(t, b.Messages("en"), b.Messages("xx"))
}

func TestLocaleFormatting(t *testing.T) {
	b := NewBuilder()
	slot := makeSlots(1)[0]

	en := b.BuildConfirmationCard(slot, "s", "en")
	assert.Contains(t, en.Text, "9:00 AM")

	de := b.BuildConfirmationCard(slot, "s", "de")
	assert.Contains(t, de.Text, "09:00")
	assert.Contains(t, de.Text, "Bestätigen?")
}

func TestWaitlistOffer(t *testing.T) {
	b := NewBuilder()
	p := b.BuildWaitlistOffer("svc-1", "en")
	require.Len(t, p.Buttons, 1)
	assert.Equal(t, "waitlist_join_svc-1", p.Buttons[0].ID)
}

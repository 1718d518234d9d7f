// Package card renders slot offers and confirmation summaries into the two
// presentation shapes the chat transport supports: a small button set or a
// longer list grouped into labeled sections.
package card

import (
	"fmt"
	"sort"
	"time"

	"github.com/tapbook/salon-booking/internal/action"
	"github.com/tapbook/salon-booking/internal/availability"
)

// Kind discriminates the presentation shape.
type Kind string

const (
	KindText    Kind = "text"
	KindButtons Kind = "buttons"
	KindList    Kind = "list"
)

// Presentation is the transport-agnostic outbound message shape.
type Presentation struct {
	Kind     Kind
	Text     string
	Buttons  []Button
	Sections []Section
}

// Button is one tappable action.
type Button struct {
	ID    string
	Title string
}

// Section groups list rows under a label, one section per calendar date.
type Section struct {
	Title string
	Rows  []Row
}

// Row is one tappable list entry.
type Row struct {
	ID          string
	Title       string
	Description string
}

// Builder renders candidate slots and confirmations. Shape thresholds and id
// ceilings are configuration; the defaults match the transport limits of
// 3 buttons per set and 10 rows per list.
type Builder struct {
	ButtonThreshold int
	ListThreshold   int
	ButtonIDMaxLen  int
	ListRowIDMaxLen int
	DefaultLanguage string
}

// NewBuilder returns a builder with transport-default thresholds.
func NewBuilder() *Builder {
	return &Builder{
		ButtonThreshold: 3,
		ListThreshold:   10,
		ButtonIDMaxLen:  action.MaxButtonIDLen,
		ListRowIDMaxLen: action.MaxListRowIDLen,
		DefaultLanguage: "en",
	}
}

// BuildSlotCard renders candidates as buttons (≤ButtonThreshold) or a
// date-sectioned list (up to ListThreshold). Callers must truncate candidate
// lists beyond ListThreshold; anything longer is cut to the first
// ListThreshold rows here as a backstop.
func (b *Builder) BuildSlotCard(slots []availability.CandidateSlot, lang string) Presentation {
	loc := b.locale(lang)
	if len(slots) == 0 {
		return Presentation{Kind: KindText, Text: loc.msgs.NoAvailability}
	}
	if len(slots) > b.ListThreshold {
		slots = slots[:b.ListThreshold]
	}

	if len(slots) <= b.ButtonThreshold {
		buttons := make([]Button, 0, len(slots))
		for _, s := range slots {
			id := action.Truncate(action.SlotAction{Start: s.Start, StaffID: s.StaffID}.Encode(), b.ButtonIDMaxLen)
			buttons = append(buttons, Button{
				ID:    id,
				Title: loc.shortSlot(s.Start),
			})
		}
		return Presentation{
			Kind:    KindButtons,
			Text:    loc.slotOfferText(slots),
			Buttons: buttons,
		}
	}

	return Presentation{
		Kind:     KindList,
		Text:     loc.msgs.PickFromList,
		Sections: b.buildSections(slots, loc),
	}
}

func (b *Builder) buildSections(slots []availability.CandidateSlot, loc locale) []Section {
	byDate := make(map[string][]availability.CandidateSlot)
	var order []string
	for _, s := range slots {
		key := s.Start.Format("2006-01-02")
		if _, seen := byDate[key]; !seen {
			order = append(order, key)
		}
		byDate[key] = append(byDate[key], s)
	}
	sort.Strings(order)

	sections := make([]Section, 0, len(order))
	for _, key := range order {
		daySlots := byDate[key]
		sort.Slice(daySlots, func(i, j int) bool { return daySlots[i].Start.Before(daySlots[j].Start) })
		rows := make([]Row, 0, len(daySlots))
		for _, s := range daySlots {
			id := action.Truncate(action.SlotAction{Start: s.Start, StaffID: s.StaffID}.Encode(), b.ListRowIDMaxLen)
			rows = append(rows, Row{
				ID:          id,
				Title:       loc.clock(s.Start),
				Description: fmt.Sprintf("%s · %s", s.StaffName, loc.price(s.PriceCents, s.Currency)),
			})
		}
		sections = append(sections, Section{
			Title: loc.date(daySlots[0].Start),
			Rows:  rows,
		})
	}
	return sections
}

// BuildConfirmationCard renders the selected slot with exactly two actions:
// confirm and change/cancel.
func (b *Builder) BuildConfirmationCard(slot availability.CandidateSlot, entityID, lang string) Presentation {
	loc := b.locale(lang)
	return Presentation{
		Kind: KindButtons,
		Text: fmt.Sprintf(loc.msgs.ConfirmPrompt,
			loc.date(slot.Start), loc.clock(slot.Start), slot.StaffName, loc.price(slot.PriceCents, slot.Currency)),
		Buttons: []Button{
			{
				ID:    action.Truncate(action.ConfirmAction{EntityID: entityID}.Encode(), b.ButtonIDMaxLen),
				Title: loc.msgs.ConfirmLabel,
			},
			{
				ID:    action.Truncate(action.CancelAction{EntityID: entityID}.Encode(), b.ButtonIDMaxLen),
				Title: loc.msgs.CancelLabel,
			},
		},
	}
}

// BuildWaitlistOffer renders the no-availability reply with a waitlist button.
func (b *Builder) BuildWaitlistOffer(serviceID, lang string) Presentation {
	loc := b.locale(lang)
	return Presentation{
		Kind: KindButtons,
		Text: loc.msgs.NoAvailability,
		Buttons: []Button{{
			ID:    action.Truncate(action.WaitlistAction{Verb: "join", WaitlistID: serviceID}.Encode(), b.ButtonIDMaxLen),
			Title: loc.msgs.WaitlistLabel,
		}},
	}
}

// Text renders a plain text presentation.
func Text(text string) Presentation {
	return Presentation{Kind: KindText, Text: text}
}

func (b *Builder) locale(lang string) locale {
	if loc, ok := locales[lang]; ok {
		return loc
	}
	if loc, ok := locales[b.DefaultLanguage]; ok {
		return loc
	}
	return locales["en"]
}

// Messages returns the localized flow texts for a language, falling back to
// the builder default for unknown codes.
func (b *Builder) Messages(lang string) Msgs {
	return b.locale(lang).msgs
}

// FormatWhen renders an instant as localized date and clock strings.
func (b *Builder) FormatWhen(t time.Time, lang string) (date, clock string) {
	loc := b.locale(lang)
	return loc.date(t), loc.clock(t)
}

func (loc locale) shortSlot(t time.Time) string {
	return fmt.Sprintf("%s %s", t.Format("Mon"), loc.clock(t))
}

func (loc locale) slotOfferText(slots []availability.CandidateSlot) string {
	best := slots[0]
	return fmt.Sprintf(loc.msgs.SlotsFound, best.StaffName, loc.date(best.Start))
}

// Package action encodes user-selectable actions into opaque identifiers that
// round-trip through the chat transport's button UI, and parses them back.
// Decoding is a pure function of the string: it never consults other state,
// and it fails closed on anything malformed.
package action

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Type tags the action variant carried by an identifier prefix.
type Type string

const (
	TypeSlot     Type = "slot"
	TypeConfirm  Type = "confirm"
	TypeCancel   Type = "cancel"
	TypeWaitlist Type = "waitlist"
	TypeNav      Type = "nav"
	TypeNamed    Type = "action"
)

// Identifier length ceilings imposed by the transport.
const (
	MaxButtonIDLen  = 256
	MaxListRowIDLen = 200
)

// ErrMalformed is returned when an identifier does not match any per-type
// format. Guessing on a booking action risks silent misbooking, so decode
// never produces a partial result.
var ErrMalformed = errors.New("action: malformed identifier")

// Action is the tagged-variant decode result. Every caller must handle the
// decode error case explicitly; there is no best-effort variant.
type Action interface {
	Type() Type
	// Encode renders the canonical identifier for this action.
	Encode() string
}

// SlotAction selects one candidate slot: slot_<YYYY-MM-DD>_<HH:MM>_<staffId>.
type SlotAction struct {
	Start   time.Time
	StaffID string
}

func (a SlotAction) Type() Type { return TypeSlot }

func (a SlotAction) Encode() string {
	return join(string(TypeSlot), a.Start.Format("2006-01-02"), a.Start.Format("15:04"), sanitize(a.StaffID))
}

// ConfirmAction confirms the selected slot: confirm_<entityId>.
type ConfirmAction struct {
	EntityID string
}

func (a ConfirmAction) Type() Type     { return TypeConfirm }
func (a ConfirmAction) Encode() string { return join(string(TypeConfirm), sanitize(a.EntityID)) }

// CancelAction abandons the negotiation: cancel_<entityId>.
type CancelAction struct {
	EntityID string
}

func (a CancelAction) Type() Type     { return TypeCancel }
func (a CancelAction) Encode() string { return join(string(TypeCancel), sanitize(a.EntityID)) }

// WaitlistAction operates on the waitlist: waitlist_<action>_<waitlistId>.
type WaitlistAction struct {
	Verb       string
	WaitlistID string
}

func (a WaitlistAction) Type() Type { return TypeWaitlist }

func (a WaitlistAction) Encode() string {
	return join(string(TypeWaitlist), sanitize(a.Verb), sanitize(a.WaitlistID))
}

// NavAction pages through a slot list: nav_<direction>.
type NavAction struct {
	Direction string // "next" or "prev"
}

func (a NavAction) Type() Type     { return TypeNav }
func (a NavAction) Encode() string { return join(string(TypeNav), sanitize(a.Direction)) }

// NamedAction is a free-standing named action: action_<name>.
type NamedAction struct {
	Name string
}

func (a NamedAction) Type() Type     { return TypeNamed }
func (a NamedAction) Encode() string { return join(string(TypeNamed), sanitize(a.Name)) }

var (
	slotRe     = regexp.MustCompile(`^slot_(\d{4}-\d{2}-\d{2})_(\d{2}:\d{2})_([A-Za-z0-9:-]+)$`)
	confirmRe  = regexp.MustCompile(`^confirm_([A-Za-z0-9:-]+)$`)
	cancelRe   = regexp.MustCompile(`^cancel_([A-Za-z0-9:-]+)$`)
	waitlistRe = regexp.MustCompile(`^waitlist_([a-z]+)_([A-Za-z0-9:-]+)$`)
	navRe      = regexp.MustCompile(`^nav_(next|prev)$`)
	namedRe    = regexp.MustCompile(`^action_([a-z0-9-]+)$`)
)

// Decode parses an identifier back into its action. Any string that does not
// match a per-type format decodes to ErrMalformed, including truncated ids
// and syntactically valid but impossible dates.
func Decode(id string) (Action, error) {
	switch {
	case slotRe.MatchString(id):
		m := slotRe.FindStringSubmatch(id)
		start, err := time.ParseInLocation("2006-01-02 15:04", m[1]+" "+m[2], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid slot timestamp %q", ErrMalformed, id)
		}
		// Reject normalized dates like 2026-02-31.
		if start.Format("2006-01-02") != m[1] {
			return nil, fmt.Errorf("%w: impossible date %q", ErrMalformed, m[1])
		}
		return SlotAction{Start: start, StaffID: m[3]}, nil
	case confirmRe.MatchString(id):
		return ConfirmAction{EntityID: confirmRe.FindStringSubmatch(id)[1]}, nil
	case cancelRe.MatchString(id):
		return CancelAction{EntityID: cancelRe.FindStringSubmatch(id)[1]}, nil
	case waitlistRe.MatchString(id):
		m := waitlistRe.FindStringSubmatch(id)
		return WaitlistAction{Verb: m[1], WaitlistID: m[2]}, nil
	case navRe.MatchString(id):
		return NavAction{Direction: navRe.FindStringSubmatch(id)[1]}, nil
	case namedRe.MatchString(id):
		return NamedAction{Name: namedRe.FindStringSubmatch(id)[1]}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrMalformed, id)
	}
}

// Truncate caps an identifier at the transport ceiling while preserving the
// prefix and as much trailing context as fits.
func Truncate(id string, limit int) string {
	if limit <= 0 || len(id) <= limit {
		return id
	}
	return id[:limit]
}

func join(parts ...string) string {
	return strings.Join(parts, "_")
}

// sanitize strips characters outside [A-Za-z0-9:-] so a field can never smuggle
// an underscore separator into the identifier.
func sanitize(field string) string {
	var b strings.Builder
	b.Grow(len(field))
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ':', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// KeywordExtractor is a deterministic extractor handling the common
// "<service> <day> <time>" message shape. It backs tests and acts as the
// fallback when the LLM extractor is unavailable.
type KeywordExtractor struct {
	now func() time.Time
}

// NewKeywordExtractor creates the deterministic extractor.
func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{now: time.Now}
}

// WithClock overrides the extractor's clock. Tests only.
func (e *KeywordExtractor) WithClock(now func() time.Time) *KeywordExtractor {
	e.now = now
	return e
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var (
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clock24Re   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	clockAmPmRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)$`)
)

// Parse never returns an error: unrecognized text yields a low-confidence
// intent, which the orchestrator turns into a clarification prompt.
func (e *KeywordExtractor) Parse(_ context.Context, text, _ string) (Intent, error) {
	now := e.now()
	var out Intent

	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	var serviceWords []string
	consumed := make([]bool, len(tokens))

	for i, tok := range tokens {
		tok = strings.Trim(tok, ".,!?")
		switch {
		case tok == "today":
			d := dateOnly(now)
			out.Date = &d
			consumed[i] = true
		case tok == "tomorrow":
			d := dateOnly(now.AddDate(0, 0, 1))
			out.Date = &d
			consumed[i] = true
		case weekdayMatch(tok) != nil:
			d := nextWeekday(now, *weekdayMatch(tok))
			out.Date = &d
			consumed[i] = true
		case isoDateRe.MatchString(tok):
			if parsed, err := time.ParseInLocation("2006-01-02", tok, now.Location()); err == nil {
				d := dateOnly(parsed)
				out.Date = &d
				consumed[i] = true
			}
		case clockAmPmRe.MatchString(tok):
			if ct := parseAmPm(tok); ct != nil {
				out.Time = ct
				consumed[i] = true
			}
		case clock24Re.MatchString(tok):
			if ct := parseClock24(tok); ct != nil {
				out.Time = ct
				consumed[i] = true
			}
		case tok == "with" && i+1 < len(tokens):
			out.StaffName = strings.Trim(tokens[i+1], ".,!?")
			consumed[i] = true
			consumed[i+1] = true
		case tok == "at" || tok == "on" || tok == "a" || tok == "an" || tok == "the":
			consumed[i] = true
		}
	}

	for i, tok := range tokens {
		if !consumed[i] {
			serviceWords = append(serviceWords, strings.Trim(tok, ".,!?"))
		}
	}
	out.ServiceName = strings.Join(serviceWords, " ")

	switch {
	case out.ServiceName == "":
		out.Confidence = 0.1
	case out.Date != nil || out.Time != nil:
		out.Confidence = 0.9
	default:
		out.Confidence = 0.6
	}
	return out, nil
}

func weekdayMatch(tok string) *time.Weekday {
	if wd, ok := weekdays[tok]; ok {
		return &wd
	}
	return nil
}

// nextWeekday returns the next occurrence of the weekday, today included.
func nextWeekday(now time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(now.Weekday()) + 7) % 7
	return dateOnly(now.AddDate(0, 0, days))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseAmPm(tok string) *ClockTime {
	m := clockAmPmRe.FindStringSubmatch(tok)
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return nil
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return nil
		}
	}
	if m[3] == "pm" && hour != 12 {
		hour += 12
	}
	if m[3] == "am" && hour == 12 {
		hour = 0
	}
	return &ClockTime{Hour: hour, Minute: minute}
}

func parseClock24(tok string) *ClockTime {
	m := clock24Re.FindStringSubmatch(tok)
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return nil
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return nil
	}
	return &ClockTime{Hour: hour, Minute: minute}
}

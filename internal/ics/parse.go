package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "schedcard/internal/log"
)

// ParsedEvent is one VEVENT reduced to what the schedule needs. Series are
// not expanded here; see ExpandOccurrences.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
	// Recurrence is the RECURRENCE-ID of an override; IsOverride is set
	// together with it.
	Recurrence *time.Time
	IsOverride bool
}

const propRecurrenceID = ical.ComponentProperty("RECURRENCE-ID")

// ParseICS parses one calendar payload. VEVENTs that cannot be read are
// logged and skipped; only an unreadable calendar is an error.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics %s: parse calendar: %w", src.ID, err)
	}

	vevents := cal.Events()
	events := make([]ParsedEvent, 0, len(vevents))
	for _, ve := range vevents {
		ev, err := parseVEvent(src, ve)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parsed", "id", src.ID, "events", len(events), "skipped", len(vevents)-len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	ev := ParsedEvent{Source: src}

	ev.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if ev.UID == "" {
		return ev, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertySequence)); err == nil {
		ev.Seq = n
	}
	ev.Summary = propValue(ve, ical.ComponentPropertySummary)
	ev.Description = propValue(ve, ical.ComponentPropertyDescription)
	ev.Location = propValue(ve, ical.ComponentPropertyLocation)
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		ev.Categories = append(ev.Categories, splitCategories(p.Value)...)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	// The library resolves VTIMEZONE definitions; fall back to our own
	// TZID handling for feeds it rejects.
	start, err := ve.GetStartAt()
	if err != nil {
		if start, err = propTime(dtStart, time.Local); err != nil {
			return ev, fmt.Errorf("DTSTART: %w", err)
		}
	}
	ev.Start = start

	ev.End = start
	if end, err := ve.GetEndAt(); err == nil {
		ev.End = end
	} else if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		if end, err := propTime(p, start.Location()); err == nil {
			ev.End = end
		}
	}
	if ev.AllDay && !ev.End.After(ev.Start) {
		ev.End = ev.Start.AddDate(0, 0, 1)
	}

	ev.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseICSTime(part, paramLocation(p, start.Location()))
			if err != nil {
				appLog.Debug("ics exdate ignored", "uid", ev.UID, "value", part, "err", err)
				continue
			}
			ev.ExDates = append(ev.ExDates, t)
		}
	}

	if p := ve.GetProperty(propRecurrenceID); p != nil {
		if t, err := propTime(p, start.Location()); err == nil {
			ev.Recurrence = &t
			ev.IsOverride = true
		}
	}

	return ev, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func param(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// isDateValue reports a DATE (all-day) rather than DATE-TIME value.
func isDateValue(p *ical.IANAProperty) bool {
	return strings.EqualFold(param(p, "VALUE"), "DATE") || !strings.Contains(p.Value, "T")
}

// paramLocation resolves the TZID parameter of p, or returns fallback.
func paramLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tzid := param(p, "TZID"); tzid != "" {
		if loc, err := time.LoadLocation(tzid); err == nil {
			return loc
		}
	}
	return fallback
}

func propTime(p *ical.IANAProperty, fallback *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, paramLocation(p, fallback))
}

// parseICSTime parses DATE, floating DATE-TIME (in loc) and UTC DATE-TIME
// values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if loc == nil {
		loc = time.Local
	}
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// splitCategories splits a CATEGORIES value on unescaped commas.
func splitCategories(v string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if c := strings.TrimSpace(cur.String()); c != "" {
			out = append(out, c)
		}
		cur.Reset()
	}
	for i := 0; i < len(v); i++ {
		switch {
		case v[i] == '\\' && i+1 < len(v):
			i++
			cur.WriteByte(v[i])
		case v[i] == ',':
			flush()
		default:
			cur.WriteByte(v[i])
		}
	}
	flush()
	return out
}

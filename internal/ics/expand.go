package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "schedcard/internal/log"
	"schedcard/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone every occurrence is converted to. If nil,
	// time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the window. An occurrence is kept when
	// any part of it overlaps the window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero selects
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the expanded occurrences, ordered by start time.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs whose series hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// series is one UID: its master VEVENT(s) and the RECURRENCE-ID overrides
// keyed by the unix second of the instance they replace.
type series struct {
	masters   []ParsedEvent
	overrides map[int64]ParsedEvent
}

// ExpandOccurrences turns parsed VEVENTs into concrete occurrences that
// overlap the configured window. RRULE series honor EXDATE and
// RECURRENCE-ID overrides, including overrides that move an instance into
// the window from outside it.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	byUID := make(map[string]*series)
	uids := make([]string, 0)
	for _, ev := range events {
		s, ok := byUID[ev.UID]
		if !ok {
			s = &series{overrides: make(map[int64]ParsedEvent)}
			byUID[ev.UID] = s
			uids = append(uids, ev.UID)
		}
		if ev.IsOverride && ev.Recurrence != nil {
			s.overrides[ev.Recurrence.Unix()] = ev
		} else {
			s.masters = append(s.masters, ev)
		}
	}
	// Map order is random; keep the output reproducible.
	sort.Strings(uids)

	for _, uid := range uids {
		s := byUID[uid]
		used := make(map[int64]bool)
		truncated := false

		for _, ev := range s.masters {
			var occs []model.Occurrence
			var hitCap bool
			if ev.RawRRule == "" {
				occs = expandSingle(ev, s.overrides, used, cfg)
			} else {
				occs, hitCap = expandSeries(ev, s.overrides, used, cfg)
			}
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occs...)
		}

		// Overrides whose original slot lies outside the window may still
		// have been moved into it.
		for rid, ov := range s.overrides {
			if used[rid] || len(s.masters) == 0 {
				continue
			}
			if overlaps(ov.Start, ov.End, cfg.RangeStart, cfg.RangeEnd) {
				result.Occurrences = append(result.Occurrences, toOccurrence(ov, ov.Start, ov.End, cfg.DisplayLocation))
			}
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: series truncated", errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		return result.Occurrences[i].Start.Before(result.Occurrences[j].Start)
	})
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides map[int64]ParsedEvent, used map[int64]bool, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if ov, ok := overrides[start.Unix()]; ok {
		used[start.Unix()] = true
		ev, start, end = ov, ov.Start, ov.End
	}
	if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Occurrence{toOccurrence(ev, start, end, cfg.DisplayLocation)}
}

// expandSeries walks the RRULE set from DTSTART and stops once an instance
// starts after RangeEnd, so unbounded rules cost only as much as the window.
func expandSeries(ev ParsedEvent, overrides map[int64]ParsedEvent, used map[int64]bool, cfg ExpandConfig) ([]model.Occurrence, bool) {
	rule, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	var out []model.Occurrence
	next := set.Iterator()
	for {
		start, ok := next()
		if !ok || start.After(cfg.RangeEnd) {
			return out, false
		}
		end := instanceEnd(ev, start)

		occEv := ev
		if ov, ok := overrides[start.Unix()]; ok {
			used[start.Unix()] = true
			occEv, start, end = ov, ov.Start, ov.End
		}
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		if len(out) == cfg.MaxOccurrencesPerEvent {
			return out, true
		}
		out = append(out, toOccurrence(occEv, start, end, cfg.DisplayLocation))
	}
}

// instanceEnd keeps the master's length: whole days for all-day events
// (DST-safe), the exact duration otherwise.
func instanceEnd(ev ParsedEvent, start time.Time) time.Time {
	if ev.AllDay {
		days := int(ev.End.Sub(ev.Start).Round(24*time.Hour) / (24 * time.Hour))
		return start.AddDate(0, 0, max(days, 1))
	}
	return start.Add(ev.End.Sub(ev.Start))
}

func toOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	start = start.In(loc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Categories:  ev.Categories,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end.In(loc),
	}
}

// overlaps reports whether [aStart, aEnd) touches [bStart, bEnd]. A
// zero-length event counts when its instant lies inside the window.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(aStart) {
		aEnd = aStart
	}
	if aStart.After(bEnd) {
		return false
	}
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart)
	}
	return aEnd.After(bStart)
}

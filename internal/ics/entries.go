package ics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"schedcard/internal/datefmt"
	"schedcard/internal/model"
)

// EntryOptions controls how occurrences become schedule card entries.
type EntryOptions struct {
	// Location is the display timezone. If nil, time.Local is used.
	Location *time.Location

	// Now and Horizon define the window [Now, Now+Horizon). Occurrences
	// still running at Now are included.
	Now     time.Time
	Horizon time.Duration

	// MaxEntries caps the result. Zero or values above model.MaxEntries
	// select model.MaxEntries.
	MaxEntries int

	// DatePattern formats the display strings (see package datefmt).
	DatePattern string

	// IncludeAllDay keeps all-day occurrences.
	IncludeAllDay bool

	// CategoryImages maps a category name (case-insensitive) to an image
	// reference.
	CategoryImages map[string]string
}

// BuildEntries filters occurrences to the window, sorts them ascending by
// start time, truncates to MaxEntries and formats the display strings.
func BuildEntries(occs []model.Occurrence, opts EntryOptions) []model.ScheduleEntry {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	limit := opts.MaxEntries
	if limit <= 0 || limit > model.MaxEntries {
		limit = model.MaxEntries
	}
	windowEnd := opts.Now.Add(opts.Horizon)

	images := make(map[string]string, len(opts.CategoryImages))
	for k, v := range opts.CategoryImages {
		images[strings.ToLower(strings.TrimSpace(k))] = v
	}

	kept := make([]model.Occurrence, 0, len(occs))
	for _, occ := range occs {
		if occ.AllDay && !opts.IncludeAllDay {
			continue
		}
		end := occ.End
		if end.Before(occ.Start) {
			end = occ.Start
		}
		if !end.After(opts.Now) && !occ.Start.Equal(opts.Now) {
			continue
		}
		if opts.Horizon > 0 && !occ.Start.Before(windowEnd) {
			continue
		}
		kept = append(kept, occ)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].Start.Equal(kept[j].Start) {
			return kept[i].Start.Before(kept[j].Start)
		}
		return kept[i].Summary < kept[j].Summary
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}

	entries := make([]model.ScheduleEntry, 0, len(kept))
	for _, occ := range kept {
		entries = append(entries, toEntry(occ, loc, opts.DatePattern, images))
	}
	return entries
}

func toEntry(occ model.Occurrence, loc *time.Location, pattern string, images map[string]string) model.ScheduleEntry {
	start := occ.Start.In(loc)
	end := occ.End.In(loc)

	e := model.ScheduleEntry{
		Title:        strings.TrimSpace(occ.Summary),
		StartInstant: start.Unix(),
	}
	if e.Title == "" {
		e.Title = "(untitled)"
	}
	if len(occ.Categories) > 0 {
		e.Category = occ.Categories[0]
		e.CategoryImageURL = images[strings.ToLower(e.Category)]
	}

	if occ.AllDay {
		dateLayout := datefmt.DateLayout(pattern)
		e.StartDisplay = start.Format(dateLayout)
		days := int(end.Sub(start).Round(time.Hour) / (24 * time.Hour))
		if days > 1 {
			// DTEND of an all-day event is exclusive.
			e.EndDisplay = end.AddDate(0, 0, -1).Format(dateLayout)
			e.DurationText = fmt.Sprintf("%d days", days)
		} else {
			e.DurationText = "All day"
		}
	} else {
		e.StartDisplay = datefmt.Format(start, pattern)
		if end.After(start) {
			e.EndDisplay = datefmt.Format(end, pattern)
			e.DurationText = FormatDuration(end.Sub(start))
		}
	}
	if e.EndDisplay != "" {
		u := end.Unix()
		e.EndInstant = &u
	}
	return e
}

// FormatDuration renders d compactly, e.g. "45m", "2h", "1h 30m", "1d 4h".
// Durations under a minute render as "".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d <= 0 {
		return ""
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	mins := int(d % time.Hour / time.Minute)

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	return strings.Join(parts, " ")
}

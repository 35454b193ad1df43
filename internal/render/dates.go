package render

import (
	"regexp"
	"strings"

	"schedcard/internal/datefmt"
)

// timeToken matches the first time of day in a formatted string:
// H:MM or HH:MM, optional seconds, optional AM/PM marker.
var timeToken = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp]\.?[Mm]\.?)?`)

// DateDisplay is the output of FormatStartEndDates. End is empty when the
// entry has no end.
type DateDisplay struct {
	Start string
	End   string
}

// FormatStartEndDates collapses end to its time of day when start and end
// fall on the same calendar day. The comparison is purely textual, so both
// strings must have been produced with pattern. Strings without a
// recognizable time token compare by their first whitespace-separated field
// and are returned unchanged.
func FormatStartEndDates(start, end, pattern string) DateDisplay {
	if end == "" {
		return DateDisplay{Start: start}
	}
	if !datefmt.HasTime(pattern) {
		return DateDisplay{Start: start, End: end}
	}

	endTime := timeToken.FindString(end)
	if endTime == "" {
		return DateDisplay{Start: start, End: end}
	}
	if datePart(start) != datePart(end) {
		return DateDisplay{Start: start, End: end}
	}
	return DateDisplay{Start: start, End: strings.TrimSpace(endTime)}
}

// datePart returns whatever precedes the first time token, or what
// follows it for time-first patterns, or the first whitespace-separated
// field when there is no time token.
func datePart(s string) string {
	if loc := timeToken.FindStringIndex(s); loc != nil {
		if before := strings.TrimSpace(s[:loc[0]]); before != "" {
			return before
		}
		return strings.TrimSpace(s[loc[1]:])
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// dateOnly renders only the date of a display string: a calendar-aware
// re-parse when s matches pattern, the textual date part otherwise.
func dateOnly(s, pattern string) string {
	if d, ok := datefmt.DateOnly(s, pattern); ok {
		return d
	}
	if d := datePart(s); d != "" {
		return d
	}
	return s
}

// rangeLine is the text of the start/end metadata line.
func rangeLine(start, end, pattern string, showEnd bool) string {
	if !showEnd || end == "" {
		return start
	}
	d := FormatStartEndDates(start, end, pattern)
	return d.Start + " – " + d.End
}

// dateSpan is the header subtitle for a multi-entry schedule.
func dateSpan(first, last, pattern string) string {
	a := dateOnly(first, pattern)
	b := dateOnly(last, pattern)
	if a == b {
		return a
	}
	return a + " – " + b
}

// Package datefmt converts the display date patterns used in configuration
// and API requests (e.g. "MM-DD-YYYY hh:mm A") into Go reference layouts.
//
// Supported tokens:
//
//	YYYY YY            year
//	MMMM MMM MM M      month (name, short name, zero-padded, plain)
//	DD D               day of month
//	dddd ddd           weekday name
//	HH H               24-hour clock (Go always zero-pads)
//	hh h               12-hour clock
//	mm m  ss s         minutes, seconds
//	A a                AM/PM, am/pm
//	[text]             literal text
//
// Anything else is copied through verbatim.
package datefmt

import (
	"strings"
	"time"
)

// DefaultPattern is used when a caller leaves the pattern empty.
const DefaultPattern = "MM-DD-YYYY hh:mm A"

type token struct {
	pattern string
	layout  string
	isTime  bool
}

// Longest tokens first so "MMMM" wins over "MM".
var tokens = []token{
	{"YYYY", "2006", false},
	{"YY", "06", false},
	{"MMMM", "January", false},
	{"MMM", "Jan", false},
	{"MM", "01", false},
	{"M", "1", false},
	{"DD", "02", false},
	{"D", "2", false},
	{"dddd", "Monday", false},
	{"ddd", "Mon", false},
	{"HH", "15", true},
	{"H", "15", true},
	{"hh", "03", true},
	{"h", "3", true},
	{"mm", "04", true},
	{"m", "4", true},
	{"ss", "05", true},
	{"s", "5", true},
	{"A", "PM", true},
	{"a", "pm", true},
}

type segment struct {
	layout  string
	isTime  bool
	literal bool
}

func split(pattern string) []segment {
	var out []segment
	for i := 0; i < len(pattern); {
		if pattern[i] == '[' {
			if end := strings.IndexByte(pattern[i+1:], ']'); end >= 0 {
				out = append(out, segment{layout: pattern[i+1 : i+1+end], literal: true})
				i += end + 2
				continue
			}
		}
		matched := false
		for _, tok := range tokens {
			if strings.HasPrefix(pattern[i:], tok.pattern) {
				out = append(out, segment{layout: tok.layout, isTime: tok.isTime})
				i += len(tok.pattern)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, segment{layout: pattern[i : i+1], literal: true})
			i++
		}
	}
	return out
}

// Layout converts pattern into a Go time layout.
func Layout(pattern string) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	var b strings.Builder
	for _, seg := range split(pattern) {
		b.WriteString(seg.layout)
	}
	return b.String()
}

// DateLayout returns the Go layout for only the calendar-date portion of
// pattern: time tokens are removed together with the separators and
// literals that sit between them, and surrounding whitespace is trimmed.
// If pattern has no date tokens, the full layout is returned.
func DateLayout(pattern string) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	segs := split(pattern)

	first, last := -1, -1
	for i, seg := range segs {
		if !seg.literal && !seg.isTime {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return Layout(pattern)
	}

	var b strings.Builder
	pending := ""
	for _, seg := range segs[first : last+1] {
		switch {
		case seg.literal:
			pending += seg.layout
		case seg.isTime:
			pending = ""
		default:
			b.WriteString(pending)
			pending = ""
			b.WriteString(seg.layout)
		}
	}
	return strings.TrimSpace(b.String())
}

// HasTime reports whether pattern renders a time of day.
func HasTime(pattern string) bool {
	if pattern == "" {
		pattern = DefaultPattern
	}
	for _, seg := range split(pattern) {
		if seg.isTime {
			return true
		}
	}
	return false
}

// Format renders t with pattern.
func Format(t time.Time, pattern string) string {
	return t.Format(Layout(pattern))
}

// DateOnly re-parses s, which must have been produced with pattern or
// with its date-only layout (all-day entries), and renders only its
// calendar date. ok is false when s matches neither.
func DateOnly(s, pattern string) (string, bool) {
	s = strings.TrimSpace(s)
	dateLayout := DateLayout(pattern)
	for _, layout := range []string{Layout(pattern), dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), true
		}
	}
	return "", false
}

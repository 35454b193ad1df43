package datefmt

import (
	"testing"
	"time"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"MM-DD-YYYY hh:mm A", "01-02-2006 03:04 PM"},
		{"", "01-02-2006 03:04 PM"},
		{"YYYY/MM/DD HH:mm", "2006/01/02 15:04"},
		{"ddd, MMM D h:mm a", "Mon, Jan 2 3:04 pm"},
		{"dddd [at] HH:mm:ss", "Monday at 15:04:05"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := Layout(tt.pattern); got != tt.want {
				t.Errorf("Layout(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestDateLayout(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"MM-DD-YYYY hh:mm A", "01-02-2006"},
		{"YYYY/MM/DD HH:mm", "2006/01/02"},
		{"hh:mm A MM/DD", "01/02"},
		{"dddd, MMMM D [at] h:mm a", "Monday, January 2"},
		{"HH:mm", "15:04"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := DateLayout(tt.pattern); got != tt.want {
				t.Errorf("DateLayout(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestHasTime(t *testing.T) {
	if !HasTime("MM-DD-YYYY hh:mm A") {
		t.Error("expected time tokens")
	}
	if HasTime("MM-DD-YYYY") {
		t.Error("date-only pattern reported time tokens")
	}
}

func TestFormatAndDateOnly(t *testing.T) {
	ts := time.Date(2025, time.November, 4, 14, 0, 0, 0, time.UTC)
	s := Format(ts, "MM-DD-YYYY hh:mm A")
	if s != "11-04-2025 02:00 PM" {
		t.Fatalf("Format = %q", s)
	}

	d, ok := DateOnly(s, "MM-DD-YYYY hh:mm A")
	if !ok || d != "11-04-2025" {
		t.Errorf("DateOnly(%q) = %q, %v", s, d, ok)
	}

	// Date-only strings, as produced for all-day events.
	if d, ok := DateOnly("November 4, 2025", "MMMM D, YYYY h:mm A"); !ok || d != "November 4, 2025" {
		t.Errorf("DateOnly(all-day) = %q, %v", d, ok)
	}

	if _, ok := DateOnly("not a date", "MM-DD-YYYY hh:mm A"); ok {
		t.Error("DateOnly accepted garbage input")
	}
}

package ics

import (
	"testing"
	"time"

	"schedcard/internal/model"
)

func occ(summary string, start time.Time, dur time.Duration, cats ...string) model.Occurrence {
	return model.Occurrence{Summary: summary, Start: start, End: start.Add(dur), Categories: cats}
}

func TestBuildEntries(t *testing.T) {
	now := time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC)
	occs := []model.Occurrence{
		occ("Later", now.Add(48*time.Hour), time.Hour, "Art"),
		occ("Past", now.Add(-3*time.Hour), time.Hour),
		occ("Running", now.Add(-30*time.Minute), 2*time.Hour, "Just Chatting"),
		occ("Outside window", now.Add(8*24*time.Hour), time.Hour),
		occ("Soon", now.Add(2*time.Hour), 4*time.Hour+15*time.Minute),
	}

	entries := BuildEntries(occs, EntryOptions{
		Location:       time.UTC,
		Now:            now,
		Horizon:        7 * 24 * time.Hour,
		DatePattern:    "MM-DD-YYYY hh:mm A",
		CategoryImages: map[string]string{"just chatting": "https://cdn.example/jc.jpg"},
	})

	want := []string{"Running", "Soon", "Later"}
	if len(entries) != len(want) {
		t.Fatalf("entries = %d, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		if entries[i].Title != w {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Title, w)
		}
	}

	running := entries[0]
	if running.CategoryImageURL != "https://cdn.example/jc.jpg" {
		t.Errorf("category image = %q", running.CategoryImageURL)
	}
	if running.StartDisplay != "11-04-2025 11:30 AM" || running.EndDisplay != "11-04-2025 01:30 PM" {
		t.Errorf("display = %q / %q", running.StartDisplay, running.EndDisplay)
	}
	if running.EndInstant == nil || *running.EndInstant-running.StartInstant != 7200 {
		t.Errorf("EndInstant = %v", running.EndInstant)
	}
	if entries[1].DurationText != "4h 15m" {
		t.Errorf("duration = %q", entries[1].DurationText)
	}
	if entries[2].CategoryImageURL != "" {
		t.Errorf("unmapped category got image %q", entries[2].CategoryImageURL)
	}
}

func TestBuildEntriesTruncatesAndSorts(t *testing.T) {
	now := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)
	var occs []model.Occurrence
	for i := 10; i > 0; i-- {
		occs = append(occs, occ("E", now.Add(time.Duration(i)*time.Hour), time.Hour))
	}
	entries := BuildEntries(occs, EntryOptions{Location: time.UTC, Now: now, Horizon: 24 * time.Hour, MaxEntries: 50})
	if len(entries) != model.MaxEntries {
		t.Fatalf("entries = %d, want %d", len(entries), model.MaxEntries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].StartInstant <= entries[i-1].StartInstant {
			t.Fatalf("entries not ascending at %d", i)
		}
	}
}

func TestBuildEntriesAllDay(t *testing.T) {
	now := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)
	one := model.Occurrence{Summary: "Off", AllDay: true, Start: now.Add(24 * time.Hour), End: now.Add(48 * time.Hour)}
	trip := model.Occurrence{Summary: "Trip", AllDay: true, Start: now.Add(48 * time.Hour), End: now.Add(5 * 24 * time.Hour)}

	if got := BuildEntries([]model.Occurrence{one}, EntryOptions{Now: now, Horizon: 7 * 24 * time.Hour}); len(got) != 0 {
		t.Errorf("all-day kept without IncludeAllDay: %+v", got)
	}

	got := BuildEntries([]model.Occurrence{one, trip}, EntryOptions{
		Location:      time.UTC,
		Now:           now,
		Horizon:       7 * 24 * time.Hour,
		IncludeAllDay: true,
		DatePattern:   "MM-DD-YYYY hh:mm A",
	})
	if len(got) != 2 {
		t.Fatalf("entries = %d", len(got))
	}
	if got[0].StartDisplay != "11-05-2025" || got[0].EndDisplay != "" || got[0].DurationText != "All day" {
		t.Errorf("one-day entry = %+v", got[0])
	}
	if got[1].EndDisplay != "11-08-2025" || got[1].DurationText != "3 days" {
		t.Errorf("multi-day entry = %+v", got[1])
	}
}

func TestBuildEntriesUntitled(t *testing.T) {
	now := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)
	got := BuildEntries([]model.Occurrence{occ("  ", now.Add(time.Hour), 0)}, EntryOptions{Now: now, Horizon: time.Hour * 2})
	if len(got) != 1 || got[0].Title != "(untitled)" || got[0].EndDisplay != "" || got[0].EndInstant != nil {
		t.Errorf("entries = %+v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, ""},
		{20 * time.Second, ""},
		{45 * time.Minute, "45m"},
		{2 * time.Hour, "2h"},
		{90 * time.Minute, "1h 30m"},
		{28 * time.Hour, "1d 4h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

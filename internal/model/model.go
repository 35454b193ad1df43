package model

import "time"

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string
	Categories  []string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// ScheduleEntry is one row of a rendered schedule card. All display strings
// are already formatted by the producer; optional strings are empty when
// absent.
type ScheduleEntry struct {
	Title            string `json:"title"`
	Category         string `json:"category,omitempty"`
	StartDisplay     string `json:"start_display"`
	EndDisplay       string `json:"end_display,omitempty"`
	DurationText     string `json:"duration_text,omitempty"`
	CategoryImageURL string `json:"category_image_url,omitempty"`

	// StartInstant / EndInstant are unix seconds. EndInstant is nil for
	// open-ended entries.
	StartInstant int64  `json:"start_instant"`
	EndInstant   *int64 `json:"end_instant,omitempty"`
}

// HasEnd reports whether the entry carries an end time.
func (e ScheduleEntry) HasEnd() bool {
	return e.EndDisplay != ""
}

// MaxEntries is the largest schedule a single card can hold.
const MaxEntries = 7

// RenderConfig carries the per-render display options. EntryCount must
// equal the number of entries passed alongside it.
type RenderConfig struct {
	CanvasWidth       int    `json:"canvas_width"`
	CanvasHeight      int    `json:"canvas_height"`
	EntryCount        int    `json:"entry_count"`
	ShowEndDate       bool   `json:"show_end_date"`
	ShowDuration      bool   `json:"show_duration"`
	DateFormatPattern string `json:"date_format"`
}

package render

import (
	"math"

	"schedcard/internal/model"
)

// MetaKind identifies a metadata line under an entry title.
type MetaKind int

const (
	MetaCategory MetaKind = iota
	MetaTime
	MetaDuration
)

// MetaLine is one metadata line of a row.
type MetaLine struct {
	Kind MetaKind
	Text string
}

// RowPlan is the measured content of one row.
type RowPlan struct {
	TitleLines []string
	Meta       []MetaLine
	// Height includes the row spacing below the row.
	Height float64
}

// ContentHeight is the row height without trailing spacing.
func (r RowPlan) ContentHeight(m Metrics) float64 {
	return r.Height - m.RowSpacing
}

// Layout is the vertical distribution of all rows.
type Layout struct {
	Rows       []RowPlan
	Total      float64
	Available  float64
	ContentTop float64
	StartY     float64
}

// Overflows reports whether the rows do not fit the content band.
func (l Layout) Overflows() bool {
	return l.Total > l.Available
}

// TitleWidth is the width available to wrapped titles: the page width
// minus padding and the right-hand image slot.
func TitleWidth(canvasWidth int, g Geometry, m Metrics) float64 {
	return float64(canvasWidth) - 2*g.Padding - m.ImageWidth - m.ImageGap
}

// PlanRow wraps the title of e and lists its active metadata lines.
func PlanRow(cfg model.RenderConfig, e model.ScheduleEntry, m Metrics, titleWidth float64, measureTitle MeasureFunc) RowPlan {
	row := RowPlan{TitleLines: WrapText(e.Title, titleWidth, measureTitle)}

	if e.Category != "" {
		row.Meta = append(row.Meta, MetaLine{Kind: MetaCategory, Text: e.Category})
	}
	row.Meta = append(row.Meta, MetaLine{
		Kind: MetaTime,
		Text: rangeLine(e.StartDisplay, e.EndDisplay, cfg.DateFormatPattern, cfg.ShowEndDate),
	})
	if cfg.ShowDuration && e.DurationText != "" {
		row.Meta = append(row.Meta, MetaLine{Kind: MetaDuration, Text: e.DurationText})
	}

	textHeight := float64(len(row.TitleLines))*m.TitleLineHeight + float64(len(row.Meta))*m.MetaLineHeight
	row.Height = math.Max(textHeight, m.ImageHeight) + m.RowSpacing
	return row
}

// Plan sizes every row and centers the block in the content band. When the
// block is taller than the band it starts at the top of the band and runs
// past the footer; nothing is clamped or shrunk.
func Plan(cfg model.RenderConfig, entries []model.ScheduleEntry, m Metrics, g Geometry, measureTitle MeasureFunc) Layout {
	titleWidth := TitleWidth(cfg.CanvasWidth, g, m)

	l := Layout{Rows: make([]RowPlan, 0, len(entries))}
	for _, e := range entries {
		row := PlanRow(cfg, e, m, titleWidth, measureTitle)
		l.Rows = append(l.Rows, row)
		l.Total += row.Height
	}

	l.ContentTop = g.HeaderBand + g.ContentMargin
	l.Available = float64(cfg.CanvasHeight) - g.HeaderBand - g.FooterBand - 2*g.ContentMargin
	l.StartY = l.ContentTop + math.Max(0, (l.Available-l.Total)/2)
	return l
}

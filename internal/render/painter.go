// Package render turns a short, ordered list of schedule entries into a
// single fixed-size PNG card.
//
// All sizes derive from one fit scale that shrinks as the entry count
// grows (see CalculateFitScale), so one to seven rows fill the same canvas.
// Titles are wrapped to the space left of the category image slot, rows are
// centered vertically between header and footer, and remote images are
// composited one row at a time. A failed image load only leaves its slot
// empty; the only errors Render returns are of type *Error.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"

	"github.com/fogleman/gg"

	appLog "schedcard/internal/log"
	"schedcard/internal/model"
)

// Default canvas size of a schedule card.
const (
	DefaultWidth  = 1080
	DefaultHeight = 1350

	maxCanvasSide = 8192
)

// Options are the per-render header and footer contents.
type Options struct {
	Title           string
	ProfileImageURL string
	FooterText      string
}

// Result is a finished render.
type Result struct {
	PNG    []byte
	Width  int
	Height int

	Metrics Metrics
	Layout  Layout

	// Avatar is the status of the header image; Images holds one status
	// per entry, in entry order.
	Avatar ImageStatus
	Images []ImageStatus
}

// Painter renders schedule cards with a fixed theme and font set. It is
// safe for concurrent use; every Render owns its own surface.
type Painter struct {
	theme      Theme
	fonts      *FontSet
	compositor *Compositor
}

// NewPainter returns a painter. A nil fonts selects DefaultFontSet; a nil
// loader renders every image slot empty.
func NewPainter(theme Theme, fonts *FontSet, loader ImageLoader) *Painter {
	if fonts == nil {
		fonts = DefaultFontSet()
	}
	return &Painter{
		theme:      theme,
		fonts:      fonts,
		compositor: NewCompositor(loader),
	}
}

// Theme returns the painter's theme.
func (p *Painter) Theme() Theme { return p.theme }

// Render paints entries in the given order and returns the PNG encoding.
// Image loads run strictly one after another; cancelling ctx skips the
// remaining loads but still completes the card.
func (p *Painter) Render(ctx context.Context, cfg model.RenderConfig, entries []model.ScheduleEntry, opts Options) (*Result, error) {
	if err := validate(cfg, entries); err != nil {
		return nil, err
	}

	dc, err := newSurface(cfg.CanvasWidth, cfg.CanvasHeight)
	if err != nil {
		return nil, err
	}
	dc.SetColor(p.theme.Colors.Background)
	dc.Clear()

	m := NewMetrics(p.theme.Typography, CalculateFitScale(cfg.EntryCount))
	faces := newFaceCache(p.fonts)

	res := &Result{
		Width:   cfg.CanvasWidth,
		Height:  cfg.CanvasHeight,
		Metrics: m,
		Images:  make([]ImageStatus, len(entries)),
	}
	for i, e := range entries {
		res.Images[i] = ImageStatus{State: ImagePending, Ref: e.CategoryImageURL}
	}

	res.Avatar = p.drawHeader(ctx, dc, faces, cfg, entries, m, opts)

	res.Layout = Plan(cfg, entries, m, p.theme.Geometry, measurer(faces.get(true, m.TitleFontSize)))
	y := res.Layout.StartY
	for i, e := range entries {
		row := res.Layout.Rows[i]
		res.Images[i] = p.drawRow(ctx, dc, faces, cfg, e, row, m, y, i == len(entries)-1)
		y += row.Height
	}

	p.drawFooter(dc, faces, cfg, m, opts.FooterText)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, newError(KindEncode, err, "encode png")
	}
	res.PNG = buf.Bytes()

	appLog.Debug("schedule rendered",
		"entries", len(entries),
		"fit_scale", m.FitScale,
		"block_height", res.Layout.Total,
		"overflow", res.Layout.Overflows(),
		"bytes", len(res.PNG),
	)
	return res, nil
}

func validate(cfg model.RenderConfig, entries []model.ScheduleEntry) error {
	if len(entries) == 0 || len(entries) > model.MaxEntries {
		return newError(KindInvalidInput, nil, "need 1 to %d entries, got %d", model.MaxEntries, len(entries))
	}
	if cfg.EntryCount != len(entries) {
		return newError(KindInvalidInput, nil, "entry count %d does not match %d entries", cfg.EntryCount, len(entries))
	}
	return nil
}

// newSurface allocates the raster. Any failure, including a panic from the
// allocator, is reported as KindSurfaceAllocation.
func newSurface(w, h int) (dc *gg.Context, err error) {
	if w <= 0 || h <= 0 || w > maxCanvasSide || h > maxCanvasSide {
		return nil, newError(KindSurfaceAllocation, nil, "invalid canvas size %dx%d", w, h)
	}
	defer func() {
		if r := recover(); r != nil {
			dc, err = nil, newError(KindSurfaceAllocation, fmt.Errorf("%v", r), "allocate %dx%d", w, h)
		}
	}()
	return gg.NewContext(w, h), nil
}

func (p *Painter) drawHeader(ctx context.Context, dc *gg.Context, faces *faceCache, cfg model.RenderConfig, entries []model.ScheduleEntry, m Metrics, opts Options) ImageStatus {
	c := p.theme.Colors
	width := float64(cfg.CanvasWidth)
	hasAvatar := opts.ProfileImageURL != ""
	hasSubtitle := len(entries) > 1
	gap := 14 * m.FitScale

	height := m.HeaderTitleLineHeight
	if hasAvatar {
		height += m.AvatarSize + gap
	}
	if hasSubtitle {
		height += m.HeaderSubtitleHeight
	}
	y := max(0, (p.theme.Geometry.HeaderBand-height)/2)

	avatar := skipped("", ReasonNoImage)
	if hasAvatar {
		slot := Rect{X: (width - m.AvatarSize) / 2, Y: y, W: m.AvatarSize, H: m.AvatarSize}
		avatar = p.compositor.Draw(ctx, dc, opts.ProfileImageURL, slot, m.AvatarSize/2, &Border{Color: c.Accent, Width: m.BorderWidth})
		y += m.AvatarSize + gap
	}

	dc.SetFontFace(faces.get(true, m.HeaderTitleFontSize))
	dc.SetColor(c.Title)
	dc.DrawStringAnchored(opts.Title, width/2, y, 0.5, 1)
	y += m.HeaderTitleLineHeight

	if hasSubtitle {
		span := dateSpan(entries[0].StartDisplay, entries[len(entries)-1].StartDisplay, cfg.DateFormatPattern)
		dc.SetFontFace(faces.get(false, m.HeaderSubtitleFontSize))
		dc.SetColor(c.Muted)
		dc.DrawStringAnchored(span, width/2, y, 0.5, 1)
	}
	return avatar
}

func (p *Painter) drawRow(ctx context.Context, dc *gg.Context, faces *faceCache, cfg model.RenderConfig, e model.ScheduleEntry, row RowPlan, m Metrics, y float64, last bool) ImageStatus {
	c := p.theme.Colors
	g := p.theme.Geometry
	x := g.Padding

	dc.SetFontFace(faces.get(true, m.TitleFontSize))
	dc.SetColor(c.Title)
	ty := y + DrawWrappedText(dc, row.TitleLines, x, y, m.TitleLineHeight)

	dc.SetFontFace(faces.get(false, m.MetaFontSize))
	for _, line := range row.Meta {
		dc.SetColor(p.metaColor(line.Kind))
		dc.DrawStringAnchored(line.Text, x, ty, 0, 1)
		ty += m.MetaLineHeight
	}

	slot := Rect{
		X: float64(cfg.CanvasWidth) - g.Padding - m.ImageWidth,
		Y: y,
		W: m.ImageWidth,
		H: m.ImageHeight,
	}
	status := p.compositor.Draw(ctx, dc, e.CategoryImageURL, slot, m.CornerRadius, &Border{Color: c.Accent, Width: m.BorderWidth})

	if !last {
		dy := y + row.Height - m.RowSpacing/2
		dc.SetColor(c.Divider)
		dc.SetLineWidth(1)
		dc.DrawLine(x, dy, float64(cfg.CanvasWidth)-g.Padding, dy)
		dc.Stroke()
	}
	return status
}

func (p *Painter) metaColor(k MetaKind) color.Color {
	switch k {
	case MetaCategory:
		return p.theme.Colors.Accent
	case MetaDuration:
		return p.theme.Colors.Muted
	default:
		return p.theme.Colors.Text
	}
}

func (p *Painter) drawFooter(dc *gg.Context, faces *faceCache, cfg model.RenderConfig, m Metrics, text string) {
	if text == "" {
		return
	}
	muted := p.theme.Colors.Muted
	muted.A = uint8(float64(muted.A) * p.theme.FooterOpacity)

	dc.SetFontFace(faces.get(false, m.FooterFontSize))
	dc.SetColor(muted)
	y := float64(cfg.CanvasHeight) - p.theme.Geometry.FooterBand/2
	dc.DrawStringAnchored(text, float64(cfg.CanvasWidth)/2, y, 0.5, 0.5)
}

package render

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	appLog "schedcard/internal/log"
)

// ImageState is the progress of one image slot.
type ImageState int

const (
	ImagePending ImageState = iota
	ImageDrawn
	ImageSkipped
)

func (s ImageState) String() string {
	switch s {
	case ImagePending:
		return "pending"
	case ImageDrawn:
		return "drawn"
	case ImageSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("ImageState(%d)", int(s))
	}
}

// ImageStatus records what happened to one image slot. Reason is set only
// for skipped slots.
type ImageStatus struct {
	State  ImageState
	Ref    string
	Reason string
}

func drawn(ref string) ImageStatus { return ImageStatus{State: ImageDrawn, Ref: ref} }

func skipped(ref, reason string) ImageStatus {
	return ImageStatus{State: ImageSkipped, Ref: ref, Reason: reason}
}

// Skip reasons that do not come from a loader error.
const (
	ReasonNoImage  = "no image"
	ReasonNoLoader = "no loader"
)

// Rect is a destination rectangle in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Border is an optional stroke around a composited image.
type Border struct {
	Color color.Color
	Width float64
}

// Compositor draws loaded bitmaps into rounded, optionally bordered slots.
type Compositor struct {
	loader ImageLoader
}

// NewCompositor returns a compositor using loader. A nil loader skips every
// image.
func NewCompositor(loader ImageLoader) *Compositor {
	return &Compositor{loader: loader}
}

// Draw loads ref and paints it into r clipped to a rounded rectangle of the
// given radius. Load and decode failures are logged and reported as a
// skipped status; they never abort the caller.
func (c *Compositor) Draw(ctx context.Context, dc *gg.Context, ref string, r Rect, radius float64, border *Border) ImageStatus {
	if ref == "" {
		return skipped(ref, ReasonNoImage)
	}
	if c.loader == nil {
		return skipped(ref, ReasonNoLoader)
	}
	if err := ctx.Err(); err != nil {
		return skipped(ref, err.Error())
	}

	w, h := int(math.Round(r.W)), int(math.Round(r.H))
	if w <= 0 || h <= 0 {
		return skipped(ref, "empty destination")
	}

	img, err := c.loader.Load(ctx, ref)
	if err != nil {
		appLog.Error("image load failed", err, "ref", redactRef(ref))
		return skipped(ref, err.Error())
	}

	scaled := imaging.Resize(img, w, h, imaging.Lanczos)
	x, y := math.Round(r.X), math.Round(r.Y)

	dc.Push()
	dc.DrawRoundedRectangle(x, y, float64(w), float64(h), radius)
	dc.Clip()
	dc.DrawImage(scaled, int(x), int(y))
	dc.ResetClip()
	dc.Pop()

	if border != nil && border.Width > 0 {
		dc.Push()
		dc.SetColor(border.Color)
		dc.SetLineWidth(border.Width)
		dc.DrawRoundedRectangle(x, y, float64(w), float64(h), radius)
		dc.Stroke()
		dc.Pop()
	}

	appLog.Debug("image composited", "ref", redactRef(ref), "w", w, "h", h)
	return drawn(ref)
}

// redactRef hides query strings (signed CDN URLs) from logs.
func redactRef(ref string) string {
	if base, _, ok := strings.Cut(ref, "?"); ok {
		return base + "?...(redacted)"
	}
	return ref
}

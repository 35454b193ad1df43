package render

import "math"

const (
	maxFitScale  = 0.95
	minFitScale  = 0.5
	fitScaleStep = 0.06
)

// CalculateFitScale maps an entry count to the single scale factor shared
// by all typography and image sizes. It never drops below 0.5.
func CalculateFitScale(entryCount int) float64 {
	s := math.Max(maxFitScale-float64(entryCount-1)*fitScaleStep, minFitScale)
	// Snap away float noise so 7 entries yield exactly 0.59.
	return math.Round(s*1e9) / 1e9
}

// Metrics are the per-render sizes, all linear in FitScale.
type Metrics struct {
	FitScale float64

	TitleFontSize   float64
	TitleLineHeight float64
	MetaFontSize    float64
	MetaLineHeight  float64

	HeaderTitleFontSize    float64
	HeaderTitleLineHeight  float64
	HeaderSubtitleFontSize float64
	HeaderSubtitleHeight   float64
	FooterFontSize         float64
	AvatarSize             float64

	ImageWidth   float64
	ImageHeight  float64
	ImageGap     float64
	CornerRadius float64
	BorderWidth  float64
	RowSpacing   float64
}

// NewMetrics scales typo by fitScale.
func NewMetrics(typo Typography, fitScale float64) Metrics {
	s := fitScale
	m := Metrics{
		FitScale:               s,
		TitleFontSize:          typo.TitleSize * s,
		MetaFontSize:           typo.MetaSize * s,
		HeaderTitleFontSize:    typo.HeaderTitleSize * s,
		HeaderSubtitleFontSize: typo.HeaderSubtitleSize * s,
		FooterFontSize:         typo.FooterSize * s,
		AvatarSize:             typo.AvatarSize * s,
		ImageWidth:             typo.ImageWidth * s,
		ImageHeight:            typo.ImageHeight * s,
		ImageGap:               typo.ImageGap * s,
		CornerRadius:           typo.CornerRadius * s,
		BorderWidth:            typo.BorderWidth * s,
		RowSpacing:             typo.RowSpacing * s,
	}
	m.TitleLineHeight = m.TitleFontSize * typo.LineSpacing
	m.MetaLineHeight = m.MetaFontSize * typo.LineSpacing
	m.HeaderTitleLineHeight = m.HeaderTitleFontSize * typo.LineSpacing
	m.HeaderSubtitleHeight = m.HeaderSubtitleFontSize * typo.LineSpacing
	return m
}

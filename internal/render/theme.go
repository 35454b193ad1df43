package render

import (
	"fmt"
	"image/color"
	"strings"
)

// Colors is the palette of a theme.
type Colors struct {
	Background color.NRGBA
	Title      color.NRGBA // header title and entry titles
	Text       color.NRGBA // date/time lines
	Muted      color.NRGBA // subtitle, duration, footer
	Accent     color.NRGBA // category line, image borders
	Divider    color.NRGBA
}

// Typography holds unscaled sizes in pixels. Every value is multiplied by
// the fit scale of a render.
type Typography struct {
	TitleSize          float64
	MetaSize           float64
	LineSpacing        float64 // line height as a multiple of font size
	HeaderTitleSize    float64
	HeaderSubtitleSize float64
	FooterSize         float64
	AvatarSize         float64
	ImageWidth         float64
	ImageHeight        float64
	ImageGap           float64
	CornerRadius       float64
	BorderWidth        float64
	RowSpacing         float64
}

// Geometry holds fixed, unscaled canvas bands.
type Geometry struct {
	Padding       float64 // left/right page padding
	HeaderBand    float64
	FooterBand    float64
	ContentMargin float64 // gap above and below the content band
}

// Theme is an immutable render configuration. Painters copy it on
// construction, so variants never share state.
type Theme struct {
	Name          string
	Colors        Colors
	Typography    Typography
	Geometry      Geometry
	FooterOpacity float64
}

var defaultTypography = Typography{
	TitleSize:          46,
	MetaSize:           30,
	LineSpacing:        1.25,
	HeaderTitleSize:    68,
	HeaderSubtitleSize: 34,
	FooterSize:         26,
	AvatarSize:         120,
	ImageWidth:         120,
	ImageHeight:        160,
	ImageGap:           32,
	CornerRadius:       14,
	BorderWidth:        3,
	RowSpacing:         34,
}

var defaultGeometry = Geometry{
	Padding:       64,
	HeaderBand:    300,
	FooterBand:    90,
	ContentMargin: 20,
}

// DarkTheme is the default look: light text on a deep purple background.
func DarkTheme() Theme {
	return Theme{
		Name: "dark",
		Colors: Colors{
			Background: color.NRGBA{R: 0x18, G: 0x14, B: 0x24, A: 0xff},
			Title:      color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
			Text:       color.NRGBA{R: 0xe4, G: 0xe0, B: 0xee, A: 0xff},
			Muted:      color.NRGBA{R: 0xa8, G: 0xa2, B: 0xb8, A: 0xff},
			Accent:     color.NRGBA{R: 0x91, G: 0x46, B: 0xff, A: 0xff},
			Divider:    color.NRGBA{R: 0x3a, G: 0x33, B: 0x4d, A: 0xff},
		},
		Typography:    defaultTypography,
		Geometry:      defaultGeometry,
		FooterOpacity: 0.6,
	}
}

// LightTheme is a dark-on-white variant of DarkTheme.
func LightTheme() Theme {
	return Theme{
		Name: "light",
		Colors: Colors{
			Background: color.NRGBA{R: 0xfa, G: 0xf9, B: 0xfc, A: 0xff},
			Title:      color.NRGBA{R: 0x14, G: 0x10, B: 0x1f, A: 0xff},
			Text:       color.NRGBA{R: 0x2c, G: 0x27, B: 0x3a, A: 0xff},
			Muted:      color.NRGBA{R: 0x6b, G: 0x65, B: 0x7a, A: 0xff},
			Accent:     color.NRGBA{R: 0x77, G: 0x2c, B: 0xe8, A: 0xff},
			Divider:    color.NRGBA{R: 0xdd, G: 0xd8, B: 0xe6, A: 0xff},
		},
		Typography:    defaultTypography,
		Geometry:      defaultGeometry,
		FooterOpacity: 0.6,
	}
}

// ThemeByName resolves "dark" or "light" (case-insensitive). An empty name
// selects DarkTheme.
func ThemeByName(name string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "dark":
		return DarkTheme(), nil
	case "light":
		return LightTheme(), nil
	default:
		return Theme{}, fmt.Errorf("render: unknown theme %q", name)
	}
}

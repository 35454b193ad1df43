package render

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// FontSet holds the parsed regular and bold fonts. It is immutable and may
// be shared between painters; faces are created per render because
// truetype faces are not safe for concurrent use.
type FontSet struct {
	regular *truetype.Font
	bold    *truetype.Font
}

// NewFontSet parses TrueType data for the regular and bold weights.
func NewFontSet(regularTTF, boldTTF []byte) (*FontSet, error) {
	regular, err := truetype.Parse(regularTTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse regular font: %w", err)
	}
	bold, err := truetype.Parse(boldTTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse bold font: %w", err)
	}
	return &FontSet{regular: regular, bold: bold}, nil
}

// DefaultFontSet returns the embedded Go fonts.
func DefaultFontSet() *FontSet {
	fs, err := NewFontSet(goregular.TTF, gobold.TTF)
	if err != nil {
		panic(err)
	}
	return fs
}

// LoadFontSet reads TTF files from fsys. An empty path keeps the embedded
// Go font for that weight.
func LoadFontSet(fsys afero.Fs, regularPath, boldPath string) (*FontSet, error) {
	regular, bold := goregular.TTF, gobold.TTF
	if regularPath != "" {
		data, err := afero.ReadFile(fsys, regularPath)
		if err != nil {
			return nil, fmt.Errorf("render: read font %s: %w", regularPath, err)
		}
		regular = data
	}
	if boldPath != "" {
		data, err := afero.ReadFile(fsys, boldPath)
		if err != nil {
			return nil, fmt.Errorf("render: read font %s: %w", boldPath, err)
		}
		bold = data
	}
	return NewFontSet(regular, bold)
}

// NewFace creates a face at size pixels (72 DPI).
func (f *FontSet) NewFace(bold bool, size float64) font.Face {
	ft := f.regular
	if bold {
		ft = f.bold
	}
	return truetype.NewFace(ft, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
}

type faceKey struct {
	bold bool
	size float64
}

// faceCache memoizes faces for the duration of one render.
type faceCache struct {
	fonts *FontSet
	faces map[faceKey]font.Face
}

func newFaceCache(fonts *FontSet) *faceCache {
	return &faceCache{fonts: fonts, faces: make(map[faceKey]font.Face)}
}

func (c *faceCache) get(bold bool, size float64) font.Face {
	k := faceKey{bold: bold, size: size}
	if f, ok := c.faces[k]; ok {
		return f
	}
	f := c.fonts.NewFace(bold, size)
	c.faces[k] = f
	return f
}

// measurer returns a MeasureFunc for face.
func measurer(face font.Face) MeasureFunc {
	return func(s string) float64 {
		return float64(font.MeasureString(face, s)) / 64
	}
}

package render

import (
	"math"
	"testing"
)

func TestCalculateFitScale(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{1, 0.95},
		{2, 0.89},
		{4, 0.77},
		{7, 0.59},
		{8, 0.53},
		{9, 0.5},
		{100, 0.5},
	}
	for _, tt := range tests {
		if got := CalculateFitScale(tt.n); got != tt.want {
			t.Errorf("CalculateFitScale(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestCalculateFitScaleNonIncreasing(t *testing.T) {
	prev := CalculateFitScale(1)
	for n := 2; n <= 200; n++ {
		s := CalculateFitScale(n)
		if s > prev {
			t.Fatalf("CalculateFitScale(%d) = %v > CalculateFitScale(%d) = %v", n, s, n-1, prev)
		}
		if s < 0.5 {
			t.Fatalf("CalculateFitScale(%d) = %v below floor", n, s)
		}
		prev = s
	}
}

func TestNewMetricsLinear(t *testing.T) {
	typo := DarkTheme().Typography
	full := NewMetrics(typo, 1)
	half := NewMetrics(typo, 0.5)

	pairs := []struct {
		name      string
		full, got float64
	}{
		{"TitleFontSize", full.TitleFontSize, half.TitleFontSize},
		{"MetaFontSize", full.MetaFontSize, half.MetaFontSize},
		{"ImageWidth", full.ImageWidth, half.ImageWidth},
		{"ImageHeight", full.ImageHeight, half.ImageHeight},
		{"HeaderTitleFontSize", full.HeaderTitleFontSize, half.HeaderTitleFontSize},
		{"RowSpacing", full.RowSpacing, half.RowSpacing},
		{"TitleLineHeight", full.TitleLineHeight, half.TitleLineHeight},
	}
	for _, p := range pairs {
		if math.Abs(p.got-p.full/2) > 1e-9 {
			t.Errorf("%s at 0.5 = %v, want %v", p.name, p.got, p.full/2)
		}
	}
	if full.TitleLineHeight != typo.TitleSize*typo.LineSpacing {
		t.Errorf("TitleLineHeight = %v", full.TitleLineHeight)
	}
}

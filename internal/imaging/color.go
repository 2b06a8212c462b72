package imaging

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// namedColors covers the color names label configs commonly use.
var namedColors = map[string]string{
	"red":     "#ff0000",
	"green":   "#008000",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"magenta": "#ff00ff",
	"cyan":    "#00ffff",
	"black":   "#000000",
	"white":   "#ffffff",
	"gray":    "#808080",
	"grey":    "#808080",
	"pink":    "#ffc0cb",
	"brown":   "#a52a2a",
}

// ParseColor parses a label or overlay color.
//
// Accepted forms:
//   - "#RGB" and "#RRGGBB": opaque colors
//   - "#RRGGBBAA": colors with alpha
//   - a small set of CSS names such as "red" or "orange"
//
// The leading '#' is optional and matching is case-insensitive.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex, ok := namedColors[s]; ok {
		s = hex
	}
	s = strings.TrimPrefix(s, "#")

	alpha := uint8(255)
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	case 8:
		a, err := strconv.ParseUint(s[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in color %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:6]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length: %q", s)
	}

	c, err := colorful.Hex("#" + s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// Hex formats c as "#rrggbb", dropping alpha.
func Hex(c color.Color) string {
	cf, _ := colorful.MakeColor(opaque(c))
	return cf.Hex()
}

// WithAlpha returns c with its alpha replaced by a (0-1).
func WithAlpha(c color.Color, a float64) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(clamp01(a)*255 + 0.5)
	return n
}

// AutoColor returns a distinct, stable color for the i-th label that has no
// configured color. Hues are spread by the golden angle in HCL space so
// neighbouring indices stay visually apart.
func AutoColor(i int) color.NRGBA {
	h := float64(i) * 137.508
	for h >= 360 {
		h -= 360
	}
	c := colorful.Hcl(h, 0.6, 0.65).Clamped()
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Contrast picks black or white text for a label drawn on bg.
func Contrast(bg color.Color) color.Color {
	cf, _ := colorful.MakeColor(opaque(bg))
	l, _, _ := cf.Lab()
	if l > 0.6 {
		return color.Black
	}
	return color.White
}

func opaque(c color.Color) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 255
	return n
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

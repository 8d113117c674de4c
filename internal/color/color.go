package color

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
)

// ErrInvalidArgument is returned for out-of-range thresholds and malformed colors.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultAlphaThreshold is the alpha value at or below which a pixel is transparent.
const DefaultAlphaThreshold = 10

// MaxRGBDistance is the maximum possible Euclidean distance in RGB space.
var MaxRGBDistance = math.Sqrt(255 * 255 * 3)

// RGBA represents a color with 8-bit, non-premultiplied RGBA components.
type RGBA struct {
	R, G, B, A uint8
}

// FromStdColor converts a standard library color to non-premultiplied RGBA.
func FromStdColor(c color.Color) RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBA{R: n.R, G: n.G, B: n.B, A: n.A}
}

// ToStdColor converts RGBA to a standard library non-premultiplied color.
func (c RGBA) ToStdColor() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Hex formats the RGB channels as a lowercase "#rrggbb" string. Alpha is ignored.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses a hex color string like "#000", "#000000", "#FF00FF".
// The returned color is fully opaque.
func ParseHex(s string) (RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(s) {
	case 3:
		_, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b)
		if err != nil {
			return RGBA{}, fmt.Errorf("%w: hex color %q: %v", ErrInvalidArgument, s, err)
		}
		r = r*16 + r
		g = g*16 + g
		b = b*16 + b
	case 6:
		_, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b)
		if err != nil {
			return RGBA{}, fmt.Errorf("%w: hex color %q: %v", ErrInvalidArgument, s, err)
		}
	default:
		return RGBA{}, fmt.Errorf("%w: hex color %q must be 3 or 6 hex digits", ErrInvalidArgument, s)
	}
	return RGBA{R: r, G: g, B: b, A: 255}, nil
}

// DistanceRGB computes the Euclidean distance in RGB space between two colors.
func DistanceRGB(a, b RGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// DistanceHex is DistanceRGB over two hex strings.
func DistanceHex(a, b string) (float64, error) {
	ca, err := ParseHex(a)
	if err != nil {
		return 0, err
	}
	cb, err := ParseHex(b)
	if err != nil {
		return 0, err
	}
	return DistanceRGB(ca, cb), nil
}

// IsTransparent reports whether the alpha channel is at or below alphaThreshold.
func IsTransparent(c RGBA, alphaThreshold uint8) bool {
	return c.A <= alphaThreshold
}

// Matcher decides whether two colors are similar under a fixed threshold.
// The threshold is validated once so the comparison itself cannot fail.
type Matcher struct {
	maxDist float64
}

// NewMatcher builds a Matcher for a similarity threshold given as a percentage
// (0–100) of MaxRGBDistance.
func NewMatcher(thresholdPct float64) (Matcher, error) {
	if math.IsNaN(thresholdPct) || thresholdPct < 0 || thresholdPct > 100 {
		return Matcher{}, fmt.Errorf("%w: similarity threshold must be between 0 and 100, got %v",
			ErrInvalidArgument, thresholdPct)
	}
	return Matcher{maxDist: thresholdPct / 100 * MaxRGBDistance}, nil
}

// Similar reports whether a and b are within the matcher's distance.
func (m Matcher) Similar(a, b RGBA) bool {
	return DistanceRGB(a, b) <= m.maxDist
}

// IsSimilar reports whether a and b are within thresholdPct percent of the
// maximum RGB distance of each other.
func IsSimilar(a, b RGBA, thresholdPct float64) (bool, error) {
	m, err := NewMatcher(thresholdPct)
	if err != nil {
		return false, err
	}
	return m.Similar(a, b), nil
}

// Source is anything that can return the color at a pixel coordinate.
type Source interface {
	At(x, y int) RGBA
}

// Average returns the per-channel arithmetic mean of the RGB values at the
// given points, rounded to the nearest integer. The result is opaque.
func Average(src Source, pts []image.Point) RGBA {
	if len(pts) == 0 {
		return RGBA{}
	}
	var sr, sg, sb uint64
	for _, p := range pts {
		c := src.At(p.X, p.Y)
		sr += uint64(c.R)
		sg += uint64(c.G)
		sb += uint64(c.B)
	}
	n := float64(len(pts))
	return RGBA{
		R: uint8(math.Round(float64(sr) / n)),
		G: uint8(math.Round(float64(sg) / n)),
		B: uint8(math.Round(float64(sb) / n)),
		A: 255,
	}
}

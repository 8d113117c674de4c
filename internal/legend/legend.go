// Package legend renders a numbered swatch sheet of region colors, so a
// reader can tell which yarn goes where.
package legend

import (
	"image"
	stdcolor "image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/maax3v3/yarnmap/internal/color"
)

// Config holds the sheet layout.
type Config struct {
	Width      int // sheet width in pixels
	Padding    int // space above and below the swatch rows
	CircleSize int // swatch diameter
	Spacing    int // gap between swatches
	Margin     int // left and right margin
}

// DefaultConfig returns the default sheet layout.
func DefaultConfig() Config {
	return Config{
		Width:      600,
		Padding:    20,
		CircleSize: 30,
		Spacing:    15,
		Margin:     20,
	}
}

// Swatch is one numbered color.
type Swatch struct {
	Number int
	Color  color.RGBA
}

var (
	background = stdcolor.NRGBA{255, 255, 255, 255}
	border     = stdcolor.NRGBA{100, 100, 100, 255}
)

// Render draws swatches in rows, centered, each labeled with its number.
// An empty list yields an empty sheet.
func Render(swatches []Swatch, font Font, cfg Config) *image.NRGBA {
	perRow := itemsPerRow(cfg)
	out := image.NewNRGBA(image.Rect(0, 0, cfg.Width, height(len(swatches), cfg)))
	draw.Draw(out, out.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	itemW := cfg.CircleSize + cfg.Spacing
	avail := cfg.Width - 2*cfg.Margin
	radius := cfg.CircleSize / 2
	fontSize := cfg.CircleSize * 2 / 3

	for i, s := range swatches {
		row, col := i/perRow, i%perRow

		inRow := min(perRow, len(swatches)-row*perRow)
		startX := cfg.Margin + (avail-inRow*itemW)/2

		cx := startX + col*itemW + radius
		cy := cfg.Padding + row*itemW + radius

		fillCircle(out, cx, cy, radius, s.Color.ToStdColor())
		strokeCircle(out, cx, cy, radius, border)

		text := stdcolor.Color(stdcolor.Black)
		if !isLight(s.Color) {
			text = stdcolor.White
		}
		font.DrawString(out, strconv.Itoa(s.Number), cx, cy, text, fontSize)
	}
	return out
}

func itemsPerRow(cfg Config) int {
	return max((cfg.Width-2*cfg.Margin)/(cfg.CircleSize+cfg.Spacing), 1)
}

func height(n int, cfg Config) int {
	if n == 0 {
		return 2 * cfg.Padding
	}
	rows := (n + itemsPerRow(cfg) - 1) / itemsPerRow(cfg)
	return 2*cfg.Padding + rows*(cfg.CircleSize+cfg.Spacing) - cfg.Spacing
}

// isLight reports whether c is bright enough to need dark text (Rec. 601 luma).
func isLight(c color.RGBA) bool {
	return 0.299*float64(c.R)+0.587*float64(c.G)+0.114*float64(c.B) > 140
}

func fillCircle(img *image.NRGBA, cx, cy, radius int, col stdcolor.NRGBA) {
	b := img.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			if p := image.Pt(cx+dx, cy+dy); p.In(b) {
				img.SetNRGBA(p.X, p.Y, col)
			}
		}
	}
}

func strokeCircle(img *image.NRGBA, cx, cy, radius int, col stdcolor.NRGBA) {
	b := img.Bounds()
	for angle := 0.0; angle < 2*math.Pi; angle += 0.01 {
		p := image.Pt(
			cx+int(math.Round(float64(radius)*math.Cos(angle))),
			cy+int(math.Round(float64(radius)*math.Sin(angle))),
		)
		if p.In(b) {
			img.SetNRGBA(p.X, p.Y, col)
		}
	}
}

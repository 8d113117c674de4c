package legend

import (
	"image"
	"image/color"
	"image/draw"
)

// Font draws swatch labels.
type Font interface {
	// DrawString draws text centered at (cx, cy) with an approximate height
	// of size pixels.
	DrawString(img draw.Image, text string, cx, cy int, col color.Color, size int)

	// MeasureString returns the width and height text occupies at size.
	MeasureString(text string, size int) (width, height int)
}

// DigitFont is a 5x7 bitmap font covering the digits 0-9. Other runes
// advance the cursor without drawing.
type DigitFont struct{}

var glyphs = map[rune][7]uint8{
	'0': {0x0E, 0x11, 0x13, 0x15, 0x19, 0x11, 0x0E},
	'1': {0x04, 0x0C, 0x04, 0x04, 0x04, 0x04, 0x0E},
	'2': {0x0E, 0x11, 0x01, 0x06, 0x08, 0x10, 0x1F},
	'3': {0x0E, 0x11, 0x01, 0x06, 0x01, 0x11, 0x0E},
	'4': {0x02, 0x06, 0x0A, 0x12, 0x1F, 0x02, 0x02},
	'5': {0x1F, 0x10, 0x1E, 0x01, 0x01, 0x11, 0x0E},
	'6': {0x06, 0x08, 0x10, 0x1E, 0x11, 0x11, 0x0E},
	'7': {0x1F, 0x01, 0x02, 0x04, 0x08, 0x08, 0x08},
	'8': {0x0E, 0x11, 0x11, 0x0E, 0x11, 0x11, 0x0E},
	'9': {0x0E, 0x11, 0x11, 0x0F, 0x01, 0x02, 0x0C},
}

const (
	glyphWidth  = 5
	glyphHeight = 7
)

func scaleFor(size int) int {
	return max(size/glyphHeight, 1)
}

func (DigitFont) DrawString(img draw.Image, text string, cx, cy int, col color.Color, size int) {
	scale := scaleFor(size)
	w, h := DigitFont{}.MeasureString(text, size)
	b := img.Bounds()

	x0 := cx - w/2
	y0 := cy - h/2
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if ok {
			for row := 0; row < glyphHeight; row++ {
				for bit := 0; bit < glyphWidth; bit++ {
					if glyph[row]&(1<<(glyphWidth-1-bit)) == 0 {
						continue
					}
					block := image.Rect(0, 0, scale, scale).Add(image.Pt(x0+bit*scale, y0+row*scale))
					draw.Draw(img, block.Intersect(b), image.NewUniform(col), image.Point{}, draw.Src)
				}
			}
		}
		x0 += (glyphWidth + 1) * scale
	}
}

func (DigitFont) MeasureString(text string, size int) (width, height int) {
	n := len([]rune(text))
	if n == 0 {
		return 0, 0
	}
	scale := scaleFor(size)
	return n*glyphWidth*scale + (n-1)*scale, glyphHeight * scale
}

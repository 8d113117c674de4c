// Package pixel provides flat, channel-interleaved pixel buffers and the
// per-pass visitation bitmap used by region growth.
package pixel

import (
	"fmt"
	"image"
	"sync"

	"github.com/maax3v3/yarnmap/internal/color"
)

// Buffer is an immutable row-major pixel buffer with 3 (RGB) or 4 (RGBA)
// interleaved 8-bit channels per pixel.
type Buffer struct {
	Width, Height int
	Channels      int
	Data          []byte
}

// NewBuffer validates the shape of data and wraps it in a Buffer.
// The data slice is not copied.
func NewBuffer(width, height, channels int, data []byte) (*Buffer, error) {
	b := &Buffer{Width: width, Height: height, Channels: channels, Data: data}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that the dimensions, channel count and data length agree.
func (b *Buffer) Validate() error {
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", color.ErrInvalidArgument, b.Width, b.Height)
	}
	if b.Channels != 3 && b.Channels != 4 {
		return fmt.Errorf("%w: channels must be 3 or 4, got %d", color.ErrInvalidArgument, b.Channels)
	}
	if want := b.Width * b.Height * b.Channels; len(b.Data) != want {
		return fmt.Errorf("%w: pixel data has %d bytes, want %d (%dx%dx%d)",
			color.ErrInvalidArgument, len(b.Data), want, b.Width, b.Height, b.Channels)
	}
	return nil
}

// At returns the pixel at (x, y). Coordinates are not bounds-checked.
// Three-channel buffers report alpha as 255.
func (b *Buffer) At(x, y int) color.RGBA {
	off := (y*b.Width + x) * b.Channels
	c := color.RGBA{R: b.Data[off], G: b.Data[off+1], B: b.Data[off+2], A: 255}
	if b.Channels == 4 {
		c.A = b.Data[off+3]
	}
	return c
}

// In reports whether (x, y) lies inside the buffer.
func (b *Buffer) In(x, y int) bool {
	return x >= 0 && x < b.Width && y >= 0 && y < b.Height
}

// FromImage copies img into a new 4-channel, non-premultiplied buffer.
// The image's bounds origin is shifted to (0, 0).
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := &Buffer{Width: w, Height: h, Channels: 4, Data: make([]byte, w*h*4)}

	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			src := n.Pix[n.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			copy(buf.Data[y*w*4:(y+1)*w*4], src[:w*4])
		}
		return buf
	}

	// Converting through img.At is interface-heavy, so row bands run concurrently.
	// Each worker writes only its own rows.
	parallelRows(h, func(sy, ey int) {
		for y := sy; y < ey; y++ {
			for x := 0; x < w; x++ {
				c := color.FromStdColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
				off := (y*w + x) * 4
				buf.Data[off] = c.R
				buf.Data[off+1] = c.G
				buf.Data[off+2] = c.B
				buf.Data[off+3] = c.A
			}
		}
	})
	return buf
}

// parallelRows runs fn across row bands using multiple goroutines.
func parallelRows(h int, fn func(startY, endY int)) {
	numWorkers := 8
	rowsPerWorker := (h + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for startY := 0; startY < h; startY += rowsPerWorker {
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		wg.Add(1)
		go func(sy, ey int) {
			defer wg.Done()
			fn(sy, ey)
		}(startY, endY)
	}
	wg.Wait()
}

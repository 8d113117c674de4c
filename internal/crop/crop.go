// Package crop cuts a region out of its source buffer as a standalone image.
package crop

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/rs/zerolog"

	"github.com/maax3v3/yarnmap/internal/pixel"
	"github.com/maax3v3/yarnmap/internal/region"
)

// Encoder turns a cropped image into a portable string payload.
type Encoder interface {
	Encode(img image.Image) (string, error)
}

// PNGBase64 encodes images as base64 (standard alphabet) PNG data.
type PNGBase64 struct{}

// Encode implements Encoder.
func (PNGBase64) Encode(img image.Image) (string, error) {
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b.Bytes()), nil
}

// Image builds an image the size of r.Bounds. Member pixels carry their
// source RGBA; every other pixel is transparent white.
func Image(buf *pixel.Buffer, r region.Region) *image.NRGBA {
	b := r.Bounds
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
		out.Pix[i+1] = 255
		out.Pix[i+2] = 255
	}
	for _, p := range r.Pixels {
		c := buf.At(p.X, p.Y)
		off := out.PixOffset(p.X-b.Min.X, p.Y-b.Min.Y)
		out.Pix[off] = c.R
		out.Pix[off+1] = c.G
		out.Pix[off+2] = c.B
		out.Pix[off+3] = c.A
	}
	return out
}

// Exporter crops regions and encodes the crops.
type Exporter struct {
	Encoder Encoder
	Logger  *zerolog.Logger
}

// Export returns the encoded crop of r, the index-th reported region.
// Encoding failures are logged and yield an empty payload.
func (e *Exporter) Export(buf *pixel.Buffer, index int, r region.Region) string {
	enc := e.Encoder
	if enc == nil {
		enc = PNGBase64{}
	}
	s, err := enc.Encode(Image(buf, r))
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn().Err(err).
				Int("region", index).
				Str("color", r.Color.Hex()).
				Int("pixels", len(r.Pixels)).
				Msg("crop encoding failed")
		}
		return ""
	}
	return s
}

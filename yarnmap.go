// Package yarnmap turns a picture into a discrete palette of color regions.
//
// Every opaque pixel is grouped into a 4-connected region of similar color.
// Each region reports its average color, its pixel count, and a cropped PNG
// of its own pixels positioned relative to the full image, which makes it
// easy to estimate how much of each color a craft project needs. Region
// colors can then be matched against a named palette such as a yarn line.
//
// Usage as a library:
//
//	img, _ := yarnmap.LoadImage("pattern.png")
//	regions, _ := yarnmap.AnalyzeImage(ctx, img, yarnmap.DefaultOptions())
//	for _, r := range regions {
//		matches, _ := yarnmap.MatchPalette(r.Color, yarns)
//		fmt.Println(r.Color, r.PixelCount, matches[0].Name)
//	}
package yarnmap

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/maax3v3/yarnmap/internal/color"
	"github.com/maax3v3/yarnmap/internal/crop"
	"github.com/maax3v3/yarnmap/internal/imaging"
	"github.com/maax3v3/yarnmap/internal/palette"
	"github.com/maax3v3/yarnmap/internal/pixel"
	"github.com/maax3v3/yarnmap/internal/region"
)

var (
	// ErrInvalidArgument is returned for out-of-range options, malformed
	// pixel buffers and malformed palette data.
	ErrInvalidArgument = color.ErrInvalidArgument

	// ErrCancelled is returned when the context is cancelled before or
	// during analysis. The context's own error is wrapped as well.
	ErrCancelled = region.ErrCancelled
)

// PixelBuffer is a row-major, channel-interleaved pixel buffer with 3 or 4
// channels.
type PixelBuffer = pixel.Buffer

// Encoder converts a region crop into a string payload. The default encodes
// PNG data as standard base64.
type Encoder = crop.Encoder

// PaletteMatch is a palette entry and its distance to a queried color.
type PaletteMatch = palette.Match

// Options configures Analyze.
type Options struct {
	// Threshold is the similarity threshold (0–100), as a percentage of the
	// largest possible RGB distance. Default: 15.
	Threshold float64

	// MinArea is the minimum pixel count for a region to be reported.
	// Default: 200.
	MinArea int

	// ReseedRejected lets pixels rejected by one region start or join a later
	// region. By default they are excluded for the rest of the pass.
	ReseedRejected bool

	// IterationCap bounds the work of a single region fill. 0 means
	// width×height.
	IterationCap int

	// Progress, if set, receives scan progress as a percentage.
	Progress func(pct int)

	// Encoder encodes region crops. If nil, base64 PNG is used.
	Encoder Encoder

	// Logger receives diagnostics. If nil, nothing is logged.
	Logger *zerolog.Logger
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Threshold: 15,
		MinArea:   200,
	}
}

// ImagePart locates a region's crop within the full image.
type ImagePart struct {
	Base64         string  `json:"base64"`
	MarginX        int     `json:"marginX"`
	MarginY        int     `json:"marginY"`
	MarginXPercent float64 `json:"marginXPercent"`
	MarginYPercent float64 `json:"marginYPercent"`
	WidthPercent   float64 `json:"widthPercent"`
	HeightPercent  float64 `json:"heightPercent"`
}

// Region is one color region of the analyzed image.
type Region struct {
	Color      string    `json:"color"`
	PixelCount int       `json:"pixelCount"`
	ImagePart  ImagePart `json:"imagePart"`
}

// NewPixelBuffer validates and wraps raw pixel data.
func NewPixelBuffer(width, height, channels int, data []byte) (*PixelBuffer, error) {
	return pixel.NewBuffer(width, height, channels, data)
}

// BufferFromImage copies img into a 4-channel pixel buffer.
func BufferFromImage(img image.Image) *PixelBuffer {
	return pixel.FromImage(img)
}

// LoadImage reads an image from disk. Supports PNG, JPEG, and WEBP.
func LoadImage(path string) (image.Image, error) {
	return imaging.Load(path)
}

// AnalyzeImage is Analyze over a decoded image.
func AnalyzeImage(ctx context.Context, img image.Image, opts Options) ([]Region, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: input image is nil", ErrInvalidArgument)
	}
	if err := validate(opts); err != nil {
		return nil, err
	}
	return Analyze(ctx, pixel.FromImage(img), opts)
}

// Analyze partitions the opaque pixels of buf into regions of similar color
// and returns those with at least opts.MinArea pixels, in the row-major order
// of their first pixel.
//
// Analyze fails with ErrInvalidArgument before reading any pixel when the
// options are out of range, and with ErrCancelled when ctx is done at any
// point; no partial results are returned.
func Analyze(ctx context.Context, buf *PixelBuffer, opts Options) ([]Region, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, fmt.Errorf("%w: pixel buffer is nil", ErrInvalidArgument)
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	start := time.Now()

	raw, err := region.Grow(ctx, buf, region.Options{
		Threshold:      opts.Threshold,
		AlphaThreshold: color.DefaultAlphaThreshold,
		IterationCap:   opts.IterationCap,
		ReseedRejected: opts.ReseedRejected,
		Progress:       opts.Progress,
		Logger:         &log,
	})
	if err != nil {
		return nil, err
	}

	kept := lo.Filter(raw, func(r region.Region, _ int) bool {
		return len(r.Pixels) >= opts.MinArea
	})

	exporter := &crop.Exporter{Encoder: opts.Encoder, Logger: &log}
	out := make([]Region, 0, len(kept))
	for i, r := range kept {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		out = append(out, Region{
			Color:      r.Color.Hex(),
			PixelCount: len(r.Pixels),
			ImagePart:  imagePart(buf, r, exporter.Export(buf, i, r)),
		})
	}

	log.Debug().
		Int("width", buf.Width).Int("height", buf.Height).
		Int("regions", len(raw)).Int("kept", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")

	return out, nil
}

// MatchPalette returns every entry of p sorted by ascending RGB distance to
// hex. p maps entry names to hex colors.
func MatchPalette(hex string, p map[string]string) ([]PaletteMatch, error) {
	return palette.MatchHex(hex, p)
}

// ParseHexColor parses a hex color string like "#000" or "#FF00FF" and
// returns its canonical lowercase "#rrggbb" form.
func ParseHexColor(hex string) (string, error) {
	c, err := color.ParseHex(hex)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

func validate(opts Options) error {
	if _, err := color.NewMatcher(opts.Threshold); err != nil {
		return err
	}
	if opts.MinArea < 0 {
		return fmt.Errorf("%w: minimum area must be >= 0, got %d", ErrInvalidArgument, opts.MinArea)
	}
	if opts.IterationCap < 0 {
		return fmt.Errorf("%w: iteration cap must be >= 0, got %d", ErrInvalidArgument, opts.IterationCap)
	}
	return nil
}

func imagePart(buf *PixelBuffer, r region.Region, payload string) ImagePart {
	b := r.Bounds
	return ImagePart{
		Base64:         payload,
		MarginX:        b.Min.X,
		MarginY:        b.Min.Y,
		MarginXPercent: percent(b.Min.X, buf.Width),
		MarginYPercent: percent(b.Min.Y, buf.Height),
		WidthPercent:   percent(b.Dx(), buf.Width),
		HeightPercent:  percent(b.Dy(), buf.Height),
	}
}

func percent(v, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(v) / float64(total) * 100
}

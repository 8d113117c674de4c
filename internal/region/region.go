// Package region partitions the opaque pixels of a buffer into 4-connected
// regions of similar color.
//
// Each region is grown breadth-first from the first unvisited opaque pixel of
// a row-major scan. A neighbor joins the region when it is similar to the
// region's running average color, which is recomputed as the region grows.
// A pixel that is examined and rejected is never examined again during the
// same pass, unless Options.ReseedRejected is set.
package region

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/maax3v3/yarnmap/internal/color"
	"github.com/maax3v3/yarnmap/internal/pixel"
)

// ErrCancelled is returned when the context is done at a checkpoint.
var ErrCancelled = errors.New("cancelled")

const (
	// recomputeFactor controls how often the running average is refreshed:
	// once the member count reaches recomputeFactor times the count at the
	// previous refresh.
	recomputeFactor = 3

	// cancelCheckInterval is the number of fill iterations between context checks.
	cancelCheckInterval = 1000

	// opacityFloor is the alpha a member must exceed to survive finalization.
	opacityFloor = 10
)

// Region is a finished region. Pixels are in fill order.
type Region struct {
	Color  color.RGBA
	Pixels []image.Point
	Bounds image.Rectangle // Max is exclusive
}

// Options configures a segmentation pass.
type Options struct {
	// Threshold is the similarity threshold as a percentage (0–100) of the
	// maximum RGB distance.
	Threshold float64

	// AlphaThreshold is the alpha at or below which a pixel is transparent.
	AlphaThreshold uint8

	// IterationCap bounds the queue steps of a single fill. 0 means
	// width×height.
	IterationCap int

	// ReseedRejected leaves neighbors rejected for color unvisited, so they
	// can seed or join a later region. By default a rejected neighbor is
	// excluded for the rest of the pass.
	ReseedRejected bool

	// Progress, if set, receives the percentage of rows scanned. Values are
	// non-decreasing and each value is reported at most once.
	Progress func(pct int)

	// Logger receives diagnostics. nil disables logging.
	Logger *zerolog.Logger
}

// Grower runs one segmentation pass over a buffer. A Grower must not be
// reused; each pass owns its own visitation map.
type Grower struct {
	buf     *pixel.Buffer
	visited *pixel.VisitMap
	match   color.Matcher
	opts    Options
	log     zerolog.Logger
	limit   int
}

// NewGrower validates opts and prepares a pass over buf.
func NewGrower(buf *pixel.Buffer, opts Options) (*Grower, error) {
	m, err := color.NewMatcher(opts.Threshold)
	if err != nil {
		return nil, err
	}
	if opts.IterationCap < 0 {
		return nil, fmt.Errorf("%w: iteration cap must be >= 0, got %d", color.ErrInvalidArgument, opts.IterationCap)
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	limit := opts.IterationCap
	if limit == 0 {
		limit = buf.Width * buf.Height
	}
	return &Grower{
		buf:     buf,
		visited: pixel.NewVisitMap(buf.Width, buf.Height),
		match:   m,
		opts:    opts,
		log:     log,
		limit:   limit,
	}, nil
}

// Grow is a convenience wrapper around NewGrower and Run.
func Grow(ctx context.Context, buf *pixel.Buffer, opts Options) ([]Region, error) {
	g, err := NewGrower(buf, opts)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx)
}

// Run scans the buffer in row-major order and returns the regions in the
// order their seeds were found. On cancellation it returns ErrCancelled and
// no regions.
func (g *Grower) Run(ctx context.Context) ([]Region, error) {
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	w, h := g.buf.Width, g.buf.Height
	lastPct := -1
	var regions []Region

	for y := 0; y < h; y++ {
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
		g.report(y*100/h, &lastPct)

		for x := 0; x < w; x++ {
			if g.visited.Visited(x, y) {
				continue
			}
			// Transparent seeds are skipped without being marked.
			if g.transparent(g.buf.At(x, y)) {
				continue
			}
			r, ok, err := g.fill(ctx, x, y)
			if err != nil {
				return nil, err
			}
			if ok {
				regions = append(regions, r)
			}
		}
	}
	g.report(100, &lastPct)

	return regions, nil
}

func (g *Grower) report(pct int, last *int) {
	if g.opts.Progress == nil || pct <= *last {
		return
	}
	*last = pct
	g.opts.Progress(pct)
}

func (g *Grower) transparent(c color.RGBA) bool {
	return color.IsTransparent(c, g.opts.AlphaThreshold)
}

// fill grows a region from the seed at (sx, sy). ok is false when the region
// ends up empty.
func (g *Grower) fill(ctx context.Context, sx, sy int) (Region, bool, error) {
	buf := g.buf
	seed := image.Point{X: sx, Y: sy}

	queue := []image.Point{seed}
	seen := map[image.Point]struct{}{seed: {}}
	g.visited.Mark(sx, sy)

	avg := buf.At(sx, sy)
	avg.A = 255
	checkpointSize := 0

	var members []image.Point
	box := emptyBox()

	steps := 0
	for head := 0; head < len(queue); head++ {
		if steps >= g.limit {
			g.log.Warn().
				Int("seed_x", sx).Int("seed_y", sy).
				Int("cap", g.limit).Int("members", len(members)).
				Msg("region fill hit iteration cap")
			break
		}
		steps++
		if steps%cancelCheckInterval == 0 {
			if err := checkpoint(ctx); err != nil {
				return Region{}, false, err
			}
		}

		p := queue[head]
		if g.transparent(buf.At(p.X, p.Y)) {
			continue
		}
		members = append(members, p)
		box = box.add(p)

		switch {
		case checkpointSize == 0:
			checkpointSize = len(members)
		case len(members) >= recomputeFactor*checkpointSize:
			avg = color.Average(buf, members)
			checkpointSize = len(members)
		}

		// West, east, north, south.
		for _, d := range [4]image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			n := p.Add(d)
			if !buf.In(n.X, n.Y) || g.visited.Visited(n.X, n.Y) {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			c := buf.At(n.X, n.Y)
			switch {
			case g.transparent(c):
				g.visited.Mark(n.X, n.Y)
			case g.match.Similar(avg, c):
				g.visited.Mark(n.X, n.Y)
				seen[n] = struct{}{}
				queue = append(queue, n)
			case g.opts.ReseedRejected:
				seen[n] = struct{}{}
			default:
				// Rejected for the rest of the pass.
				g.visited.Mark(n.X, n.Y)
			}
		}
	}

	if err := checkpoint(ctx); err != nil {
		return Region{}, false, err
	}
	if len(members) == 0 {
		return Region{}, false, nil
	}
	return g.finalize(members, box)
}

// finalize drops members at or below the opacity floor and recomputes the
// bounds and color from what remains.
func (g *Grower) finalize(members []image.Point, box bbox) (Region, bool, error) {
	kept := members[:0]
	filtered := emptyBox()
	for _, p := range members {
		if g.buf.At(p.X, p.Y).A > opacityFloor {
			kept = append(kept, p)
			filtered = filtered.add(p)
		}
	}
	if len(kept) == 0 {
		return Region{}, false, nil
	}
	if len(kept) < len(members) {
		box = filtered
	}
	return Region{
		Color:  color.Average(g.buf, kept),
		Pixels: kept,
		Bounds: box.rect(),
	}, true, nil
}

func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

type bbox struct {
	minX, minY, maxX, maxY int
	empty                  bool
}

func emptyBox() bbox { return bbox{empty: true} }

func (b bbox) add(p image.Point) bbox {
	if b.empty {
		return bbox{minX: p.X, minY: p.Y, maxX: p.X, maxY: p.Y}
	}
	b.minX = min(b.minX, p.X)
	b.minY = min(b.minY, p.Y)
	b.maxX = max(b.maxX, p.X)
	b.maxY = max(b.maxY, p.Y)
	return b
}

func (b bbox) rect() image.Rectangle {
	if b.empty {
		return image.Rectangle{}
	}
	return image.Rect(b.minX, b.minY, b.maxX+1, b.maxY+1)
}

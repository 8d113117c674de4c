// Package pipeline runs an analysis end to end: load, resize, segment,
// match against a palette and write the report.
package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/maax3v3/yarnmap"
	"github.com/maax3v3/yarnmap/internal/cli"
	"github.com/maax3v3/yarnmap/internal/color"
	"github.com/maax3v3/yarnmap/internal/imaging"
	"github.com/maax3v3/yarnmap/internal/legend"
	"github.com/maax3v3/yarnmap/internal/palette"
)

// RegionReport is a region with its closest palette entries.
type RegionReport struct {
	yarnmap.Region
	Matches []palette.Match `json:"matches,omitempty"`
}

// Report is the result of one analysis.
type Report struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Regions []RegionReport `json:"regions"`
}

// Analyze segments img with the given settings. When pal is non-nil each
// region lists its a.Matches closest entries.
func Analyze(ctx context.Context, img image.Image, a cli.Analysis, pal *palette.Palette, log zerolog.Logger) (*Report, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: input image is nil", yarnmap.ErrInvalidArgument)
	}
	before := img.Bounds()
	img = imaging.Fit(img, a.MaxDimension)
	b := img.Bounds()
	if b != before {
		log.Info().
			Int("width", b.Dx()).Int("height", b.Dy()).
			Int("original_width", before.Dx()).Int("original_height", before.Dy()).
			Msg("image downscaled")
	}

	opts := yarnmap.DefaultOptions()
	opts.Threshold = a.Threshold
	opts.MinArea = a.MinArea
	opts.ReseedRejected = a.ReseedRejected
	opts.Logger = &log
	opts.Progress = func(pct int) {
		log.Debug().Int("progress", pct).Msg("scanning")
	}

	regions, err := yarnmap.AnalyzeImage(ctx, img, opts)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Regions: make([]RegionReport, 0, len(regions)),
	}
	for _, r := range regions {
		rr := RegionReport{Region: r}
		if pal != nil {
			c, err := color.ParseHex(r.Color)
			if err != nil {
				return nil, err
			}
			rr.Matches = pal.Closest(c, a.Matches)
		}
		report.Regions = append(report.Regions, rr)
	}
	return report, nil
}

// Run executes the analyze command. The JSON report goes to cfg.OutPath, or
// to stdout when no output path is set.
func Run(ctx context.Context, cfg cli.Config, stdout io.Writer, log zerolog.Logger) error {
	log.Info().Str("image", cfg.InPath).Msg("loading image")
	img, err := imaging.Load(cfg.InPath)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}
	log.Info().Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("image loaded")

	var pal *palette.Palette
	if cfg.PalettePath != "" {
		pal, err = palette.Load(imaging.ExpandPath(cfg.PalettePath))
		if err != nil {
			return fmt.Errorf("loading palette: %w", err)
		}
		log.Info().Int("entries", len(pal.Entries)).Msg("palette loaded")
	}

	report, err := Analyze(ctx, img, cfg.Analysis, pal, log)
	if err != nil {
		return err
	}
	log.Info().Int("regions", len(report.Regions)).Msg("analysis done")

	if cfg.CropsDir != "" {
		dir := imaging.ExpandPath(cfg.CropsDir)
		if err := WriteCrops(dir, report); err != nil {
			return fmt.Errorf("writing crops: %w", err)
		}
		log.Info().Str("dir", dir).Msg("crops written")
	}

	if cfg.LegendPath != "" {
		if err := imaging.SavePNG(cfg.LegendPath, Legend(report)); err != nil {
			return fmt.Errorf("writing legend: %w", err)
		}
		log.Info().Str("path", cfg.LegendPath).Msg("legend saved")
	}

	if cfg.OutPath == "" {
		return WriteReport(stdout, report)
	}
	path := imaging.ExpandPath(cfg.OutPath)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	err = multierr.Append(WriteReport(f, report), f.Close())
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	log.Info().Str("path", path).Msg("report saved")
	return nil
}

// Legend renders the report's regions as a swatch sheet numbered from 1 in
// report order.
func Legend(report *Report) image.Image {
	swatches := make([]legend.Swatch, 0, len(report.Regions))
	for i, r := range report.Regions {
		c, err := color.ParseHex(r.Color)
		if err != nil {
			continue
		}
		swatches = append(swatches, legend.Swatch{Number: i + 1, Color: c})
	}
	return legend.Render(swatches, legend.DigitFont{}, legend.DefaultConfig())
}

// WriteReport encodes report as indented JSON.
func WriteReport(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteCrops decodes each region's crop into dir as region-NNN.png, where
// NNN is the region's index in the report. Regions without a crop are
// skipped.
func WriteCrops(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var errs error
	for i, r := range report.Regions {
		if r.ImagePart.Base64 == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(r.ImagePart.Base64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("region %d: %w", i, err))
			continue
		}
		name := filepath.Join(dir, fmt.Sprintf("region-%03d.png", i))
		if err := os.WriteFile(name, raw, 0o644); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

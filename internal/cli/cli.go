// Package cli defines the yarnmap command-line flags and validated configs.
// Every flag can also be set through a YARNMAP_* environment variable.
package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ucli "github.com/urfave/cli/v2"

	"github.com/maax3v3/yarnmap/internal/logging"
)

const (
	flagIn             = "in"
	flagOut            = "out"
	flagCropsDir       = "crops-dir"
	flagLegend         = "legend"
	flagPalette        = "palette"
	flagMatches        = "matches"
	flagThreshold      = "threshold"
	flagMinArea        = "min-area"
	flagMaxDimension   = "max-dimension"
	flagReseedRejected = "reseed-rejected"
	flagLogFormat      = "log-format"
	flagLogLevel       = "log-level"
	flagAddr           = "addr"
	flagTimeout        = "timeout"
	flagMaxUpload      = "max-upload-bytes"
	flagAllowedOrigins = "allowed-origins"
)

// Analysis holds the settings shared by the analyze and serve commands.
type Analysis struct {
	PalettePath    string
	Matches        int
	Threshold      float64
	MinArea        int
	MaxDimension   int
	ReseedRejected bool
}

// Config holds the parsed analyze command arguments.
type Config struct {
	Analysis
	InPath     string
	OutPath    string // empty writes the report to stdout
	CropsDir   string
	LegendPath string
}

// ServerConfig holds the parsed serve command arguments.
type ServerConfig struct {
	Analysis
	Addr           string
	Timeout        time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
}

// Logging holds the global logging flags.
type Logging struct {
	Format string
	Level  string
}

func env(name string) []string {
	return []string{"YARNMAP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}

// GlobalFlags are accepted before any subcommand.
func GlobalFlags() []ucli.Flag {
	return []ucli.Flag{
		&ucli.StringFlag{Name: flagLogFormat, Value: logging.FormatConsole, EnvVars: env(flagLogFormat), Usage: "log output format (console, json)"},
		&ucli.StringFlag{Name: flagLogLevel, Value: "info", EnvVars: env(flagLogLevel), Usage: "log level (debug, info, warn, error)"},
	}
}

func analysisFlags() []ucli.Flag {
	return []ucli.Flag{
		&ucli.PathFlag{Name: flagPalette, EnvVars: env(flagPalette), Usage: "YAML or JSON `FILE` mapping palette names to hex colors"},
		&ucli.IntFlag{Name: flagMatches, Value: 3, EnvVars: env(flagMatches), Usage: "palette matches to report per region (0 = all)"},
		&ucli.Float64Flag{Name: flagThreshold, Value: 15, EnvVars: env(flagThreshold), Usage: "color similarity threshold percentage (0-100)"},
		&ucli.IntFlag{Name: flagMinArea, Value: 200, EnvVars: env(flagMinArea), Usage: "minimum region size in pixels"},
		&ucli.IntFlag{Name: flagMaxDimension, EnvVars: env(flagMaxDimension), Usage: "downscale images whose width or height exceeds this (0 = off)"},
		&ucli.BoolFlag{Name: flagReseedRejected, EnvVars: env(flagReseedRejected), Usage: "let pixels rejected by one region seed a later region"},
	}
}

// AnalyzeFlags are the flags of the analyze command.
func AnalyzeFlags() []ucli.Flag {
	return append([]ucli.Flag{
		&ucli.PathFlag{Name: flagIn, Aliases: []string{"i"}, EnvVars: env(flagIn), Required: true, Usage: "input image `FILE` (PNG, JPEG, WEBP)"},
		&ucli.PathFlag{Name: flagOut, Aliases: []string{"o"}, EnvVars: env(flagOut), Usage: "JSON report `FILE` (default: stdout)"},
		&ucli.PathFlag{Name: flagCropsDir, EnvVars: env(flagCropsDir), Usage: "write each region's PNG crop into `DIR`"},
		&ucli.PathFlag{Name: flagLegend, EnvVars: env(flagLegend), Usage: "write a numbered swatch sheet of the regions to `FILE` (.png)"},
	}, analysisFlags()...)
}

// ServeFlags are the flags of the serve command.
func ServeFlags() []ucli.Flag {
	return append([]ucli.Flag{
		&ucli.StringFlag{Name: flagAddr, Value: ":8080", EnvVars: env(flagAddr), Usage: "listen address"},
		&ucli.DurationFlag{Name: flagTimeout, Value: 60 * time.Second, EnvVars: env(flagTimeout), Usage: "per-request analysis timeout"},
		&ucli.Int64Flag{Name: flagMaxUpload, Value: 32 << 20, EnvVars: env(flagMaxUpload), Usage: "maximum upload size in bytes"},
		&ucli.StringSliceFlag{Name: flagAllowedOrigins, Value: ucli.NewStringSlice("*"), EnvVars: env(flagAllowedOrigins), Usage: "CORS allowed origins"},
	}, analysisFlags()...)
}

// LoggingFromContext reads the global logging flags.
func LoggingFromContext(c *ucli.Context) Logging {
	return Logging{Format: c.String(flagLogFormat), Level: c.String(flagLogLevel)}
}

func analysisFromContext(c *ucli.Context) Analysis {
	return Analysis{
		PalettePath:    c.Path(flagPalette),
		Matches:        c.Int(flagMatches),
		Threshold:      c.Float64(flagThreshold),
		MinArea:        c.Int(flagMinArea),
		MaxDimension:   c.Int(flagMaxDimension),
		ReseedRejected: c.Bool(flagReseedRejected),
	}
}

// ConfigFromContext builds and validates an analyze Config.
func ConfigFromContext(c *ucli.Context) (Config, error) {
	cfg := Config{
		Analysis:   analysisFromContext(c),
		InPath:     c.Path(flagIn),
		OutPath:    c.Path(flagOut),
		CropsDir:   c.Path(flagCropsDir),
		LegendPath: c.Path(flagLegend),
	}
	return cfg, cfg.Validate()
}

// ServerConfigFromContext builds and validates a ServerConfig.
func ServerConfigFromContext(c *ucli.Context) (ServerConfig, error) {
	cfg := ServerConfig{
		Analysis:       analysisFromContext(c),
		Addr:           c.String(flagAddr),
		Timeout:        c.Duration(flagTimeout),
		MaxUploadBytes: c.Int64(flagMaxUpload),
		AllowedOrigins: c.StringSlice(flagAllowedOrigins),
	}
	return cfg, cfg.Validate()
}

// Validate checks the shared analysis settings.
func (a Analysis) Validate() error {
	if a.Threshold < 0 || a.Threshold > 100 {
		return fmt.Errorf("--%s must be between 0 and 100, got %v", flagThreshold, a.Threshold)
	}
	if a.MinArea < 0 {
		return fmt.Errorf("--%s must be >= 0, got %d", flagMinArea, a.MinArea)
	}
	if a.Matches < 0 {
		return fmt.Errorf("--%s must be >= 0, got %d", flagMatches, a.Matches)
	}
	if a.MaxDimension < 0 {
		return fmt.Errorf("--%s must be >= 0, got %d", flagMaxDimension, a.MaxDimension)
	}
	return nil
}

// Validate checks an analyze Config.
func (cfg Config) Validate() error {
	if cfg.InPath == "" {
		return fmt.Errorf("--%s is required", flagIn)
	}
	if cfg.OutPath != "" {
		if ext := strings.ToLower(filepath.Ext(cfg.OutPath)); ext != ".json" {
			return fmt.Errorf("--%s must be a .json file, got %q", flagOut, ext)
		}
	}
	if cfg.LegendPath != "" {
		if ext := strings.ToLower(filepath.Ext(cfg.LegendPath)); ext != ".png" {
			return fmt.Errorf("--%s must be a .png file, got %q", flagLegend, ext)
		}
	}
	return cfg.Analysis.Validate()
}

// Validate checks a ServerConfig.
func (cfg ServerConfig) Validate() error {
	if cfg.Addr == "" {
		return fmt.Errorf("--%s is required", flagAddr)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--%s must be positive, got %v", flagTimeout, cfg.Timeout)
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("--%s must be positive, got %d", flagMaxUpload, cfg.MaxUploadBytes)
	}
	return cfg.Analysis.Validate()
}

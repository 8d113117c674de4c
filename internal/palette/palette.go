// Package palette matches colors against a named set of reference colors,
// such as the shades of a yarn line.
package palette

import (
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/maax3v3/yarnmap/internal/color"
)

// Entry is a named reference color.
type Entry struct {
	Name  string
	Color color.RGBA
}

// Match is an entry together with its distance to a queried color.
type Match struct {
	Name     string  `json:"name"`
	Hex      string  `json:"hex"`
	Distance float64 `json:"distance"`
}

// Palette is a list of entries ordered by name.
type Palette struct {
	Entries []Entry
}

// New parses a name→hex mapping. Every malformed entry is reported.
func New(m map[string]string) (*Palette, error) {
	var errs error
	entries := make([]Entry, 0, len(m))
	for name, hex := range m {
		if name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: palette entry with empty name", color.ErrInvalidArgument))
			continue
		}
		c, err := color.ParseHex(hex)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("palette entry %q: %w", name, err))
			continue
		}
		entries = append(entries, Entry{Name: name, Color: c})
	}
	if errs != nil {
		return nil, errs
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return &Palette{Entries: entries}, nil
}

// Load reads a palette file. The file is a YAML (or JSON) mapping of name
// to hex color, either at the top level or under a "colors" key.
func Load(path string) (*Palette, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading palette: %w", err)
	}
	var doc struct {
		Colors map[string]string `yaml:"colors"`
	}
	if err := yaml.Unmarshal(raw, &doc); err == nil && len(doc.Colors) > 0 {
		return New(doc.Colors)
	}
	var flat map[string]string
	if err := yaml.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("%w: palette %s: %v", color.ErrInvalidArgument, path, err)
	}
	return New(flat)
}

// Closest returns the n entries nearest to c by RGB distance, nearest first.
// Ties are broken by name. n <= 0 returns every entry.
func (p *Palette) Closest(c color.RGBA, n int) []Match {
	matches := lo.Map(p.Entries, func(e Entry, _ int) Match {
		return Match{Name: e.Name, Hex: e.Color.Hex(), Distance: color.DistanceRGB(c, e.Color)}
	})
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if n > 0 && n < len(matches) {
		matches = matches[:n]
	}
	return matches
}

// MatchHex sorts every entry of m by distance to hex.
func MatchHex(hex string, m map[string]string) ([]Match, error) {
	c, err := color.ParseHex(hex)
	if err != nil {
		return nil, err
	}
	p, err := New(m)
	if err != nil {
		return nil, err
	}
	return p.Closest(c, 0), nil
}

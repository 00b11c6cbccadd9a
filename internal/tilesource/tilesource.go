// Package tilesource describes imagery providers and expands their URL
// templates for a tile address.
package tilesource

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
)

const DefaultMaxZoom = 21

var (
	ErrInvalidTemplate       = errors.New("invalid url template")
	ErrUnsupportedProjection = errors.New("unsupported wms projection")
	ErrUnknownPreset         = errors.New("unknown tile source preset")
)

type Config struct {
	Name        string
	Identifier  string
	URL         string
	MaxZoom     int
	RoundZoomUp bool
	APIKey      string
	// WMSProjection makes the source a WMS endpoint in that projection.
	WMSProjection string
	// Placeholder is the provider's "no imagery here" image.
	Placeholder []byte
	// Retina selects the {@2x} variant.
	Retina bool
}

// Source is an imagery provider. It is immutable and safe for concurrent
// use.
type Source struct {
	name        string
	identifier  string
	template    string
	maxZoom     int
	roundZoomUp bool
	apiKey      string
	projection  string
	placeholder []byte
	retina      bool
}

var _ pyramid.Source = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	tmpl := cfg.URL
	tmpl = strings.ReplaceAll(tmpl, "{ty}", "{-y}")
	tmpl = strings.ReplaceAll(tmpl, "{zoom}", "{z}")

	if err := validate(tmpl); err != nil {
		return nil, err
	}
	if cfg.WMSProjection != "" && !Supported(cfg.WMSProjection) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProjection, cfg.WMSProjection)
	}

	maxZoom := cfg.MaxZoom
	if maxZoom <= 0 {
		maxZoom = DefaultMaxZoom
	}
	maxZoom = min(maxZoom, pyramid.MaxZoom-1)

	identifier := cfg.Identifier
	if identifier == "" {
		identifier = tmpl
	}
	name := cfg.Name
	if name == "" {
		name = identifier
	}

	return &Source{
		name:        name,
		identifier:  identifier,
		template:    tmpl,
		maxZoom:     maxZoom,
		roundZoomUp: cfg.RoundZoomUp,
		apiKey:      cfg.APIKey,
		projection:  cfg.WMSProjection,
		placeholder: cfg.Placeholder,
		retina:      cfg.Retina,
	}, nil
}

func validate(tmpl string) error {
	if tmpl == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTemplate)
	}
	depth := 0
	for _, r := range tmpl {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth < 0 || depth > 1 {
			return fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidTemplate, tmpl)
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidTemplate, tmpl)
	}
	if i := strings.Index(tmpl, "{switch:"); i >= 0 {
		end := strings.IndexByte(tmpl[i:], '}')
		if end == len("{switch:") {
			return fmt.Errorf("%w: empty switch list", ErrInvalidTemplate)
		}
	}
	return nil
}

func (s *Source) Name() string       { return s.name }
func (s *Source) Identifier() string { return s.identifier }
func (s *Source) Template() string   { return s.template }
func (s *Source) MaxZoom() int       { return s.maxZoom }
func (s *Source) RoundZoomUp() bool  { return s.roundZoomUp }
func (s *Source) IsWMS() bool        { return s.projection != "" }

func (s *Source) IsPlaceholder(data []byte) bool {
	return len(s.placeholder) > 0 && bytes.Equal(data, s.placeholder)
}

// URL expands the template for a. a must be normalized.
func (s *Source) URL(a pyramid.Address) (string, error) {
	if !a.Valid() {
		return "", fmt.Errorf("no url for %v: row outside the projection", a)
	}
	u := expandSwitch(s.template, a)

	if s.projection != "" {
		u = s.expandWMS(u, a)
	} else {
		u = strings.NewReplacer(
			"{u}", a.QuadKey(),
			"{x}", strconv.Itoa(a.X),
			"{y}", strconv.Itoa(a.Y),
			"{-y}", strconv.Itoa(1<<a.Zoom-a.Y-1),
			"{z}", strconv.Itoa(a.Zoom),
		).Replace(u)
	}

	retina := ""
	if s.retina {
		retina = "@2x"
	}
	u = strings.ReplaceAll(u, "{@2x}", retina)
	u = strings.ReplaceAll(u, "{apikey}", s.apiKey)
	return u, nil
}

// expandSwitch picks one entry of the first {switch:a,b,c} by tile
// position so neighbouring tiles spread over the listed hosts.
func expandSwitch(u string, a pyramid.Address) string {
	begin := strings.Index(u, "{switch:")
	if begin < 0 {
		return u
	}
	end := strings.IndexByte(u[begin:], '}')
	if end < 0 {
		return u
	}
	end += begin
	list := strings.Split(u[begin+len("{switch:"):end], ",")
	pick := list[(a.X+a.Y)%len(list)]
	return u[:begin] + pick + u[end+1:]
}

// LoadPlaceholder reads a placeholder image. An empty path means none.
func LoadPlaceholder(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read placeholder image: %w", err)
	}
	return data, nil
}

// FromConfig builds the configured source: a preset, optionally
// overridden field by field, or a custom template.
func FromConfig(cfg config.Source) (*Source, error) {
	var c Config
	if cfg.URL == "" {
		preset, ok := Preset(cfg.Preset)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, cfg.Preset)
		}
		c = preset
	} else {
		c = Config{URL: cfg.URL}
	}

	if cfg.Name != "" {
		c.Name = cfg.Name
	}
	if cfg.Identifier != "" {
		c.Identifier = cfg.Identifier
	}
	if cfg.MaxZoom > 0 {
		c.MaxZoom = cfg.MaxZoom
	}
	if cfg.RoundZoomUp {
		c.RoundZoomUp = true
	}
	if cfg.APIKey != "" {
		c.APIKey = cfg.APIKey
	}
	if cfg.WMSProjection != "" {
		c.WMSProjection = cfg.WMSProjection
	}

	placeholder, err := LoadPlaceholder(cfg.PlaceholderPath)
	if err != nil {
		return nil, err
	}
	if placeholder != nil {
		c.Placeholder = placeholder
	}

	return New(c)
}

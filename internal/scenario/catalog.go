package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/birising/OT-honey/internal/tags"
)

//go:embed scenarios.yaml
var builtinCatalog []byte

type rawCatalog struct {
	Scenarios []rawDefinition `yaml:"scenarios"`
}

type rawDefinition struct {
	Name        string             `yaml:"name"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Duration    string             `yaml:"duration"`
	Ramp        string             `yaml:"ramp"`
	Params      map[string]float64 `yaml:"params"`
	Overrides   []rawOverride      `yaml:"overrides"`
}

type rawOverride struct {
	Tag   string `yaml:"tag"`
	Value any    `yaml:"value"`
}

// CatalogOptions controls definition loading and validation.
type CatalogOptions struct {
	// Registry resolves override tags to their declared types.
	Registry *tags.Registry
	// KnownParam validates parameter keys. Nil accepts any key.
	KnownParam func(string) bool
}

// BuiltinCatalog parses the catalog compiled into the binary.
func BuiltinCatalog(opts CatalogOptions) ([]Definition, error) {
	return parseCatalog(builtinCatalog, opts)
}

// LoadCatalog reads a catalog file, for site-specific drill sets.
func LoadCatalog(path string, opts CatalogOptions) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario catalog: %w", err)
	}
	return parseCatalog(raw, opts)
}

func parseCatalog(raw []byte, opts CatalogOptions) ([]Definition, error) {
	var doc rawCatalog
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario catalog: %w", err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario catalog is empty")
	}

	defs := make([]Definition, 0, len(doc.Scenarios))
	seen := make(map[string]struct{}, len(doc.Scenarios))
	for i, entry := range doc.Scenarios {
		def, err := entry.compile(opts)
		if err != nil {
			return nil, fmt.Errorf("scenario %d (%q): %w", i, entry.Name, err)
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("scenario %q declared twice", def.Name)
		}
		seen[def.Name] = struct{}{}
		defs = append(defs, def)
	}
	return defs, nil
}

func (r rawDefinition) compile(opts CatalogOptions) (Definition, error) {
	if r.Name == "" {
		return Definition{}, fmt.Errorf("missing name")
	}
	duration, err := time.ParseDuration(r.Duration)
	if err != nil || duration <= 0 {
		return Definition{}, fmt.Errorf("bad duration %q", r.Duration)
	}
	var ramp time.Duration
	if r.Ramp != "" {
		ramp, err = time.ParseDuration(r.Ramp)
		if err != nil || ramp < 0 {
			return Definition{}, fmt.Errorf("bad ramp %q", r.Ramp)
		}
		if ramp > duration {
			return Definition{}, fmt.Errorf("ramp %s exceeds duration %s", ramp, duration)
		}
	}
	if len(r.Params) == 0 && len(r.Overrides) == 0 {
		return Definition{}, fmt.Errorf("no effect declared")
	}
	if opts.KnownParam != nil {
		for key := range r.Params {
			if !opts.KnownParam(key) {
				return Definition{}, fmt.Errorf("unknown model parameter %q", key)
			}
		}
	}

	overrides := make([]Override, 0, len(r.Overrides))
	for _, raw := range r.Overrides {
		if raw.Tag == "" {
			return Definition{}, fmt.Errorf("override with empty tag")
		}
		kind := tags.KindFloat
		if opts.Registry != nil {
			meta, err := opts.Registry.Meta(raw.Tag)
			if err != nil {
				return Definition{}, fmt.Errorf("override tag %s: %w", raw.Tag, err)
			}
			kind = meta.Type
		}
		value, err := tags.Coerce(kind, raw.Value)
		if err != nil {
			return Definition{}, fmt.Errorf("override tag %s: %w", raw.Tag, err)
		}
		overrides = append(overrides, Override{Tag: raw.Tag, Value: value})
	}

	return Definition{
		Name:        r.Name,
		Title:       r.Title,
		Description: r.Description,
		Duration:    duration,
		Ramp:        ramp,
		Params:      r.Params,
		Overrides:   overrides,
	}, nil
}

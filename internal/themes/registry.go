package themes

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// DefaultThemeID is the fallback theme of the built-in catalog.
const DefaultThemeID = "ananke"

// ErrUnknownTheme is returned for identifiers missing from the registry.
var ErrUnknownTheme = errors.New("unknown theme")

type catalogFile struct {
	Themes []Descriptor `yaml:"themes"`
}

// Registry is the immutable theme catalog. Lookups return copies.
type Registry struct {
	ordered   []Descriptor
	index     map[string]int
	defaultID string
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) ([]Descriptor, error) {
	var cf catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("parse theme catalog: %w", err)
	}
	return cf.Themes, nil
}

// NewRegistry validates descriptors and builds a registry. Category tags and
// suitability keys are canonicalized through the wizard synonym table. A missing
// default theme is a configuration error.
func NewRegistry(descriptors []Descriptor, defaultID string) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(descriptors)), defaultID: defaultID}
	for _, d := range descriptors {
		d = d.clone()
		if err := canonicalize(&d); err != nil {
			return nil, ferrors.ConfigError(err.Error()).WithContext("theme", d.ID).Build()
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, ferrors.ConfigError(fmt.Sprintf("duplicate theme id %q", d.ID)).Build()
		}
		r.index[d.ID] = len(r.ordered)
		r.ordered = append(r.ordered, d)
	}
	if _, ok := r.index[defaultID]; !ok {
		return nil, ferrors.ConfigError(fmt.Sprintf("default theme %q is not registered", defaultID)).
			WithCause(ErrUnknownTheme).
			Build()
	}
	return r, nil
}

// NewBuiltinRegistry loads the embedded catalog.
func NewBuiltinRegistry(defaultID string) (*Registry, error) {
	descs, err := ParseCatalog(builtinCatalog)
	if err != nil {
		return nil, ferrors.ConfigError("built-in theme catalog is invalid").WithCause(err).Build()
	}
	if defaultID == "" {
		defaultID = DefaultThemeID
	}
	return NewRegistry(descs, defaultID)
}

func canonicalize(d *Descriptor) error {
	if d.ID == "" {
		return errors.New("theme id is required")
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	switch d.Origin.Kind {
	case OriginLocal:
		if d.Origin.Path == "" {
			return fmt.Errorf("theme %s: local origin needs a path", d.ID)
		}
	case OriginRemote:
		if d.Origin.URL == "" {
			return fmt.Errorf("theme %s: remote origin needs a url", d.ID)
		}
	default:
		return fmt.Errorf("theme %s: unknown origin kind %q", d.ID, d.Origin.Kind)
	}

	tags := make([]string, 0, len(d.Categories))
	for _, c := range d.Categories {
		canonical, _ := wizard.ParseCategory(c)
		if canonical == "" {
			continue
		}
		if !slices.Contains(tags, string(canonical)) {
			tags = append(tags, string(canonical))
		}
	}
	d.Categories = tags

	scores := make(map[string]int, len(d.Suitability))
	for c, score := range d.Suitability {
		if score < 0 || score > 100 {
			return fmt.Errorf("theme %s: suitability for %s must be within 0..100, got %d", d.ID, c, score)
		}
		canonical, _ := wizard.ParseCategory(c)
		if !slices.Contains(d.Categories, string(canonical)) {
			return fmt.Errorf("theme %s: suitability for %s without matching category tag", d.ID, c)
		}
		scores[string(canonical)] = score
	}
	d.Suitability = scores
	return nil
}

// Get returns a copy of the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.ordered[i].clone(), true
}

// MustGet is Get for identifiers already known to exist.
func (r *Registry) MustGet(id string) Descriptor {
	d, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("themes: %v: %s", ErrUnknownTheme, id))
	}
	return d
}

// All returns copies of every descriptor in declaration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	for i, d := range r.ordered {
		out[i] = d.clone()
	}
	return out
}

// Default returns the fallback theme.
func (r *Registry) Default() Descriptor {
	return r.MustGet(r.defaultID)
}

// Len returns the number of registered themes.
func (r *Registry) Len() int {
	return len(r.ordered)
}

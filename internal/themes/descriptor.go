package themes

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Masterminds/semver/v3"
)

// OriginKind tells the installer how to materialize a theme.
type OriginKind string

const (
	OriginLocal  OriginKind = "local"
	OriginRemote OriginKind = "remote"
)

// Origin locates a theme's source tree.
type Origin struct {
	Kind OriginKind `yaml:"kind"`
	// Path is the directory of a bundled theme inside the bundled file system.
	Path string `yaml:"path,omitempty"`
	// URL and Ref locate a remote theme repository. Ref is a branch name or a full
	// reference such as refs/tags/v2.11.0; empty means the default branch.
	URL string `yaml:"url,omitempty"`
	Ref string `yaml:"ref,omitempty"`
}

// InstallInstructions refine how a fetched tree becomes themes/<id>.
type InstallInstructions struct {
	// Subdir selects a directory of the fetched tree as the theme root.
	Subdir string `yaml:"subdir,omitempty"`
	// RequiredDirs are structural markers checked after install. Defaults to layouts.
	RequiredDirs []string `yaml:"requiredDirs,omitempty"`
}

// Palette is a theme or industry color scheme.
type Palette struct {
	Primary    string `yaml:"primary"`
	Secondary  string `yaml:"secondary"`
	Accent     string `yaml:"accent"`
	Background string `yaml:"background"`
	Text       string `yaml:"text"`
}

// Params renders the palette as parameter mapping entries, skipping empty colors.
func (p Palette) Params() map[string]any {
	out := make(map[string]any, 5)
	for key, v := range map[string]string{
		ParamPrimaryColor:    p.Primary,
		ParamSecondaryColor:  p.Secondary,
		ParamAccentColor:     p.Accent,
		ParamBackgroundColor: p.Background,
		ParamTextColor:       p.Text,
	} {
		if v != "" {
			out[key] = v
		}
	}
	return out
}

// Descriptor is the catalog entry of one theme.
type Descriptor struct {
	ID                string              `yaml:"id"`
	Name              string              `yaml:"name"`
	Categories        []string            `yaml:"categories"`
	Suitability       map[string]int      `yaml:"suitability"`
	Palette           Palette             `yaml:"palette"`
	Features          []string            `yaml:"features"`
	Params            map[string]any      `yaml:"params,omitempty"`
	Origin            Origin              `yaml:"origin"`
	Install           InstallInstructions `yaml:"install,omitempty"`
	MinBuilderVersion string              `yaml:"minBuilderVersion,omitempty"`
}

// HasFeature reports whether the theme declares feature f.
func (d Descriptor) HasFeature(f string) bool {
	return slices.Contains(d.Features, f)
}

// RequiredDirs returns the structural markers to verify after install.
func (d Descriptor) RequiredDirs() []string {
	if len(d.Install.RequiredDirs) == 0 {
		return []string{"layouts"}
	}
	return slices.Clone(d.Install.RequiredDirs)
}

// SupportsBuilder checks the detected builder version against MinBuilderVersion.
// An empty constraint accepts every version.
func (d Descriptor) SupportsBuilder(version string) (bool, error) {
	if d.MinBuilderVersion == "" {
		return true, nil
	}
	c, err := semver.NewConstraint(d.MinBuilderVersion)
	if err != nil {
		return false, fmt.Errorf("theme %s: invalid builder constraint %q: %w", d.ID, d.MinBuilderVersion, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid builder version %q: %w", version, err)
	}
	return c.Check(v), nil
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.Categories = slices.Clone(d.Categories)
	out.Features = slices.Clone(d.Features)
	out.Suitability = maps.Clone(d.Suitability)
	out.Params = deepCopyMap(d.Params)
	out.Install.RequiredDirs = slices.Clone(d.Install.RequiredDirs)
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return deepCopyMap(vv)
	case []any:
		cp := make([]any, len(vv))
		for i, item := range vv {
			cp[i] = deepCopyValue(item)
		}
		return cp
	case []string:
		return slices.Clone(vv)
	default:
		return v
	}
}

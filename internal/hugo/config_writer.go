package hugo

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// ConfigFileName is the configuration document Hugo reads from the project root.
const ConfigFileName = "hugo.yaml"

const (
	defaultBaseURL      = "/"
	defaultLanguageCode = "en"
)

// MenuEntry is one item of the main navigation menu.
type MenuEntry struct {
	Identifier string
	Name       string
	URL        string
	Weight     int
}

// SiteConfig carries the structural fields plus the resolved parameter mapping.
// Params must already be fully layered; no merging happens here.
type SiteConfig struct {
	ThemeID      string
	Title        string
	BaseURL      string
	LanguageCode string
	Params       map[string]any
	Menu         []MenuEntry
}

// ConfigOutcome describes the written configuration document.
type ConfigOutcome struct {
	Path        string
	Bytes       int64
	MenuEntries int
}

// Document returns the configuration as Hugo's native schema. Values keep their
// Go types so booleans and numbers serialize as YAML scalars rather than strings.
func (c SiteConfig) Document() (map[string]any, error) {
	var missing []string
	if strings.TrimSpace(c.ThemeID) == "" {
		missing = append(missing, "theme")
	}
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return nil, ferrors.ValidationError(fmt.Sprintf("site configuration is missing %s", strings.Join(missing, ", "))).
			WithContext("missing", missing).
			Build()
	}

	params := make(map[string]any, len(c.Params))
	maps.Copy(params, c.Params)

	doc := map[string]any{
		"baseURL":      valueOr(c.BaseURL, defaultBaseURL),
		"title":        c.Title,
		"theme":        c.ThemeID,
		"languageCode": valueOr(c.LanguageCode, defaultLanguageCode),
		"params":       params,
		"disableKinds": []string{"taxonomy", "term"},
		"markup": map[string]any{
			"goldmark": map[string]any{"renderer": map[string]any{"unsafe": true}},
		},
	}
	if len(c.Menu) > 0 {
		main := make([]any, 0, len(c.Menu))
		for _, m := range c.Menu {
			main = append(main, map[string]any{
				"identifier": m.Identifier,
				"name":       m.Name,
				"url":        m.URL,
				"weight":     m.Weight,
			})
		}
		doc["menu"] = map[string]any{"main": main}
	}
	return doc, nil
}

// WriteConfig serializes c to <root>/hugo.yaml. Keys are sorted so identical
// input yields identical bytes. A failed write leaves whatever reached the disk
// in place for diagnosis.
func WriteConfig(root string, c SiteConfig) (ConfigOutcome, error) {
	path := filepath.Join(root, ConfigFileName)
	doc, err := c.Document()
	if err != nil {
		return ConfigOutcome{}, err
	}
	data, err := frontmatter.MarshalYAML(doc)
	if err != nil {
		return ConfigOutcome{}, ferrors.InternalError("marshal site configuration").
			WithCause(fmt.Errorf("%w: %w", ErrConfigMarshalFailed, err)).
			Fatal().
			Build()
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return ConfigOutcome{}, ferrors.FileSystemError("write site configuration").
			WithCause(fmt.Errorf("%w: %w", ErrConfigWriteFailed, err)).
			WithContext("path", path).
			Fatal().
			Build()
	}
	slog.Info("Generated site configuration",
		logfields.Path(path),
		logfields.Theme(c.ThemeID),
		logfields.Count(len(c.Menu)))
	return ConfigOutcome{Path: path, Bytes: int64(len(data)), MenuEntries: len(c.Menu)}, nil
}

func valueOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

package themes

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
)

// SelectionReason records why a theme was chosen.
type SelectionReason string

const (
	ReasonOverride SelectionReason = "override"
	ReasonCategory SelectionReason = "category"
	ReasonDefault  SelectionReason = "default"
)

// Selection is the chosen theme plus its resolved parameter mapping.
type Selection struct {
	Theme    Descriptor
	Category wizard.Category
	Reason   SelectionReason
	// Score is the suitability for Category; zero for overrides and fallbacks.
	Score      int
	Parameters map[string]any
}

// Selector chooses themes from a registry. It has no side effects besides logging.
type Selector struct {
	registry *Registry
}

// NewSelector creates a Selector over r.
func NewSelector(r *Registry) *Selector {
	return &Selector{registry: r}
}

// Select picks the theme for w. An explicit, registered theme override always
// wins. Otherwise the highest suitability for the canonical business category
// wins, ties going to the theme declared first. Without any category match the
// registry default is used.
func (s *Selector) Select(w *wizard.WizardData) (Selection, error) {
	if w == nil {
		return Selection{}, ferrors.ValidationError("wizard data is required for theme selection").Build()
	}
	category := w.Category()

	sel := Selection{Category: category}
	switch theme, score, reason := s.choose(w.ThemeID, category); reason {
	case ReasonOverride, ReasonCategory:
		sel.Theme, sel.Score, sel.Reason = theme, score, reason
	default:
		sel.Theme, sel.Reason = s.registry.Default(), ReasonDefault
	}
	sel.Parameters = ResolveParameters(sel.Theme, category, w)
	return sel, nil
}

func (s *Selector) choose(override string, category wizard.Category) (Descriptor, int, SelectionReason) {
	if id := strings.TrimSpace(override); id != "" {
		if d, ok := s.registry.Get(id); ok {
			return d, 0, ReasonOverride
		}
		slog.Warn("Ignoring unknown theme override", logfields.Theme(id))
	}

	best, bestScore, found := Descriptor{}, -1, false
	for _, d := range s.registry.All() {
		if !tagged(d, category) {
			continue
		}
		if score := d.Suitability[string(category)]; score > bestScore {
			best, bestScore, found = d, score, true
		}
	}
	if !found {
		return Descriptor{}, 0, ReasonDefault
	}
	return best, bestScore, ReasonCategory
}

func tagged(d Descriptor, c wizard.Category) bool {
	for _, tag := range d.Categories {
		if tag == string(c) {
			return true
		}
	}
	return false
}

// ResolveParameters layers the parameter mapping, lowest precedence first:
// theme params and palette, industry palette (neutral when unknown), wizard
// design preferences, business contact fields, theme feature toggles.
func ResolveParameters(theme Descriptor, category wizard.Category, w *wizard.WizardData) map[string]any {
	params := deepCopyMap(theme.Params)
	if params == nil {
		params = make(map[string]any)
	}
	merge := func(layer map[string]any) {
		for k, v := range layer {
			params[k] = v
		}
	}

	merge(theme.Palette.Params())
	industry, _ := IndustryPalette(category)
	merge(industry.Params())

	design := w.Design
	merge(Palette{
		Primary:    design.ColorScheme.Primary,
		Secondary:  design.ColorScheme.Secondary,
		Accent:     design.ColorScheme.Accent,
		Background: design.ColorScheme.Background,
		Text:       design.ColorScheme.Text,
	}.Params())
	merge(nonEmpty(map[string]string{
		ParamStyle:      design.Style,
		ParamFontFamily: design.FontFamily,
	}))

	info := w.BusinessInfo
	merge(nonEmpty(map[string]string{
		ParamBusinessName: info.Name,
		ParamDescription:  info.Description,
		ParamTagline:      info.Tagline,
		ParamPhone:        info.Contact.Phone,
		ParamEmail:        info.Contact.Email,
		ParamAddress:      info.Contact.Address,
		ParamCity:         info.Location.City,
		ParamRegion:       info.Location.State,
		ParamPostalCode:   info.Location.ZipCode,
		ParamCountry:      info.Location.Country,
		ParamCategory:     string(category),
	}))
	if w.StructureType() == wizard.StructureSinglePage {
		params[ParamSinglePage] = true
	}

	for _, f := range theme.Features {
		enabled := true
		if f == "blog" && w.ContentPreferences.IncludeBlog != nil {
			enabled = *w.ContentPreferences.IncludeBlog
		}
		params[FeatureToggleKey(f)] = enabled
	}
	return params
}

// FeatureToggleKey names the boolean parameter of a theme feature:
// "reading-time" becomes "enableReadingTime".
func FeatureToggleKey(feature string) string {
	// Casers are stateful, so each call gets its own.
	caser := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	b.WriteString("enable")
	for _, part := range strings.FieldsFunc(feature, func(r rune) bool { return r == '-' || r == '_' || r == ' ' }) {
		b.WriteString(caser.String(part))
	}
	return b.String()
}

func nonEmpty(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

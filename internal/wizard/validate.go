package wizard

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks required fields and value shapes. All problems are collected
// into a single validation error.
func (w *WizardData) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(w.WebsiteType.Category) == "" {
		add("websiteType.category is required")
	}
	if strings.TrimSpace(w.BusinessInfo.Name) == "" {
		add("businessInfo.name is required")
	}
	if email := w.BusinessInfo.Contact.Email; email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			add("businessInfo.contactInfo.email %q is not a valid address", email)
		}
	}

	cs := w.Design.ColorScheme
	for field, value := range map[string]string{
		"primary": cs.Primary, "secondary": cs.Secondary, "accent": cs.Accent,
		"background": cs.Background, "text": cs.Text,
	} {
		if value != "" && !hexColor.MatchString(value) {
			add("design.colorScheme.%s %q is not a hex color", field, value)
		}
	}

	switch w.WebsiteStructure.Type {
	case "", StructureMultiPage:
		if len(w.WebsiteStructure.SelectedSections) > 0 {
			add("websiteStructure.selectedSections is only valid for single-page sites")
		}
	case StructureSinglePage:
		if len(w.WebsiteStructure.SelectedPages) > 0 {
			add("websiteStructure.selectedPages is only valid for multi-page sites")
		}
	default:
		add("websiteStructure.type %q must be %q or %q", w.WebsiteStructure.Type, StructureMultiPage, StructureSinglePage)
	}

	for i, s := range w.SelectedServices {
		if strings.TrimSpace(s.Name) == "" {
			add("selectedServices[%d].name is required", i)
		}
	}

	if raw := w.Site.BaseURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "" && u.Host == "") || (u.Scheme == "" && !strings.HasPrefix(raw, "/")) {
			add("site.baseURL %q must be an absolute URL or a path starting with /", raw)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return ferrors.ValidationError("invalid wizard data: " + strings.Join(problems, "; ")).
		WithContext("problems", problems).
		Build()
}

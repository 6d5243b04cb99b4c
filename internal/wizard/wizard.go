package wizard

import (
	"strings"
)

// StructureType selects between the two site layouts the wizard offers.
type StructureType string

const (
	StructureMultiPage  StructureType = "multi-page"
	StructureSinglePage StructureType = "single-page"
)

// WizardData is the read-only input document of one pipeline run.
type WizardData struct {
	WebsiteType        WebsiteType        `json:"websiteType" yaml:"websiteType"`
	BusinessInfo       BusinessInfo       `json:"businessInfo" yaml:"businessInfo"`
	SelectedServices   []Service          `json:"selectedServices,omitempty" yaml:"selectedServices,omitempty"`
	WebsiteStructure   WebsiteStructure   `json:"websiteStructure,omitempty" yaml:"websiteStructure,omitempty"`
	Design             DesignPreferences  `json:"design,omitempty" yaml:"design,omitempty"`
	ContentPreferences ContentPreferences `json:"contentPreferences,omitempty" yaml:"contentPreferences,omitempty"`
	// ThemeID is an explicit theme override. It wins over category scoring.
	ThemeID string       `json:"themeId,omitempty" yaml:"themeId,omitempty"`
	Site    SiteSettings `json:"site,omitempty" yaml:"site,omitempty"`
}

type WebsiteType struct {
	Category    string `json:"category" yaml:"category"`
	Subcategory string `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
}

type BusinessInfo struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Tagline     string       `json:"tagline,omitempty" yaml:"tagline,omitempty"`
	Contact     ContactInfo  `json:"contactInfo,omitempty" yaml:"contactInfo,omitempty"`
	Location    LocationInfo `json:"locationInfo,omitempty" yaml:"locationInfo,omitempty"`
}

type ContactInfo struct {
	Phone   string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email   string `json:"email,omitempty" yaml:"email,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

type LocationInfo struct {
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty" yaml:"zipCode,omitempty"`
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
}

type Service struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Price       string `json:"price,omitempty" yaml:"price,omitempty"`
}

// WebsiteStructure is tagged by Type: multi-page sites list SelectedPages,
// single-page sites list SelectedSections.
type WebsiteStructure struct {
	Type             StructureType `json:"type,omitempty" yaml:"type,omitempty"`
	SelectedPages    []string      `json:"selectedPages,omitempty" yaml:"selectedPages,omitempty"`
	SelectedSections []string      `json:"selectedSections,omitempty" yaml:"selectedSections,omitempty"`
}

type DesignPreferences struct {
	ColorScheme ColorScheme `json:"colorScheme,omitempty" yaml:"colorScheme,omitempty"`
	Style       string      `json:"style,omitempty" yaml:"style,omitempty"`
	FontFamily  string      `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty"`
}

// ColorScheme holds hex colors; empty fields mean "no preference".
type ColorScheme struct {
	Primary    string `json:"primary,omitempty" yaml:"primary,omitempty"`
	Secondary  string `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	Accent     string `json:"accent,omitempty" yaml:"accent,omitempty"`
	Background string `json:"background,omitempty" yaml:"background,omitempty"`
	Text       string `json:"text,omitempty" yaml:"text,omitempty"`
}

type ContentPreferences struct {
	// IncludeBlog nil means the theme decides.
	IncludeBlog *bool  `json:"includeBlog,omitempty" yaml:"includeBlog,omitempty"`
	Tone        string `json:"tone,omitempty" yaml:"tone,omitempty"`
}

type SiteSettings struct {
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	BaseURL      string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	LanguageCode string `json:"languageCode,omitempty" yaml:"languageCode,omitempty"`
}

// Category returns the canonical business category. Subcategory is consulted when
// the category itself is unknown, so {"category":"other","subcategory":"dental"}
// still resolves to healthcare.
func (w *WizardData) Category() Category {
	c, known := ParseCategory(w.WebsiteType.Category)
	if known {
		return c
	}
	if sub, ok := ParseCategory(w.WebsiteType.Subcategory); ok {
		return sub
	}
	return c
}

// SiteTitle returns the configured site title or the business name.
func (w *WizardData) SiteTitle() string {
	if t := strings.TrimSpace(w.Site.Title); t != "" {
		return t
	}
	return strings.TrimSpace(w.BusinessInfo.Name)
}

// StructureType returns the declared layout, defaulting to multi-page.
func (w *WizardData) StructureType() StructureType {
	if w.WebsiteStructure.Type == "" {
		return StructureMultiPage
	}
	return w.WebsiteStructure.Type
}

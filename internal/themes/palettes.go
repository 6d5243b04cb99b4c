package themes

import "git.home.luguber.info/inful/sitebuilder/internal/wizard"

// Parameter mapping keys shared with the configuration writer and the bundled themes.
const (
	ParamPrimaryColor    = "primaryColor"
	ParamSecondaryColor  = "secondaryColor"
	ParamAccentColor     = "accentColor"
	ParamBackgroundColor = "backgroundColor"
	ParamTextColor       = "textColor"
	ParamStyle           = "style"
	ParamFontFamily      = "fontFamily"
	ParamBusinessName    = "businessName"
	ParamDescription     = "description"
	ParamTagline         = "tagline"
	ParamPhone           = "phone"
	ParamEmail           = "email"
	ParamAddress         = "address"
	ParamCity            = "city"
	ParamRegion          = "region"
	ParamPostalCode      = "postalCode"
	ParamCountry         = "country"
	ParamCategory        = "category"
	ParamSinglePage      = "singlePage"
)

// NeutralPalette applies when the industry is unknown.
var NeutralPalette = Palette{
	Primary:    "#2d3748",
	Secondary:  "#edf2f7",
	Accent:     "#3182ce",
	Background: "#ffffff",
	Text:       "#1a202c",
}

var industryPalettes = map[wizard.Category]Palette{
	wizard.CategoryHealthcare:   {Primary: "#2b6cb0", Secondary: "#ebf8ff", Accent: "#38a169", Background: "#ffffff", Text: "#1a365d"},
	wizard.CategoryRestaurant:   {Primary: "#9b2c2c", Secondary: "#fffaf0", Accent: "#d69e2e", Background: "#fffdf7", Text: "#2d1b12"},
	wizard.CategoryRetail:       {Primary: "#b83280", Secondary: "#fff5f7", Accent: "#319795", Background: "#ffffff", Text: "#1a202c"},
	wizard.CategoryProfessional: {Primary: "#1a365d", Secondary: "#f7fafc", Accent: "#c05621", Background: "#ffffff", Text: "#2d3748"},
	wizard.CategoryTechnology:   {Primary: "#553c9a", Secondary: "#faf5ff", Accent: "#00b5d8", Background: "#ffffff", Text: "#1a202c"},
	wizard.CategoryCreative:     {Primary: "#000000", Secondary: "#f7f7f7", Accent: "#e53e3e", Background: "#ffffff", Text: "#111111"},
	wizard.CategoryBlog:         {Primary: "#2c5282", Secondary: "#f7fafc", Accent: "#dd6b20", Background: "#ffffff", Text: "#2d3748"},
	wizard.CategoryBusiness:     {Primary: "#2a4365", Secondary: "#edf2f7", Accent: "#3182ce", Background: "#ffffff", Text: "#1a202c"},
	wizard.CategoryEducation:    {Primary: "#276749", Secondary: "#f0fff4", Accent: "#d69e2e", Background: "#ffffff", Text: "#1c4532"},
	wizard.CategoryFitness:      {Primary: "#c53030", Secondary: "#1a202c", Accent: "#ecc94b", Background: "#ffffff", Text: "#1a202c"},
	wizard.CategoryNonprofit:    {Primary: "#2f855a", Secondary: "#f0fff4", Accent: "#dd6b20", Background: "#ffffff", Text: "#22543d"},
	wizard.CategoryRealEstate:   {Primary: "#234e52", Secondary: "#e6fffa", Accent: "#b7791f", Background: "#ffffff", Text: "#1d4044"},
}

// IndustryPalette returns the color scheme of a category and whether one is defined.
func IndustryPalette(c wizard.Category) (Palette, bool) {
	p, ok := industryPalettes[c]
	if !ok {
		return NeutralPalette, false
	}
	return p, true
}

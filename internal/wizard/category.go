package wizard

import (
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/normalization"
)

// Category is a canonical business category.
type Category string

const (
	CategoryHealthcare   Category = "healthcare"
	CategoryRestaurant   Category = "restaurant"
	CategoryRetail       Category = "retail"
	CategoryProfessional Category = "professional-services"
	CategoryTechnology   Category = "technology"
	CategoryCreative     Category = "creative"
	CategoryBlog         Category = "blog"
	CategoryBusiness     Category = "business"
	CategoryEducation    Category = "education"
	CategoryFitness      Category = "fitness"
	CategoryNonprofit    Category = "nonprofit"
	CategoryRealEstate   Category = "real-estate"
)

// synonyms maps every accepted spelling to its canonical category.
var synonyms = normalization.NewNormalizer("category", map[string]Category{
	"healthcare": CategoryHealthcare, "health": CategoryHealthcare, "medical": CategoryHealthcare,
	"clinic": CategoryHealthcare, "dental": CategoryHealthcare, "dentist": CategoryHealthcare,
	"veterinary": CategoryHealthcare, "pharmacy": CategoryHealthcare, "therapy": CategoryHealthcare,

	"restaurant": CategoryRestaurant, "food": CategoryRestaurant, "cafe": CategoryRestaurant,
	"bakery": CategoryRestaurant, "bar": CategoryRestaurant, "catering": CategoryRestaurant,
	"dining": CategoryRestaurant,

	"retail": CategoryRetail, "shop": CategoryRetail, "store": CategoryRetail,
	"ecommerce": CategoryRetail, "e-commerce": CategoryRetail, "boutique": CategoryRetail,

	"professional-services": CategoryProfessional, "professional": CategoryProfessional,
	"services": CategoryProfessional, "consulting": CategoryProfessional, "legal": CategoryProfessional,
	"law": CategoryProfessional, "accounting": CategoryProfessional, "finance": CategoryProfessional,

	"technology": CategoryTechnology, "tech": CategoryTechnology, "software": CategoryTechnology,
	"saas": CategoryTechnology, "startup": CategoryTechnology, "it": CategoryTechnology,

	"creative": CategoryCreative, "portfolio": CategoryCreative, "photography": CategoryCreative,
	"design": CategoryCreative, "art": CategoryCreative, "artist": CategoryCreative,

	"blog": CategoryBlog, "personal": CategoryBlog, "news": CategoryBlog, "magazine": CategoryBlog,

	"business": CategoryBusiness, "company": CategoryBusiness, "corporate": CategoryBusiness,
	"local-business": CategoryBusiness,

	"education": CategoryEducation, "school": CategoryEducation, "tutoring": CategoryEducation,
	"training": CategoryEducation,

	"fitness": CategoryFitness, "gym": CategoryFitness, "yoga": CategoryFitness,
	"wellness": CategoryFitness, "sports": CategoryFitness,

	"nonprofit": CategoryNonprofit, "non-profit": CategoryNonprofit, "charity": CategoryNonprofit,
	"ngo": CategoryNonprofit,

	"real-estate": CategoryRealEstate, "realestate": CategoryRealEstate, "property": CategoryRealEstate,
	"realtor": CategoryRealEstate,
}, "")

// ParseCategory canonicalizes a category string through the synonym table.
// Unknown categories are returned in normalized form and report known=false.
func ParseCategory(raw string) (c Category, known bool) {
	if canonical, ok := synonyms.Lookup(raw); ok {
		return canonical, true
	}
	return Category(normalization.Key(raw)), false
}

// Matches reports whether two category spellings denote the same canonical category.
func Matches(a, b string) bool {
	ca, _ := ParseCategory(a)
	cb, _ := ParseCategory(b)
	return ca != "" && ca == cb
}

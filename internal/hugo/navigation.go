package hugo

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
)

// collection menu labels
var collectionLabels = map[content.Type]string{
	content.TypePost:    "Blog",
	content.TypeService: "Services",
}

// NavigationFromContent derives the main menu: the home page, every top-level
// page or section, and one entry per non-empty post or service collection.
// Records without a weight are weighted by first appearance; the result is
// ordered by weight, ties keeping first appearance. Empty or unresolvable
// records contribute nothing.
func NavigationFromContent(records []content.Record) []MenuEntry {
	var entries []MenuEntry
	seen := make(map[string]bool)
	add := func(idx int, r content.Record, id, name, url string) {
		if seen[url] {
			return
		}
		seen[url] = true
		weight := r.Weight
		if weight == 0 {
			weight = (idx + 1) * 10
		}
		entries = append(entries, MenuEntry{Identifier: id, Name: name, URL: url, Weight: weight})
	}

	for i, r := range records {
		if r.Body == "" {
			continue
		}
		switch r.Type {
		case content.TypeHome:
			add(i, r, "home", menuName(r, "Home"), "/")
		case content.TypePage, content.TypeSection:
			rel, err := content.ResolvePath(r)
			if err != nil {
				continue
			}
			slug, ok := topLevelSlug(rel)
			if !ok {
				continue
			}
			if slug == "" {
				add(i, r, "home", menuName(r, "Home"), "/")
				continue
			}
			add(i, r, slug, menuName(r, label(slug)), "/"+slug+"/")
		case content.TypePost, content.TypeService:
			section := content.PostsSection
			if r.Type == content.TypeService {
				section = content.ServicesSection
			}
			add(i, content.Record{}, section, collectionLabels[r.Type], "/"+section+"/")
		}
	}

	slices.SortStableFunc(entries, func(a, b MenuEntry) int { return a.Weight - b.Weight })
	return entries
}

// topLevelSlug maps content/about.md and content/about/_index.md to "about" and
// content/_index.md to "". Deeper pages are not menu entries.
func topLevelSlug(rel string) (string, bool) {
	p := strings.TrimSuffix(strings.TrimPrefix(rel, "content/"), ".md")
	if p == "_index" {
		return "", true
	}
	p = strings.TrimSuffix(p, "/_index")
	if p == "" || strings.Contains(p, "/") {
		return "", false
	}
	return p, true
}

func menuName(r content.Record, fallback string) string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	if t := markdown.Title([]byte(r.Body)); t != "" {
		return t
	}
	return fallback
}

// label turns a slug such as "our-team" into "Our Team".
func label(slug string) string {
	caser := cases.Title(language.Und)
	return caser.String(strings.ReplaceAll(slug, "-", " "))
}

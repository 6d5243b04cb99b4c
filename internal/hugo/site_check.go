package hugo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// SiteCheck summarizes a rendered site.
type SiteCheck struct {
	Title     string
	HTMLFiles int
	Warnings  []string
}

// CheckRenderedSite inspects root/public after a successful build. Every finding
// is a warning: a site without a titled home page is still packaged.
func CheckRenderedSite(root string) SiteCheck {
	var check SiteCheck
	out := filepath.Join(root, OutputDir)

	_ = filepath.WalkDir(out, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".html") {
			check.HTMLFiles++
		}
		return nil
	})

	index := filepath.Join(out, "index.html")
	f, err := os.Open(index) // #nosec G304 -- path is inside the workspace
	if err != nil {
		check.Warnings = append(check.Warnings, fmt.Sprintf("rendered site has no %s/index.html", OutputDir))
		return check
	}
	defer func() { _ = f.Close() }()

	doc, err := html.Parse(f)
	if err != nil {
		check.Warnings = append(check.Warnings, fmt.Sprintf("cannot parse %s/index.html: %v", OutputDir, err))
		return check
	}
	check.Title = documentTitle(doc)
	if check.Title == "" {
		check.Warnings = append(check.Warnings, fmt.Sprintf("%s/index.html has no <title>", OutputDir))
	}
	return check
}

func documentTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := documentTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// Package markdown inspects generated Markdown bodies.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// Heading is one ATX or setext heading of a document.
type Heading struct {
	Level int
	Text  string
}

// Headings returns the document headings in source order.
func Headings(body []byte) []Heading {
	root := md.Parser().Parse(text.NewReader(body))

	var out []Heading
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		out = append(out, Heading{Level: h.Level, Text: plainText(h, body)})
		return gmast.WalkSkipChildren, nil
	})
	return out
}

// Title returns the text of the first level-one heading, falling back to the
// first heading of any level. It returns "" when the body has no headings.
func Title(body []byte) string {
	headings := Headings(body)
	for _, h := range headings {
		if h.Level == 1 && h.Text != "" {
			return h.Text
		}
	}
	for _, h := range headings {
		if h.Text != "" {
			return h.Text
		}
	}
	return ""
}

func plainText(n gmast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *gmast.String:
			buf.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

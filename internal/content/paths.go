package content

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const indexName = "_index"

// Collection directories for typed records.
const (
	PostsSection    = "posts"
	ServicesSection = "services"
)

var (
	// ErrEmptyKey is returned for records that need a key but have none.
	ErrEmptyKey = errors.New("content key is empty")
	// ErrUnknownType is returned for unsupported record types.
	ErrUnknownType = errors.New("unknown content type")
)

// ResolvePath derives the workspace-relative, slash separated target path of a
// record from its type and key. The result depends on nothing but the record.
func ResolvePath(r Record) (string, error) {
	switch r.Type {
	case TypeHome:
		return "content/_index.md", nil
	case TypePage:
		segs, err := slugSegments(r.Key)
		if err != nil {
			return "", err
		}
		return "content/" + strings.Join(segs, "/") + ".md", nil
	case TypeSection:
		segs, err := slugSegments(strings.TrimSuffix(r.Key, "/"+indexName))
		if err != nil {
			return "", err
		}
		return "content/" + strings.Join(segs, "/") + "/" + indexName + ".md", nil
	case TypePost:
		return collectionPath(PostsSection, r.Key)
	case TypeService:
		return collectionPath(ServicesSection, r.Key)
	case TypeData:
		segs, err := cleanSegments(r.Key)
		if err != nil {
			return "", err
		}
		p := "data/" + strings.Join(segs, "/")
		if path.Ext(p) == "" {
			p += ".yaml"
		}
		return p, nil
	case TypeStatic:
		segs, err := cleanSegments(r.Key)
		if err != nil {
			return "", err
		}
		return "static/" + strings.Join(segs, "/"), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
}

// collectionPath places a record inside a collection, accepting keys with or
// without the collection prefix ("posts/hello" and "hello" are equivalent).
func collectionPath(collection, key string) (string, error) {
	segs, err := slugSegments(key)
	if err != nil {
		return "", err
	}
	if len(segs) > 1 && segs[0] == collection {
		segs = segs[1:]
	}
	return "content/" + collection + "/" + strings.Join(segs, "/") + ".md", nil
}

func cleanSegments(key string) ([]string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, `\`, "/"))
	if key == "" {
		return nil, ErrEmptyKey
	}
	var segs []string
	for _, s := range strings.Split(key, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("content key %q escapes its directory", key)
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		return nil, ErrEmptyKey
	}
	return segs, nil
}

func slugSegments(key string) ([]string, error) {
	segs, err := cleanSegments(strings.TrimSuffix(strings.TrimSpace(key), ".md"))
	if err != nil {
		return nil, err
	}
	for i, s := range segs {
		if s == indexName {
			continue
		}
		slug := Slugify(s)
		if slug == "" {
			return nil, fmt.Errorf("content key segment %q has no usable characters", s)
		}
		segs[i] = slug
	}
	return segs, nil
}

// Slugify lowercases s, strips diacritics and joins the remaining letter and
// digit runs with single hyphens: "Über Café & Bar" becomes "uber-cafe-bar".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

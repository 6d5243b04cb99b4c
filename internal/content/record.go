// Package content defines generated content records and where they land in a site tree.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
)

// Type tags what kind of site element a record becomes.
type Type string

const (
	TypeHome    Type = "home"
	TypePage    Type = "page"
	TypeSection Type = "section"
	TypePost    Type = "post"
	TypeService Type = "service"
	TypeData    Type = "data"
	TypeStatic  Type = "static"
)

// IsMarkdown reports whether records of this type are rendered as Markdown pages
// with front matter. Data and static records are written verbatim.
func (t Type) IsMarkdown() bool {
	switch t {
	case TypeHome, TypePage, TypeSection, TypePost, TypeService:
		return true
	default:
		return false
	}
}

// Record is one generated content unit. Records are read-only inputs.
type Record struct {
	// Key is the structural position, e.g. "about/_index" or "posts/opening-day".
	Key    string         `json:"key" yaml:"key"`
	Type   Type           `json:"type" yaml:"type"`
	Title  string         `json:"title,omitempty" yaml:"title,omitempty"`
	Body   string         `json:"body" yaml:"body"`
	Date   *time.Time     `json:"date,omitempty" yaml:"date,omitempty"`
	Weight int            `json:"weight,omitempty" yaml:"weight,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// TrackingEntry is the outcome of writing one Record. Entries are never mutated
// after the writer returns them.
type TrackingEntry struct {
	Key     string `json:"key"`
	Type    Type   `json:"type"`
	Path    string `json:"path,omitempty"` // slash separated, relative to the workspace root
	Bytes   int64  `json:"bytes"`
	Success bool   `json:"success"`
	// Overwrote is set when an earlier record of the same run wrote the same path.
	Overwrote bool   `json:"overwrote,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Bundle is the on-disk document the content collaborator hands over.
type Bundle struct {
	Records []Record `json:"records" yaml:"records"`
}

// LoadRecords reads a JSON or YAML bundle of records from path.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return nil, ferrors.ValidationError(fmt.Sprintf("cannot read content records %s", path)).WithCause(err).Build()
	}
	return DecodeRecords(data, wizard.FormatFromPath(path))
}

// DecodeRecords decodes a record bundle. Unknown fields are rejected.
func DecodeRecords(data []byte, format wizard.Format) ([]Record, error) {
	var b Bundle
	var err error
	if format == wizard.FormatYAML {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&b)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&b)
	}
	if err != nil {
		return nil, ferrors.ValidationError("malformed content records").WithCause(err).Build()
	}
	return b.Records, nil
}

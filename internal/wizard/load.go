package wizard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Format is the encoding of a wizard document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension; anything but .yaml/.yml is JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads one WizardData document. Unknown fields are rejected.
func Decode(r io.Reader, format Format) (*WizardData, error) {
	var w WizardData
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&w); err != nil {
			return nil, decodeError(err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&w); err != nil {
			return nil, decodeError(err)
		}
		if dec.More() {
			return nil, decodeError(errors.New("trailing data after document"))
		}
	}
	return &w, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte, format Format) (*WizardData, error) {
	return Decode(bytes.NewReader(data), format)
}

// Load reads and decodes a wizard document from disk.
func Load(path string) (*WizardData, error) {
	f, err := os.Open(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return nil, ferrors.ValidationError(fmt.Sprintf("cannot open wizard data %s", path)).WithCause(err).Build()
	}
	defer func() { _ = f.Close() }()
	return Decode(f, FormatFromPath(path))
}

func decodeError(err error) error {
	if errors.Is(err, io.EOF) {
		return ferrors.ValidationError("wizard data is empty").Build()
	}
	return ferrors.ValidationError("malformed wizard data").WithCause(err).Build()
}

package frontmatter

import (
	"strings"

	"github.com/inful/mdfp"
)

// FingerprintField is the front matter key holding the content fingerprint.
const FingerprintField = mdfp.FingerprintField

// Fingerprint hashes the canonical serialization of fields (without any existing
// fingerprint) together with body. Equal inputs always produce equal fingerprints.
func Fingerprint(fields map[string]any, body string) (string, error) {
	hashed := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField {
			continue
		}
		hashed[k] = v
	}
	fm := ""
	if len(hashed) > 0 {
		data, err := MarshalYAML(hashed)
		if err != nil {
			return "", err
		}
		fm = strings.TrimSuffix(string(data), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(fm, body), nil
}

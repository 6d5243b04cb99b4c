// Package frontmatter renders and splits YAML front matter for generated pages.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const delimiter = "---\n"

// ErrMissingClosingDelimiter is returned by Split for an unterminated front matter block.
var ErrMissingClosingDelimiter = errors.New("front matter: missing closing delimiter")

// MarshalYAML serializes fields with keys sorted recursively, so identical input
// always yields identical bytes. Booleans and numbers keep their native YAML tags.
func MarshalYAML(fields map[string]any) ([]byte, error) {
	if len(fields) == 0 {
		return []byte{}, nil
	}
	node, err := mappingNode(fields)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render joins front matter fields and a Markdown body into one document.
func Render(fields map[string]any, body string) ([]byte, error) {
	fm, err := MarshalYAML(fields)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2*len(delimiter)+len(fm)+len(body)+1)
	out = append(out, delimiter...)
	out = append(out, fm...)
	out = append(out, delimiter...)
	out = append(out, body...)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}

// Split separates a rendered document into parsed fields and body. A document
// without front matter returns nil fields and the full input as body.
func Split(doc []byte) (map[string]any, []byte, error) {
	if !bytes.HasPrefix(doc, []byte(delimiter)) {
		return nil, doc, nil
	}
	rest := doc[len(delimiter):]
	var raw []byte
	switch idx := bytes.Index(rest, []byte("\n"+delimiter)); {
	case bytes.HasPrefix(rest, []byte(delimiter)):
		rest = rest[len(delimiter):]
	case idx < 0:
		return nil, nil, ErrMissingClosingDelimiter
	default:
		raw = rest[:idx+1]
		rest = rest[idx+1+len(delimiter):]
	}
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, nil, fmt.Errorf("front matter: %w", err)
		}
	}
	return fields, rest, nil
}

func mappingNode(m map[string]any) (*yaml.Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		val, err := valueNode(m[k])
		if err != nil {
			return nil, fmt.Errorf("front matter key %q: %w", k, err)
		}
		n.Content = append(n.Content, scalar("!!str", k), val)
	}
	return n, nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func valueNode(v any) (*yaml.Node, error) {
	switch vv := v.(type) {
	case nil:
		return scalar("!!null", "null"), nil
	case string:
		return scalar("!!str", vv), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(vv)), nil
	case int:
		return scalar("!!int", strconv.Itoa(vv)), nil
	case int64:
		return scalar("!!int", strconv.FormatInt(vv, 10)), nil
	case float64:
		return scalar("!!float", strconv.FormatFloat(vv, 'g', -1, 64)), nil
	case time.Time:
		return scalar("!!timestamp", vv.UTC().Format(time.RFC3339)), nil
	case map[string]any:
		return mappingNode(vv)
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range vv {
			seq.Content = append(seq.Content, scalar("!!str", item))
		}
		return seq, nil
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range vv {
			node, err := valueNode(item)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, node)
		}
		return seq, nil
	default:
		var node yaml.Node
		if err := node.Encode(v); err != nil {
			return nil, err
		}
		return &node, nil
	}
}

package export

import (
	"fmt"
	"strings"
)

// Transform kinds form a closed set selected by name in the route
// configuration. They are never sourced from user-supplied code.
const (
	TransformIdentity      = "identity"
	TransformCommaList     = "commaList"
	TransformLabelURLPairs = "labelURLPairs"
)

// applyTransform applies the named transform to a mapped value, exactly
// once per field per export. An empty name means identity.
func applyTransform(name string, v any) (any, error) {
	switch name {
	case "", TransformIdentity:
		return v, nil
	case TransformCommaList:
		return commaList(v)
	case TransformLabelURLPairs:
		return labelURLPairs(v)
	default:
		return nil, fmt.Errorf("unknown transform: %s", name)
	}
}

// commaList splits "a, b, c" into ["a","b","c"], dropping empties.
// Non-string values pass through unchanged.
func commaList(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var out []any
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

// labelURLPairs splits "Label|https://a; Other|https://b" into
// [{label, url}, ...]. Entries without a pipe are skipped.
func labelURLPairs(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var out []any
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		label, rawURL, found := strings.Cut(entry, "|")
		if !found {
			continue
		}
		out = append(out, map[string]any{
			"label": strings.TrimSpace(label),
			"url":   strings.TrimSpace(rawURL),
		})
	}
	return out, nil
}

// Package rewrite replaces image references with uploaded-asset URLs, in
// body text and in arbitrary JSON-like metadata values.
package rewrite

import (
	"fmt"
	"strings"

	"github.com/halvard/raido/internal/contentservice"
	"github.com/halvard/raido/internal/imageref"
)

// Text replaces every extracted image reference whose path has an entry in
// resolved with the canonical inline form ![alt](url). Replacement is by
// exact matched substring, never regex re-parsing, so overlapping matches
// cannot be double-processed. References without a resolved asset are left
// untouched. Running Text again over its own output is a no-op once all
// local paths are gone from resolved.
func Text(text string, resolved map[string]*contentservice.Asset) string {
	refs := imageref.Extract(text)
	done := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		asset, ok := resolved[ref.Path]
		if !ok {
			continue
		}
		if _, dup := done[ref.Matched]; dup {
			continue
		}
		done[ref.Matched] = struct{}{}
		replacement := fmt.Sprintf("![%s](%s)", altText(asset, ref), asset.URL)
		text = strings.ReplaceAll(text, ref.Matched, replacement)
	}
	return text
}

// altText picks the alt text for a rewritten reference. Fallback order:
// the uploaded asset's alternative text, then the original inline alt,
// then the source filename stem.
func altText(asset *contentservice.Asset, ref imageref.Ref) string {
	if asset.AlternativeText != "" {
		return asset.AlternativeText
	}
	if ref.Alt != "" {
		return ref.Alt
	}
	return imageref.Stem(ref.Path)
}

// StringRule returns the rewrite rule applied to metadata string values:
// image-looking strings with a resolved asset become the asset's bare
// remote URL (metadata fields hold URLs, not markdown).
func StringRule(resolved map[string]*contentservice.Asset) func(string) (string, bool) {
	return func(s string) (string, bool) {
		if !imageref.LooksLikeImage(s) {
			return s, false
		}
		asset, ok := resolved[s]
		if !ok {
			return s, false
		}
		return asset.URL, true
	}
}

// Value recursively walks a JSON-like value (maps, slices, scalars),
// applying StringRule to every string. Returns the rewritten value and
// whether anything changed, so callers can skip unnecessary writes.
func Value(v any, resolved map[string]*contentservice.Asset) (any, bool) {
	return walk(v, StringRule(resolved))
}

func walk(v any, rule func(string) (string, bool)) (any, bool) {
	switch vv := v.(type) {
	case string:
		if repl, ok := rule(vv); ok {
			return repl, true
		}
		return vv, false
	case []any:
		changed := false
		out := make([]any, len(vv))
		for i, item := range vv {
			var c bool
			out[i], c = walk(item, rule)
			changed = changed || c
		}
		return out, changed
	case map[string]any:
		changed := false
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			var c bool
			out[k], c = walk(item, rule)
			changed = changed || c
		}
		return out, changed
	default:
		return v, false
	}
}

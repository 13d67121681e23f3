// Package imageref finds and classifies image references in Markdown text.
//
// Two syntaxes are recognized: Obsidian-style wikilink embeds
// (![[img.png]] or ![[img.png|alt]]) and standard inline images
// (![alt](img.png)).
package imageref

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

// Syntax identifies which reference syntax matched.
type Syntax string

const (
	SyntaxWikilink Syntax = "wikilink"
	SyntaxInline   Syntax = "inline"
)

// Kind classifies where a referenced image lives.
type Kind string

const (
	KindLocal    Kind = "local"
	KindExternal Kind = "external"
)

// HostedMarker is the path segment present in URLs of assets already
// stored by the content service.
const HostedMarker = "/uploads/"

// Ref is one image reference found in text.
type Ref struct {
	Matched string // exact substring matched in the source
	Path    string // local vault path or URL
	Alt     string // alt text, may be empty
	Syntax  Syntax
}

var (
	wikilinkRe = regexp.MustCompile(`!\[\[([^\[\]|]+?)(?:\|([^\[\]]*))?\]\]`)
	inlineRe   = regexp.MustCompile(`!\[([^\]]*)\]\(([^()\s]+)(?:\s+"[^"]*")?\)`)

	imageExts = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".bmp": true, ".webp": true, ".svg": true,
	}

	externalImageRe = regexp.MustCompile(`(?i)^https?://\S+\.(png|jpe?g|gif|bmp|webp|svg)(\?\S*)?$`)
)

// Extract scans text for image references in both syntaxes and returns all
// matches in order of first occurrence. Duplicates are kept: a path
// referenced twice yields two entries. Only references with a recognized
// image extension are returned.
func Extract(text string) []Ref {
	type located struct {
		pos int
		ref Ref
	}
	var found []located

	for _, m := range wikilinkRe.FindAllStringSubmatchIndex(text, -1) {
		matched := text[m[0]:m[1]]
		p := strings.TrimSpace(text[m[2]:m[3]])
		alt := ""
		if m[4] >= 0 {
			alt = strings.TrimSpace(text[m[4]:m[5]])
		}
		if p == "" || !HasImageExt(p) {
			continue
		}
		found = append(found, located{pos: m[0], ref: Ref{
			Matched: matched, Path: p, Alt: alt, Syntax: SyntaxWikilink,
		}})
	}

	for _, m := range inlineRe.FindAllStringSubmatchIndex(text, -1) {
		matched := text[m[0]:m[1]]
		alt := text[m[2]:m[3]]
		p := text[m[4]:m[5]]
		if p == "" || !HasImageExt(p) {
			continue
		}
		found = append(found, located{pos: m[0], ref: Ref{
			Matched: matched, Path: p, Alt: alt, Syntax: SyntaxInline,
		}})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	out := make([]Ref, len(found))
	for i, f := range found {
		out[i] = f.ref
	}
	return out
}

// Classify reports whether path is an external URL or a local vault path.
// External means the string begins with an http or https scheme.
func Classify(p string) Kind {
	lower := strings.ToLower(p)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return KindExternal
	}
	return KindLocal
}

// HasImageExt reports whether the path's extension (ignoring any query
// string or fragment) is a recognized image extension, case-insensitively.
func HasImageExt(p string) bool {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return imageExts[strings.ToLower(path.Ext(p))]
}

// LooksLikeImage reports whether a string value is a candidate image
// reference for structural rewriting: it has an image extension, carries
// the hosted-asset marker, or is an external URL ending in an image
// extension. False positives are tolerated by the callers; false negatives
// strand references, so the check is deliberately permissive.
func LooksLikeImage(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	if HasImageExt(s) {
		return true
	}
	if strings.Contains(s, HostedMarker) {
		return true
	}
	return externalImageRe.MatchString(s)
}

// Stem returns the file name of a path or URL without its extension,
// used as last-resort alt text.
func Stem(p string) string {
	if Classify(p) == KindExternal {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

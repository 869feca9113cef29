// Package refscan extracts asset references from free-form rich text.
//
// Documents are authored in Markdown with embedded HTML, so a single
// canonical link format cannot be assumed. Extraction runs several
// independent pattern matchers and unions their results. A false positive on
// path-like text keeps an extra file alive; a false negative deletes a live
// one, so the patterns err toward matching.
package refscan

import (
	"net/url"
	"regexp"
	"strings"
)

// Prefix is the public URL path prefix references must carry.
const Prefix = "/static/"

var patterns = []*regexp.Regexp{
	// Markdown image: ![alt](/static/image.png) or ![alt](/static/image.png "title")
	regexp.MustCompile(`(?i)!\[[^\]]*\]\(\s*(/static/[^)\s]+)(?:\s+[^)]*)?\s*\)`),
	// Markdown link: [text](/static/file.pdf) or [text](/static/file.pdf "title")
	regexp.MustCompile(`(?i)\[[^\]]*\]\(\s*(/static/[^)\s]+)(?:\s+[^)]*)?\s*\)`),
	// HTML img tag: <img src="/static/image.jpg">
	regexp.MustCompile(`(?i)<img[^>]*src=["'](/static/[^"']+)["'][^>]*>`),
	// HTML anchor tag: <a href="/static/file.pdf">
	regexp.MustCompile(`(?i)<a[^>]*href=["'](/static/[^"']+)["'][^>]*>`),
}

// barePattern catches paths outside any authored markup. Matches preceded by
// a backtick are skipped below; RE2 has no lookbehind.
var barePattern = regexp.MustCompile(`(/static/[^\s<>"'` + "`" + `)]+)`)

// Extract returns the deduplicated set of asset paths referenced by text.
// Each match is trimmed of query string, fragment and trailing title text,
// then percent-decoded.
func Extract(text string) map[string]struct{} {
	refs := make(map[string]struct{})

	for _, pattern := range patterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			add(refs, m[1])
		}
	}

	for _, idx := range barePattern.FindAllStringSubmatchIndex(text, -1) {
		start := idx[2]
		if start > 0 && text[start-1] == '`' {
			continue
		}
		add(refs, text[idx[2]:idx[3]])
	}

	return refs
}

func add(refs map[string]struct{}, match string) {
	path := clean(match)
	if path != "" && strings.HasPrefix(path, Prefix) {
		refs[path] = struct{}{}
	}
}

// clean strips query string, fragment and any quoted title remnant, then
// percent-decodes. Undecodable input is kept raw rather than dropped.
func clean(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path = path[:i]
	}
	if i := strings.IndexByte(path, '"'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)

	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	return path
}

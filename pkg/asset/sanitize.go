package asset

import (
	"strings"
)

// Characters replaced with underscores in filenames: whitespace plus shell-
// and URL-hostile punctuation. Path separators are handled separately so the
// function never crosses directory boundaries.
const disallowedChars = " \t\n\r()[]{}<>,;:!?@#$%^&*=+|~`\"'\\"

// placeholderName substitutes for filenames that sanitize down to nothing.
const placeholderName = "unnamed"

// SanitizeFilename maps an arbitrary user-supplied filename to a safe
// character set. The function is pure and idempotent. When the input contains
// path separators, only the leaf component is sanitized; the directory portion
// is preserved verbatim.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)

	dir := ""
	leaf := name
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		dir, leaf = name[:i+1], name[i+1:]
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range leaf {
		if r == '_' || strings.ContainsRune(disallowedChars, r) {
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		prevUnderscore = false
	}

	leaf = strings.Trim(b.String(), "_")
	if leaf == "" {
		leaf = placeholderName
	}

	return dir + leaf
}

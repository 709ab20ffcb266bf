// Package slug derives URL-safe identifiers from post titles.
package slug

import "strings"

// Make converts a title into a lowercase, hyphen-separated slug:
// characters outside [a-z0-9], space, and hyphen are dropped, whitespace
// runs become a single hyphen, and hyphen runs collapse. Make is
// idempotent, so a slug fed back in comes out unchanged. Two distinct
// titles may collapse to the same slug; the duplicate check at creation
// treats that as a conflict.
func Make(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteByte(' ')
		}
	}
	s = b.String()

	// Whitespace runs to a single hyphen, then hyphen runs to one hyphen.
	s = strings.Join(strings.Fields(s), "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

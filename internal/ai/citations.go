package ai

import "regexp"

var citationRe = regexp.MustCompile(`Source (\d+)`)

// RewriteCitations rewrites "Source N" references into bracketed "[N]"
// markers. Applied only to the persisted answer of search-augmented turns;
// the bytes streamed to the client are never modified.
func RewriteCitations(answer string) string {
	return citationRe.ReplaceAllString(answer, "[$1]")
}

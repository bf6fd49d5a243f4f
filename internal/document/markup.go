package document

import (
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	blockBoundary = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|tr|li|table|h[1-6])\s*>`)
	stripPolicy   = bluemonday.StrictPolicy()
)

// ToText reduces markup to plain text. Block boundaries become newlines so
// line-oriented patterns still see one field per line; every other tag is
// dropped and entities are unescaped.
func ToText(markup string) string {
	s := blockBoundary.ReplaceAllString(markup, "\n")
	s = stripPolicy.Sanitize(s)
	return html.UnescapeString(s)
}

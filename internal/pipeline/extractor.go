package pipeline

import (
	"regexp"
	"strings"

	"github.com/Lllllllleong/labslipflow/internal/document"
)

// Matcher pulls one field value out of a section's text.
type Matcher interface {
	Match(text string) (string, bool)
}

// labelMatcher finds a label and captures the value after it.
type labelMatcher struct {
	re *regexp.Regexp
}

// Match returns the first non-empty capture group.
func (m labelMatcher) Match(text string) (string, bool) {
	sub := m.re.FindStringSubmatch(text)
	if sub == nil {
		return "", false
	}
	for _, group := range sub[1:] {
		if v := strings.TrimSpace(group); v != "" {
			return v, true
		}
	}
	return "", false
}

// A label must begin at a letter boundary and be followed by a colon, a
// dash or whitespace; "ten" inside "Content" does not count. A code value
// may also follow its label directly ("CodeXN001") when it starts with an
// upper-case letter or a digit, so "Ideal" is not read as id "eal".
const (
	labelStart = `(?i)(?:^|[^\p{L}\p{N}])`
	labelEnd   = `(?:\s*[:\-]|\s)\s*`
	restOfLine = `([^\n\r]+)`
	oneToken   = `(\S+)`
	gluedToken = `((?-i:[\p{Lu}\p{N}])\S*)`
)

func label(alternatives, capture string) Matcher {
	return labelMatcher{re: regexp.MustCompile(labelStart + `(?:` + alternatives + `)` + labelEnd + capture)}
}

func codeLabel(alternatives string) Matcher {
	return labelMatcher{re: regexp.MustCompile(labelStart + `(?:` + alternatives + `)(?:` + labelEnd + oneToken + `|` + gluedToken + `)`)}
}

var (
	defaultNameMatchers = []Matcher{
		label(`họ\s*và\s*tên|ho\s*va\s*ten`, restOfLine),
		label(`tên|ten`, restOfLine),
		label(`full\s*name|fullname`, restOfLine),
	}
	defaultCodeMatchers = []Matcher{
		codeLabel(`code|mã\s*số|ma\s*so`),
		codeLabel(`id|số\s*thứ\s*tự|so\s*thu\s*tu`),
	}
)

// Extractor finds a (full name, code) pair in a section.
type Extractor struct {
	Names []Matcher
	Codes []Matcher
}

// NewExtractor returns an Extractor with the Vietnamese/English label sets.
func NewExtractor() *Extractor {
	return &Extractor{Names: defaultNameMatchers, Codes: defaultCodeMatchers}
}

// Extract reports ok only when both a name and a code were found. Markup in
// content is reduced to text first.
func (e *Extractor) Extract(content string) (fullName, code string, ok bool) {
	text := document.ToText(content)
	fullName, nameOK := first(e.Names, text)
	code, codeOK := first(e.Codes, text)
	if !nameOK || !codeOK {
		return "", "", false
	}
	return fullName, code, true
}

func first(matchers []Matcher, text string) (string, bool) {
	for _, m := range matchers {
		if v, ok := m.Match(text); ok {
			return v, true
		}
	}
	return "", false
}

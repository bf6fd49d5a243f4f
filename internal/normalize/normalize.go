// Package normalize turns Vietnamese personal names and record codes into
// filename-safe tokens.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	slugDisallowed = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRun  = regexp.MustCompile(`_+`)
	codeDisallowed = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// FoldDiacritics replaces each accented Vietnamese letter with its base
// Latin letter. Every other rune, including decomposed combining marks, is
// returned unchanged.
func FoldDiacritics(text string) string {
	return strings.Map(func(r rune) rune {
		if base, ok := accentTable[r]; ok {
			return base
		}
		return r
	}, text)
}

// Slugify builds a lowercase [a-z0-9_] token from a full name. The result
// never starts or ends with an underscore and never contains two in a row.
// It may be empty; callers decide how to name such records.
func Slugify(fullName string) string {
	// Word output often carries decomposed sequences; compose them so the
	// accent table sees the precomposed letters.
	s := FoldDiacritics(norm.NFC.String(fullName))
	s = strings.ToLower(s)
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = slugDisallowed.ReplaceAllString(s, "")
	s = underscoreRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// CleanCode strips every character outside [a-zA-Z0-9] from a record code.
func CleanCode(code string) string {
	return codeDisallowed.ReplaceAllString(code, "")
}

// BuildFilename returns "{cleanCode}_{slug}.{ext}". Two records with the
// same code and name produce the same filename.
func BuildFilename(code, fullName, ext string) string {
	return CleanCode(code) + "_" + Slugify(fullName) + "." + ext
}

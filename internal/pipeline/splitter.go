package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Section is one candidate record as isolated by the splitter. Position is
// 1-based and follows document order.
type Section struct {
	Position int
	Content  string
}

// Strategy names the splitting tier that produced a set of sections.
type Strategy string

const (
	StrategyNone      Strategy = "none"
	StrategyPageBreak Strategy = "page-break"
	StrategyNameLabel Strategy = "name-label"
	StrategyChunk     Strategy = "fixed-chunk"
)

const (
	// Fragments whose trimmed length does not exceed this are noise.
	minSectionRunes = 100
	fallbackChunks  = 5
)

var (
	pageBreakPattern = regexp.MustCompile(`(?i)<w:br\s+w:type="page"\s*/?>|<[a-z][^>]*page-break[^>]*>`)
	nameLabelPattern = regexp.MustCompile(`(?i)(?:họ\s*và\s*tên|ho\s*va\s*ten|full\s*name|fullname)\s*[:\-]`)
)

// Split divides a flattened document into candidate sections. Page breaks
// are tried first, then "full name" labels, then fixed-size chunking. The
// first tier that cuts the text into more than one piece wins.
func Split(text string) ([]Section, Strategy) {
	if pieces := pageBreakPattern.Split(text, -1); len(pieces) > 1 {
		return number(pieces), StrategyPageBreak
	}
	if pieces := splitBeforeLabels(text); len(pieces) > 1 {
		return number(pieces), StrategyNameLabel
	}
	if pieces := chunk(text, fallbackChunks); len(pieces) > 0 {
		return number(pieces), StrategyChunk
	}
	return nil, StrategyNone
}

// splitBeforeLabels cuts immediately before every name label so each label
// stays at the head of the section it introduces.
func splitBeforeLabels(text string) []string {
	locs := nameLabelPattern.FindAllStringIndex(text, -1)
	var pieces []string
	prev := 0
	for _, loc := range locs {
		if loc[0] == prev {
			continue
		}
		pieces = append(pieces, text[prev:loc[0]])
		prev = loc[0]
	}
	return append(pieces, text[prev:])
}

// chunk cuts text into at most n pieces of ceil(len/n) runes each, with no
// regard for word or tag boundaries.
func chunk(text string, n int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	size := (len(runes) + n - 1) / n
	pieces := make([]string, 0, n)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		pieces = append(pieces, string(runes[i:end]))
	}
	return pieces
}

func number(pieces []string) []Section {
	var sections []Section
	for _, p := range pieces {
		if utf8.RuneCountInString(strings.TrimSpace(p)) <= minSectionRunes {
			continue
		}
		sections = append(sections, Section{Position: len(sections) + 1, Content: p})
	}
	return sections
}

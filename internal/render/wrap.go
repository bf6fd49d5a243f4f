package render

import (
	"strings"
	"unicode/utf8"
)

// WrapText breaks text into lines of at most width runes, splitting on
// spaces. Existing line breaks are kept and blank lines are dropped. A word
// longer than width gets a line to itself.
func WrapText(text string, width int) []string {
	var lines []string
	for _, src := range strings.Split(text, "\n") {
		var cur strings.Builder
		curLen := 0
		for _, word := range strings.Fields(src) {
			n := utf8.RuneCountInString(word)
			switch {
			case curLen == 0:
				cur.WriteString(word)
				curLen = n
			case curLen+1+n <= width:
				cur.WriteByte(' ')
				cur.WriteString(word)
				curLen += 1 + n
			default:
				lines = append(lines, cur.String())
				cur.Reset()
				cur.WriteString(word)
				curLen = n
			}
		}
		if curLen > 0 {
			lines = append(lines, cur.String())
		}
	}
	return lines
}

package normalize

import (
	"regexp"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFoldDiacritics(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Nguyễn Văn A", "Nguyen Van A"},
		{"Trần Thị Bích Ngọc", "Tran Thi Bich Ngoc"},
		{"ĐẶNG ĐỨC", "DANG DUC"},
		{"Lưu Hương Ơn", "Luu Huong On"},
		{"plain ascii 123", "plain ascii 123"},
		{"", ""},
		{"ñ ü ß 漢", "ñ ü ß 漢"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FoldDiacritics(tt.in), "FoldDiacritics(%q)", tt.in)
	}
}

func TestFoldDiacriticsTable(t *testing.T) {
	for accented, base := range accentTable {
		got := FoldDiacritics(string(accented))
		assert.Equal(t, string(base), got, "fold %q", accented)
		assert.Less(t, base, rune(utf8.RuneSelf), "base of %q must be ASCII", accented)
	}
}

func TestFoldDiacriticsIdempotent(t *testing.T) {
	inputs := []string{
		"Họ và tên: Nguyễn Văn A",
		"ĐỖ THỊ HỒNG NHUNG",
		"x́y", // decomposed acute is outside the table
		"mixed ñ and ệ",
	}
	for _, in := range inputs {
		once := FoldDiacritics(in)
		assert.Equal(t, once, FoldDiacritics(once), "fold(fold(%q))", in)
	}
}

var slugShape = regexp.MustCompile(`^[a-z0-9_]*$`)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Nguyễn Văn A", "nguyen_van_a"},
		{"  Trần   Thị\tBích  ", "tran_thi_bich"},
		{"Lê-Hoàng (Minh)", "lehoang_minh"},
		{"A _ B", "a_b"},
		{"", ""},
		{"!!!", ""},
		{"漢字", ""},
		{"Nguyễn", "nguyen"}, // decomposed ễ
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestSlugifyShape(t *testing.T) {
	inputs := []string{
		"", " ", "___", "_a_", "Ắ Ằ Ẳ", "a__b", "@@ x @@", "Đ đ Đ",
		"tab\tand\nnewline", "__Phạm__ Văn__", "1 2 3", "é́",
	}
	for _, in := range inputs {
		s := Slugify(in)
		assert.Regexp(t, slugShape, s, "Slugify(%q)", in)
		assert.NotContains(t, s, "__", "Slugify(%q)", in)
		if s != "" {
			assert.NotEqual(t, byte('_'), s[0], "Slugify(%q) leading underscore", in)
			assert.NotEqual(t, byte('_'), s[len(s)-1], "Slugify(%q) trailing underscore", in)
		}
	}
}

func TestBuildFilename(t *testing.T) {
	assert.Equal(t, "XN001_nguyen_van_a.docx", BuildFilename("XN001", "Nguyễn Văn A", "docx"))
	assert.Equal(t, "XN001_nguyen_van_a.pdf", BuildFilename("XN-001/", "Nguyễn Văn A", "pdf"))
	assert.Equal(t, "_.pdf", BuildFilename("--", "!!", "pdf"))
}

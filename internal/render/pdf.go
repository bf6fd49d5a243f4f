package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"

	"github.com/Lllllllleong/labslipflow/internal/document"
	"github.com/Lllllllleong/labslipflow/internal/normalize"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

// Page layout in points, A4 portrait, origin lower left.
const (
	pageHeight  = 842
	marginLeft  = 50
	titleY      = pageHeight - 50
	nameY       = pageHeight - 80
	codeY       = pageHeight - 100
	bodyTopY    = pageHeight - 140
	bodyLeading = 15

	pdfFont     = "Helvetica"
	titlePt     = 18
	headerPt    = 12
	bodyPt      = 10
	wrapColumns = 70
	maxLines    = 30
	maxChars    = 1000
)

var disableConfigDir sync.Once

// PDFWriter renders a single fixed-layout page per record. The body is a
// truncated, re-wrapped plain-text excerpt of the section, not a reflow of
// the original layout.
type PDFWriter struct{}

func NewPDFWriter() *PDFWriter {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFWriter{}
}

func (*PDFWriter) Format() Format { return FormatPDF }

func (*PDFWriter) Write(rec pipeline.Record, path string) error {
	layout, err := json.Marshal(pageLayout(rec))
	if err != nil {
		return fmt.Errorf("marshal page description: %w", err)
	}

	// api.Create mutates its configuration, so every page gets its own.
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(layout), &buf, conf); err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// BodyLines returns the wrapped excerpt printed under the header.
func BodyLines(content string) []string {
	text := []rune(pdfSafe(document.ToText(content)))
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	lines := WrapText(string(text), wrapColumns)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

// pdfSafe maps text onto what the standard Helvetica encoding can show:
// Vietnamese letters lose their diacritics and anything past Latin-1 is
// dropped.
func pdfSafe(s string) string {
	s = normalize.FoldDiacritics(norm.NFC.String(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case r < 0x20, r > 0xff:
			return -1
		}
		return r
	}, s)
}

// JSON page description consumed by pdfcpu's create command.
type (
	pdfDoc struct {
		Paper  string             `json:"paper"`
		Origin string             `json:"origin"`
		Pages  map[string]pdfPage `json:"pages"`
	}
	pdfPage struct {
		Content pdfContent `json:"content"`
	}
	pdfContent struct {
		Text []pdfText `json:"text"`
	}
	pdfText struct {
		Value string     `json:"value"`
		Pos   [2]float64 `json:"pos"`
		Font  pdfFontRef `json:"font"`
	}
	pdfFontRef struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
)

func pageLayout(rec pipeline.Record) pdfDoc {
	text := func(value string, y float64, size int) pdfText {
		return pdfText{
			Value: value,
			Pos:   [2]float64{marginLeft, y},
			Font:  pdfFontRef{Name: pdfFont, Size: size},
		}
	}

	boxes := []pdfText{
		text(pdfSafe(slipTitle), titleY, titlePt),
		text(pdfSafe(nameLabel+rec.FullName), nameY, headerPt),
		text(pdfSafe(codeLabel+rec.Code), codeY, headerPt),
	}
	for i, line := range BodyLines(rec.Content) {
		boxes = append(boxes, text(line, float64(bodyTopY-i*bodyLeading), bodyPt))
	}

	return pdfDoc{
		Paper:  "A4P",
		Origin: "LowerLeft",
		Pages:  map[string]pdfPage{"1": {Content: pdfContent{Text: boxes}}},
	}
}

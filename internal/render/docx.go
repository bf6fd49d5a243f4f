package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/Lllllllleong/labslipflow/internal/document"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

const (
	slipTitle  = "Kết quả xét nghiệm"
	nameLabel  = "Họ và tên: "
	codeLabel  = "Mã số: "
	titleSize  = "32" // half-points
	headerSize = "24"
)

// DocxWriter writes a self-contained Word document: a header block with the
// record's name and code followed by the section text, one paragraph per
// line.
type DocxWriter struct{}

func (DocxWriter) Format() Format { return FormatDocx }

func (DocxWriter) Write(rec pipeline.Record, path string) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().Justification("center").AddText(slipTitle).Bold().Size(titleSize)
	header := doc.AddParagraph()
	header.AddText(nameLabel).Bold().Size(headerSize)
	header.AddText(rec.FullName).Size(headerSize)
	header = doc.AddParagraph()
	header.AddText(codeLabel).Bold().Size(headerSize)
	header.AddText(rec.Code).Size(headerSize)
	doc.AddParagraph()

	for _, line := range strings.Split(document.ToText(rec.Content), "\n") {
		line = strings.TrimRight(line, " \r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		p := doc.AddParagraph()
		cells := strings.Split(line, "\t")
		for i, cell := range cells {
			r := p.AddText(cell)
			if i < len(cells)-1 {
				r.AddTab()
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write docx: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}

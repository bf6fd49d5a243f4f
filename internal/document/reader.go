// Package document flattens an uploaded result-slip document into a single
// markup-tolerant string for the section splitter.
//
// Word documents are read from memory and their body is reduced to one line
// per paragraph. Explicit page breaks survive as PageBreakMarker lines.
package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"
)

// PageBreakMarker is the WordprocessingML page-break element, emitted on its
// own line wherever the source document forces a new page.
const PageBreakMarker = `<w:br w:type="page"/>`

var (
	ErrEmpty       = errors.New("document is empty")
	ErrUnsupported = errors.New("unsupported document format")
)

// Kind identifies an input format.
type Kind string

const (
	KindDocx Kind = "docx"
	KindHTML Kind = "html"
	KindText Kind = "txt"
)

// Detect returns the input kind from the file extension, sniffing the
// content when the name carries none.
func Detect(name string, raw []byte) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return KindDocx, nil
	case ".html", ".htm":
		return KindHTML, nil
	case ".txt", ".text":
		return KindText, nil
	case "":
		if bytes.HasPrefix(raw, []byte("PK\x03\x04")) {
			return KindDocx, nil
		}
		if utf8.Valid(raw) {
			return KindText, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, name)
}

// Read flattens raw into the text the splitter works on.
func Read(raw []byte, name string) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmpty
	}
	kind, err := Detect(name, raw)
	if err != nil {
		return "", err
	}

	switch kind {
	case KindDocx:
		return readDocx(raw)
	default:
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%s input is not valid UTF-8", kind)
		}
		return string(raw), nil
	}
}

func readDocx(raw []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	text, err := flattenBody(r.Editable().GetContent())
	if err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}
	return text, nil
}

// flattener walks WordprocessingML tokens. Table cells collect their
// paragraphs and each row is written as one tab-separated line, so a label
// cell and its value cell read like "label:<TAB>value".
type flattener struct {
	out  strings.Builder
	para strings.Builder

	inRun, inText bool
	inSectPr      bool
	breakBefore   bool
	breakAfter    bool
	rows          [][]string
	cells         []*strings.Builder
}

func flattenBody(content string) (string, error) {
	f := &flattener{}
	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			f.start(t)
		case xml.EndElement:
			f.end(t)
		case xml.CharData:
			if f.inText {
				f.para.Write(t)
			}
		}
	}
	return f.out.String(), nil
}

func (f *flattener) start(t xml.StartElement) {
	switch t.Name.Local {
	case "p":
		f.para.Reset()
		f.breakBefore, f.breakAfter = false, false
	case "r":
		f.inRun = true
	case "t":
		f.inText = f.inRun
	case "tab":
		if f.inRun {
			f.para.WriteByte('\t')
		}
	case "br", "cr":
		if !f.inRun {
			return
		}
		if attr(t, "type") == "page" && len(f.cells) == 0 {
			f.flushPara()
			f.line(PageBreakMarker)
			return
		}
		f.para.WriteByte('\n')
	case "pageBreakBefore":
		if v := attr(t, "val"); v != "false" && v != "0" && v != "off" {
			f.breakBefore = true
		}
	case "sectPr":
		// Only a paragraph-level sectPr closes a section; the body-level one
		// sits after the last paragraph.
		f.inSectPr = true
		f.breakAfter = true
	case "type":
		if f.inSectPr && attr(t, "val") == "continuous" {
			f.breakAfter = false
		}
	case "tr":
		f.rows = append(f.rows, nil)
	case "tc":
		f.cells = append(f.cells, &strings.Builder{})
	}
}

func (f *flattener) end(t xml.EndElement) {
	switch t.Name.Local {
	case "p":
		if len(f.cells) > 0 {
			cell := f.cells[len(f.cells)-1]
			if s := strings.TrimSpace(f.para.String()); s != "" {
				if cell.Len() > 0 {
					cell.WriteByte(' ')
				}
				cell.WriteString(s)
			}
			f.para.Reset()
			return
		}
		if f.breakBefore && f.out.Len() > 0 {
			f.line(PageBreakMarker)
		}
		f.flushPara()
		if f.breakAfter {
			f.line(PageBreakMarker)
		}
		f.breakBefore, f.breakAfter = false, false
	case "r":
		f.inRun = false
	case "t":
		f.inText = false
	case "sectPr":
		f.inSectPr = false
	case "tc":
		if n := len(f.cells); n > 0 {
			cell := f.cells[n-1].String()
			f.cells = f.cells[:n-1]
			if r := len(f.rows); r > 0 {
				f.rows[r-1] = append(f.rows[r-1], cell)
			}
		}
	case "tr":
		if n := len(f.rows); n > 0 {
			row := strings.Join(f.rows[n-1], "\t")
			f.rows = f.rows[:n-1]
			if len(f.cells) > 0 {
				// Nested table: fold the row into the enclosing cell.
				cell := f.cells[len(f.cells)-1]
				if cell.Len() > 0 {
					cell.WriteByte(' ')
				}
				cell.WriteString(row)
				return
			}
			if strings.TrimSpace(row) != "" {
				f.line(row)
			}
		}
	}
}

func (f *flattener) flushPara() {
	s := strings.TrimSpace(f.para.String())
	f.para.Reset()
	if s != "" {
		f.line(s)
	}
}

func (f *flattener) line(s string) {
	f.out.WriteString(s)
	f.out.WriteByte('\n')
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

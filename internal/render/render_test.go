package render

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

func testRecords() []pipeline.Record {
	body := "<p>Họ và tên: Nguyễn Văn A</p><p>Code: XN001</p><p>Glucose\t5.4 mmol/L</p>"
	return []pipeline.Record{
		{FullName: "Nguyễn Văn A", Code: "XN001", Content: body, Position: 1},
		{FullName: "Trần Thị B", Code: "XN002", Content: strings.Repeat("Kết quả bình thường. ", 200), Position: 2},
		{FullName: "Lê Văn C", Code: "XN003", Content: "short", Position: 3},
	}
}

func TestRenderAll(t *testing.T) {
	out := t.TempDir()
	files, err := New(nil).RenderAll(context.Background(), testRecords(), out)
	require.NoError(t, err)
	require.Len(t, files, 6)

	want := []string{
		"XN001_nguyen_van_a.docx", "XN001_nguyen_van_a.pdf",
		"XN002_tran_thi_b.docx", "XN002_tran_thi_b.pdf",
		"XN003_le_van_c.docx", "XN003_le_van_c.pdf",
	}
	for i, f := range files {
		assert.Equal(t, want[i], f.Filename)
		info, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), f.SizeBytes)
		assert.Positive(t, f.SizeBytes)
		if f.Format == FormatPDF {
			assert.Equal(t, filepath.Join(out, "pdf", f.Filename), f.Path)
		} else {
			assert.Equal(t, filepath.Join(out, f.Filename), f.Path)
		}
	}
}

func TestDocxWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")
	rec := testRecords()[0]
	require.NoError(t, DocxWriter{}.Write(rec, path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var body string
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		body = string(b)
	}
	require.NotEmpty(t, body, "word/document.xml missing")
	assert.Contains(t, body, "Nguyễn Văn A")
	assert.Contains(t, body, "XN001")
	assert.Contains(t, body, "Glucose")
	assert.Contains(t, body, slipTitle)
}

func TestPDFWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, NewPDFWriter().Write(testRecords()[1], path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "%PDF"))

	pages, err := api.PageCountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

type failingWriter struct{ fail map[int]bool }

func (failingWriter) Format() Format { return "txt" }

func (w failingWriter) Write(rec pipeline.Record, path string) error {
	if w.fail[rec.Position] {
		return errors.New("disk full")
	}
	return os.WriteFile(path, []byte(rec.FullName), 0o644)
}

func TestRenderAllSkipsFailures(t *testing.T) {
	out := t.TempDir()
	r := NewWithWriters(nil, failingWriter{fail: map[int]bool{2: true}}, DocxWriter{})

	files, err := r.RenderAll(context.Background(), testRecords(), out)
	require.NoError(t, err)

	var txt, docx int
	for _, f := range files {
		switch f.Format {
		case "txt":
			txt++
			assert.NotEqual(t, 2, f.Position)
		case FormatDocx:
			docx++
			assert.Equal(t, filepath.Join(out, "docx", f.Filename), f.Path)
		}
	}
	assert.Equal(t, 2, txt)
	assert.Equal(t, 3, docx, "a failure in one format must not affect the other")
}

func TestRenderAllCollisions(t *testing.T) {
	recs := []pipeline.Record{
		{FullName: "Nguyễn Văn A", Code: "XN001", Content: "x", Position: 1},
		{FullName: "Nguyen Van A", Code: "XN-001", Content: "y", Position: 2},
	}
	files, err := NewWithWriters(nil, failingWriter{}).RenderAll(context.Background(), recs, t.TempDir())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "XN001_nguyen_van_a.txt", files[0].Filename)
	assert.Equal(t, "XN001_nguyen_van_a_2.txt", files[1].Filename)
}

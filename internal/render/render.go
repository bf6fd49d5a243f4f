// Package render writes one docx and one pdf file per extracted record.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

// Format is an output file type; its value doubles as the file extension.
type Format string

const (
	FormatDocx Format = "docx"
	FormatPDF  Format = "pdf"
)

// ContentType is the MIME type stored with uploaded files.
func (f Format) ContentType() string {
	switch f {
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// RenderedFile describes one written output.
type RenderedFile struct {
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	Format    Format `json:"format"`
	Position  int    `json:"position"`
}

// Writer serializes a record to a single file at path.
type Writer interface {
	Format() Format
	Write(rec pipeline.Record, path string) error
}

// Renderer fans each record out to its writers. The first writer's files go
// directly under the output directory, every other writer gets a
// subdirectory named after its format.
type Renderer struct {
	writers []Writer
	logger  *slog.Logger
}

// New returns a Renderer for the docx and pdf formats.
func New(logger *slog.Logger) *Renderer {
	return NewWithWriters(logger, DocxWriter{}, NewPDFWriter())
}

// NewWithWriters returns a Renderer over an explicit writer list.
func NewWithWriters(logger *slog.Logger, writers ...Writer) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{writers: writers, logger: logger}
}

// RenderAll writes every record in every format under outDir. A failure for
// one record/format is logged and skipped. The error is non-nil only when an
// output directory cannot be created or ctx ends; the files written so far
// are returned either way.
func (r *Renderer) RenderAll(ctx context.Context, records []pipeline.Record, outDir string) ([]RenderedFile, error) {
	dirs := make([]string, len(r.writers))
	namers := make([]*Namer, len(r.writers))
	for i, w := range r.writers {
		dirs[i] = outDir
		if i > 0 {
			dirs[i] = filepath.Join(outDir, string(w.Format()))
		}
		if err := os.MkdirAll(dirs[i], 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dirs[i], err)
		}
		namers[i] = NewNamer(r.logger)
	}

	var files []RenderedFile
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		for i, w := range r.writers {
			filename := namers[i].Name(rec, w.Format())
			path := filepath.Join(dirs[i], filename)
			logCtx := r.logger.With("position", rec.Position, "format", w.Format(), "filename", filename)

			if err := w.Write(rec, path); err != nil {
				logCtx.Error("Failed to render file", "error", err)
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				logCtx.Error("Rendered file cannot be measured", "error", err)
				continue
			}
			files = append(files, RenderedFile{
				Filename:  filename,
				Path:      path,
				SizeBytes: info.Size(),
				Format:    w.Format(),
				Position:  rec.Position,
			})
		}
	}
	return files, nil
}

// Package pipeline splits a flattened result-slip document into sections
// and extracts one (full name, code) record per section.
//
// A run moves through Starting, Splitting, Extracting, Finalizing and Done,
// or ends in Failed when the input cannot be read. Per-section misses are
// counted, never returned as errors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrInput marks a run that failed because the source document could not
// be read.
var ErrInput = errors.New("unreadable input document")

// Stage is a pipeline run state.
type Stage string

const (
	StageStarting   Stage = "starting"
	StageSplitting  Stage = "splitting"
	StageExtracting Stage = "extracting"
	StageFinalizing Stage = "finalizing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Progress is a point-in-time snapshot of a run.
type Progress struct {
	Stage             Stage  `json:"stage"`
	TotalSections     int    `json:"totalSections"`
	ProcessedSections int    `json:"processedSections"`
	ExtractedCount    int    `json:"extractedCount"`
	ErrorCount        int    `json:"errorCount"`
	StatusMessage     string `json:"statusMessage"`
}

// ProgressFunc receives snapshots in order. It runs on the pipeline's
// goroutine; wrap slow consumers with Latest.
type ProgressFunc func(Progress)

// Record is the result of a successful extraction.
type Record struct {
	FullName string `json:"fullName"`
	Code     string `json:"code"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// Outcome is what a finished run hands to the renderer.
type Outcome struct {
	Records       []Record
	ErrorCount    int
	TotalSections int
	Strategy      Strategy
}

// Reader flattens raw document bytes; document.Read satisfies it.
type Reader func(raw []byte, name string) (string, error)

// Processor runs the split/extract pipeline over one document at a time.
// It holds no per-run state and may be shared between goroutines.
type Processor struct {
	read      Reader
	extractor *Extractor
	logger    *slog.Logger
}

// NewProcessor builds a Processor. A nil logger means slog.Default().
func NewProcessor(read Reader, extractor *Extractor, logger *slog.Logger) *Processor {
	if extractor == nil {
		extractor = NewExtractor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{read: read, extractor: extractor, logger: logger}
}

// Process reads raw, splits it, and extracts a record from every section,
// reporting progress before each section and once after the last.
func (p *Processor) Process(ctx context.Context, raw []byte, name string, progress ProgressFunc) (*Outcome, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	snap := Progress{Stage: StageStarting, StatusMessage: "starting document processing"}
	progress(snap)

	snap.Stage, snap.StatusMessage = StageSplitting, "splitting document into sections"
	progress(snap)

	text, err := p.read(raw, name)
	if err != nil {
		snap.Stage, snap.StatusMessage = StageFailed, fmt.Sprintf("failed to read document: %v", err)
		progress(snap)
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}

	sections, strategy := Split(text)
	logCtx := p.logger.With("document", name, "strategy", strategy, "sectionCount", len(sections))
	logCtx.Info("Document split into sections.")

	out := &Outcome{TotalSections: len(sections), Strategy: strategy}
	snap.TotalSections = len(sections)

	for i, section := range sections {
		if err := ctx.Err(); err != nil {
			snap.Stage, snap.StatusMessage = StageFailed, "processing cancelled"
			progress(snap)
			return nil, fmt.Errorf("processing stopped before section %d: %w", i+1, err)
		}

		snap.Stage = StageExtracting
		snap.ProcessedSections = i
		snap.ExtractedCount = len(out.Records)
		snap.ErrorCount = out.ErrorCount
		snap.StatusMessage = fmt.Sprintf("processing section %d/%d", i+1, len(sections))
		progress(snap)

		rec, err := p.extract(section)
		switch {
		case err != nil:
			logCtx.Error("Section extraction failed", "position", section.Position, "error", err)
			out.ErrorCount++
		case rec == nil:
			logCtx.Warn("No name/code pair found in section.", "position", section.Position)
			out.ErrorCount++
		default:
			out.Records = append(out.Records, *rec)
		}
	}

	snap.ProcessedSections = len(sections)
	snap.ExtractedCount = len(out.Records)
	snap.ErrorCount = out.ErrorCount
	snap.Stage, snap.StatusMessage = StageFinalizing, "finalizing results"
	progress(snap)

	snap.Stage, snap.StatusMessage = StageDone, "document processing complete"
	progress(snap)

	logCtx.Info("Extraction complete.", "extractedCount", len(out.Records), "errorCount", out.ErrorCount)
	return out, nil
}

// extract isolates one section: a panic in a matcher counts against this
// section only.
func (p *Processor) extract(s Section) (rec *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("section %d: panic: %v", s.Position, r)
		}
	}()
	fullName, code, ok := p.extractor.Extract(s.Content)
	if !ok {
		return nil, nil
	}
	return &Record{FullName: fullName, Code: code, Content: s.Content, Position: s.Position}, nil
}

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/labslipflow/internal/document"
	"github.com/Lllllllleong/labslipflow/internal/gcp"
	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
	"github.com/Lllllllleong/labslipflow/internal/render"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

const uploadConcurrency = 10

type SlipSplitterConfig struct {
	ProjectID        string
	ResultsBucket    string
	CollectionPrefix string
	WorkflowID       string
	WorkflowLocation string
}

type SlipSplitterFunction struct {
	blobs     blobStore
	store     store.Store
	workflows workflowStarter
	processor *pipeline.Processor
	renderer  *render.Renderer
	config    SlipSplitterConfig
}

// GCSEvent is the data payload of a storage object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewSlipSplitter(ctx context.Context) (*SlipSplitterFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	prefix, err := gcp.CollectionPrefix()
	if err != nil {
		return nil, err
	}

	config := SlipSplitterConfig{
		ProjectID:        projectID,
		ResultsBucket:    gcp.GetEnv("RESULTS_BUCKET", ""),
		CollectionPrefix: prefix,
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
	}
	if config.ResultsBucket == "" {
		return nil, fmt.Errorf("RESULTS_BUCKET environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := &SlipSplitterFunction{
		blobs:     gcp.NewBlobs(storageClient),
		store:     store.NewFirestore(firestoreClient, config.CollectionPrefix),
		processor: pipeline.NewProcessor(document.Read, nil, nil),
		renderer:  render.New(nil),
		config:    config,
	}
	if config.WorkflowID != "" {
		wf, err := gcp.NewWorkflows(ctx, config.ProjectID, config.WorkflowLocation, config.WorkflowID)
		if err != nil {
			return nil, err
		}
		f.workflows = wf
	}
	slog.Info("Slip splitter initialized.", "resultsBucket", config.ResultsBucket, "workflowId", config.WorkflowID)
	return f, nil
}

// acceptedUpload reports whether name has an extension the reader handles.
func acceptedUpload(name string) bool {
	if filepath.Ext(name) == "" {
		return false
	}
	_, err := document.Detect(name, nil)
	return err == nil
}

func (f *SlipSplitterFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !acceptedUpload(e.Name) {
		logCtx.Info("Ignoring object with unsupported extension.")
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	tempDir, err := os.MkdirTemp("", "slip-splitter-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source"+strings.ToLower(filepath.Ext(e.Name)))
	if err := f.blobs.Download(ctx, e.Bucket, e.Name, sourcePath); err != nil {
		logCtx.Error("Failed to download source document", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(sourcePath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	existing, err := f.store.FindJobByHash(ctx, fileHash)
	switch {
	case err == nil:
		logCtx.Info("Duplicate file detected. Skipping.", "existingJobId", existing.ID)
		return nil
	case !errors.Is(err, store.ErrNotFound):
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}

	jobID, err := f.store.CreateJob(ctx, models.Job{
		FileHash:         fileHash,
		OriginalFilename: e.Name,
		Status:           models.StatusPending,
	})
	if err != nil {
		logCtx.Error("Failed to create job", "error", err)
		return err
	}
	logCtx = logCtx.With("jobId", jobID)
	logCtx.Info("Created job.")

	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return f.handleError(ctx, logCtx, jobID, "failed to read downloaded document", err)
	}

	outcome, err := f.runPipeline(ctx, logCtx, jobID, raw, e.Name)
	if err != nil {
		return err
	}

	files, err := f.renderer.RenderAll(ctx, outcome.Records, filepath.Join(tempDir, "out"))
	if err != nil {
		return f.handleError(ctx, logCtx, jobID, "failed to render results", err)
	}

	results, failedUploads, err := f.uploadResults(ctx, logCtx, jobID, outcome.Records, files)
	if err != nil {
		return err
	}
	for _, r := range results {
		if _, err := f.store.AddResult(ctx, r); err != nil {
			return f.handleError(ctx, logCtx, jobID, "failed to record result", err)
		}
	}

	message := fmt.Sprintf("extracted %d of %d sections into %d files",
		len(outcome.Records), outcome.TotalSections, len(results))
	if failedUploads > 0 {
		message += fmt.Sprintf(", %d files failed to upload", failedUploads)
	}
	final := pipeline.Progress{
		Stage:             pipeline.StageDone,
		TotalSections:     outcome.TotalSections,
		ProcessedSections: outcome.TotalSections,
		ExtractedCount:    len(outcome.Records),
		ErrorCount:        outcome.ErrorCount,
		StatusMessage:     message,
	}
	if err := f.store.CompleteJob(ctx, jobID, final); err != nil {
		return f.handleError(ctx, logCtx, jobID, "failed to mark job completed", err)
	}
	logCtx.Info("Job completed.", "strategy", outcome.Strategy, "resultCount", len(results))

	return f.triggerWorkflow(ctx, logCtx, jobID, len(results))
}

// runPipeline runs extraction while a background drain writes the newest
// progress snapshot to the job.
func (f *SlipSplitterFunction) runPipeline(ctx context.Context, logCtx *slog.Logger, jobID string, raw []byte, name string) (*pipeline.Outcome, error) {
	// The drain may skip the pipeline's own starting snapshot, so record the
	// start synchronously.
	started := pipeline.Progress{Stage: pipeline.StageStarting, StatusMessage: "processing started"}
	if err := f.store.UpdateProgress(ctx, jobID, started); err != nil {
		return nil, f.handleError(ctx, logCtx, jobID, "failed to mark job started", err)
	}

	send, stop := pipeline.Latest(func(p pipeline.Progress) {
		if p.Stage == pipeline.StageFailed {
			return
		}
		if err := f.store.UpdateProgress(ctx, jobID, p); err != nil {
			logCtx.Warn("Failed to record progress", "stage", p.Stage, "error", err)
		}
	})
	outcome, err := f.processor.Process(ctx, raw, name, send)
	stop()
	if err != nil {
		return nil, f.handleError(ctx, logCtx, jobID, "failed to process document", err)
	}
	return outcome, nil
}

func objectPath(jobID string, file render.RenderedFile) string {
	return fmt.Sprintf("%s/%s/%s", jobID, file.Format, file.Filename)
}

// uploadResults uploads every rendered file. A file that cannot be uploaded
// is logged and left out; it does not affect the other files. The second
// return value counts the files left out.
func (f *SlipSplitterFunction) uploadResults(ctx context.Context, logCtx *slog.Logger, jobID string, records []pipeline.Record, files []render.RenderedFile) ([]models.Result, int, error) {
	logCtx.Info("Starting concurrent upload of results.", "fileCount", len(files))
	byPosition := make(map[int]pipeline.Record, len(records))
	for _, rec := range records {
		byPosition[rec.Position] = rec
	}

	uploaded := make([]*models.Result, len(files))
	var eg errgroup.Group
	eg.SetLimit(uploadConcurrency)

	for i, file := range files {
		dest := objectPath(jobID, file)
		eg.Go(func() error {
			if err := f.blobs.Upload(ctx, f.config.ResultsBucket, file.Path, dest, file.Format.ContentType()); err != nil {
				logCtx.Error("Failed to upload result, skipping it.",
					"filename", file.Filename, "format", file.Format, "position", file.Position, "error", err)
				return nil
			}
			rec := byPosition[file.Position]
			uploaded[i] = &models.Result{
				JobID:      jobID,
				FullName:   rec.FullName,
				Code:       rec.Code,
				Filename:   file.Filename,
				ObjectPath: dest,
				Format:     string(file.Format),
				SizeBytes:  file.SizeBytes,
				Position:   file.Position,
			}
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, 0, f.handleError(ctx, logCtx, jobID, "upload of results interrupted", err)
	}

	results := make([]models.Result, 0, len(files))
	for _, r := range uploaded {
		if r != nil {
			results = append(results, *r)
		}
	}
	failed := len(files) - len(results)
	if failed > 0 {
		logCtx.Warn("Some results failed to upload.", "uploaded", len(results), "failed", failed)
	} else {
		logCtx.Info("All results uploaded successfully.")
	}
	return results, failed, nil
}

// triggerWorkflow hands the completed job to the configured workflow. The
// job stays COMPLETED if the hand-off fails.
func (f *SlipSplitterFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, jobID string, resultCount int) error {
	if f.workflows == nil {
		return nil
	}
	logCtx.Info("Triggering workflow.")
	execution, err := f.workflows.Trigger(ctx, models.WorkflowArgument{JobID: jobID, ResultCount: resultCount})
	if err != nil {
		logCtx.Error("Workflow hand-off failed", "error", err)
		return err
	}
	logCtx.Info("Hand-off to workflow complete.", "execution", execution)
	return nil
}

func (f *SlipSplitterFunction) handleError(ctx context.Context, logCtx *slog.Logger, jobID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.store.FailJob(ctx, jobID, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update job status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

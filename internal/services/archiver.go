package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/Lllllllleong/labslipflow/internal/archive"
	"github.com/Lllllllleong/labslipflow/internal/gcp"
	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/render"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

var (
	// ErrBadRequest marks a request the caller must fix.
	ErrBadRequest = errors.New("bad request")
	// ErrNoResults means the request selected nothing to archive.
	ErrNoResults = errors.New("no results to archive")
)

// ArchiverConfig holds configuration for the archiver service.
type ArchiverConfig struct {
	ProjectID        string
	ResultsBucket    string
	ArchivesBucket   string
	CollectionPrefix string
}

// ArchiverFunction bundles a job's rendered files into one zip object.
type ArchiverFunction struct {
	blobs  blobStore
	store  store.Store
	config ArchiverConfig
	newID  func() string
}

// NewArchiver creates a new ArchiverFunction instance.
func NewArchiver(ctx context.Context) (*ArchiverFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	prefix, err := gcp.CollectionPrefix()
	if err != nil {
		return nil, err
	}

	config := ArchiverConfig{
		ProjectID:        projectID,
		ResultsBucket:    gcp.GetEnv("RESULTS_BUCKET", ""),  // Source bucket
		ArchivesBucket:   gcp.GetEnv("ARCHIVES_BUCKET", ""), // Destination bucket
		CollectionPrefix: prefix,
	}
	if config.ResultsBucket == "" || config.ArchivesBucket == "" {
		return nil, fmt.Errorf("RESULTS_BUCKET and ARCHIVES_BUCKET must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &ArchiverFunction{
		blobs:  gcp.NewBlobs(storageClient),
		store:  store.NewFirestore(firestoreClient, config.CollectionPrefix),
		config: config,
		newID:  uuid.NewString,
	}, nil
}

// entryName puts pdf files under pdf/, mirroring the local output layout.
func entryName(r models.Result) string {
	if r.Format == string(render.FormatPDF) {
		return "pdf/" + r.Filename
	}
	return r.Filename
}

func selectResults(all []models.Result, ids []string) []models.Result {
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Result
	for _, r := range all {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// Process streams the selected results of a job into a new zip in the
// archives bucket.
func (f *ArchiverFunction) Process(ctx context.Context, req *models.ArchiveRequest) (*models.ArchiveResponse, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return nil, fmt.Errorf("%w: jobId is required", ErrBadRequest)
	}
	logCtx := slog.With("jobId", req.JobID, "requestedCount", len(req.ResultIDs))
	logCtx.Info("Starting archive.")

	all, err := f.store.ListResults(ctx, req.JobID)
	if err != nil {
		logCtx.Error("Failed to list results", "error", err)
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	selected := selectResults(all, req.ResultIDs)
	if len(selected) == 0 {
		logCtx.Warn("Nothing to archive.")
		return nil, fmt.Errorf("%w for job %s", ErrNoResults, req.JobID)
	}

	entries := make([]archive.Entry, len(selected))
	for i, r := range selected {
		entries[i] = archive.Entry{
			Name: entryName(r),
			Open: func() (io.ReadCloser, error) {
				return f.blobs.Open(ctx, f.config.ResultsBucket, r.ObjectPath)
			},
		}
	}

	objectName := fmt.Sprintf("%s/%s.zip", req.JobID, f.newID())
	created, err := f.blobs.WriteOnce(ctx, f.config.ArchivesBucket, objectName, "application/zip", func(w io.Writer) error {
		return archive.Files(entries, w)
	})
	if err != nil {
		logCtx.Error("Failed to write archive", "error", err, "object", objectName)
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("archive object %s already exists", objectName)
	}

	outputGCSUri := fmt.Sprintf("gs://%s/%s", f.config.ArchivesBucket, objectName)
	logCtx.Info("Archive complete.", "archiveGcsUri", outputGCSUri, "fileCount", len(entries))
	return &models.ArchiveResponse{
		Status:        "success",
		ArchiveGCSUri: outputGCSUri,
		FileCount:     len(entries),
	}, nil
}

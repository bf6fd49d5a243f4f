package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Lllllllleong/labslipflow/internal/gcp"
	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

// JobStatusResponse is what a polling client reads for one job.
type JobStatusResponse struct {
	Job     *models.Job     `json:"job"`
	Results []models.Result `json:"results"`
}

// SearchResponse lists results matching a query across all jobs.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []models.Result `json:"results"`
}

// JobsResponse lists jobs newest first.
type JobsResponse struct {
	Jobs []models.Job `json:"jobs"`
}

const (
	defaultJobsLimit = 50
	maxJobsLimit     = 500
)

// ResultsAPIFunction serves job status, job listing, stats, result search
// and result deletion.
type ResultsAPIFunction struct {
	store store.Store
}

func NewResultsAPI(ctx context.Context) (*ResultsAPIFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	prefix, err := gcp.CollectionPrefix()
	if err != nil {
		return nil, err
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &ResultsAPIFunction{store: store.NewFirestore(firestoreClient, prefix)}, nil
}

// JobStatus returns the job with its results so far.
func (f *ResultsAPIFunction) JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("%w: jobId is required", ErrBadRequest)
	}
	job, err := f.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	results, err := f.store.ListResults(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.Result{}
	}
	return &JobStatusResponse{Job: job, Results: results}, nil
}

func (f *ResultsAPIFunction) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: q is required", ErrBadRequest)
	}
	results, err := f.store.SearchResults(ctx, query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.Result{}
	}
	return &SearchResponse{Query: query, Results: results}, nil
}

// ListJobs returns the newest jobs, or every job created for filename when
// it is set. limit is the raw query value; empty means the default.
func (f *ResultsAPIFunction) ListJobs(ctx context.Context, filename, limit string) (*JobsResponse, error) {
	n := defaultJobsLimit
	if strings.TrimSpace(limit) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(limit))
		if err != nil || parsed < 1 || parsed > maxJobsLimit {
			return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrBadRequest, maxJobsLimit)
		}
		n = parsed
	}

	var (
		jobs []models.Job
		err  error
	)
	if filename = strings.TrimSpace(filename); filename != "" {
		jobs, err = f.store.FindJobsByFilename(ctx, filename)
		if len(jobs) > n {
			jobs = jobs[:n]
		}
	} else {
		jobs, err = f.store.ListJobs(ctx, n)
	}
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	return &JobsResponse{Jobs: jobs}, nil
}

func (f *ResultsAPIFunction) Stats(ctx context.Context) (*models.Stats, error) {
	return f.store.Stats(ctx)
}

// Delete removes a result record. The stored object is left in place.
func (f *ResultsAPIFunction) Delete(ctx context.Context, resultID string) error {
	if strings.TrimSpace(resultID) == "" {
		return fmt.Errorf("%w: id is required", ErrBadRequest)
	}
	if err := f.store.DeleteResult(ctx, resultID); err != nil {
		return err
	}
	slog.Info("Result deleted.", "resultId", resultID)
	return nil
}

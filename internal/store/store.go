// Package store persists jobs and their rendered results.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

// ErrNotFound is returned when a job or result does not exist.
var ErrNotFound = errors.New("not found")

// Store is the job and result repository. A job is written only by the run
// that created it, so implementations need no cross-run coordination.
type Store interface {
	CreateJob(ctx context.Context, job models.Job) (string, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	// FindJobByHash returns ErrNotFound when no job has that file hash.
	FindJobByHash(ctx context.Context, fileHash string) (*models.Job, error)
	// UpdateProgress moves the job to PROCESSING and copies the counters.
	// A StageStarting snapshot stamps the start time.
	UpdateProgress(ctx context.Context, id string, p pipeline.Progress) error
	CompleteJob(ctx context.Context, id string, p pipeline.Progress) error
	FailJob(ctx context.Context, id, details string) error
	// ListJobs returns the newest jobs first. A limit of zero or less
	// returns every job.
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)
	// FindJobsByFilename returns the jobs created for an uploaded object
	// name, newest first.
	FindJobsByFilename(ctx context.Context, filename string) ([]models.Job, error)
	Stats(ctx context.Context) (*models.Stats, error)

	AddResult(ctx context.Context, r models.Result) (string, error)
	// ListResults returns a job's results ordered by position, then format.
	ListResults(ctx context.Context, jobID string) ([]models.Result, error)
	// SearchResults matches name, code or filename, case-insensitively.
	SearchResults(ctx context.Context, query string) ([]models.Result, error)
	DeleteResult(ctx context.Context, id string) error
}

func matches(r models.Result, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, field := range []string{r.FullName, r.Code, r.Filename} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func sortJobs(jobs []models.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

func sortResults(rs []models.Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Position != rs[j].Position {
			return rs[i].Position < rs[j].Position
		}
		return rs[i].Format < rs[j].Format
	})
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/labslipflow/internal/gcp"
	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

const (
	jobsCollection    = "jobs"
	resultsCollection = "results"

	// Firestore has no substring query, so search scans the newest results.
	searchScanLimit = 2000
)

// Firestore stores jobs and results in two top-level collections.
type Firestore struct {
	client  *firestore.Client
	jobs    string
	results string
}

// NewFirestore wraps client. A non-empty prefix is prepended to both
// collection names.
func NewFirestore(client *firestore.Client, prefix string) *Firestore {
	return &Firestore{
		client:  client,
		jobs:    gcp.CollectionName(prefix, jobsCollection),
		results: gcp.CollectionName(prefix, resultsCollection),
	}
}

func notFound(err error, what string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (f *Firestore) CreateJob(ctx context.Context, job models.Job) (string, error) {
	if job.Status == "" {
		job.Status = models.StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	ref, _, err := f.client.Collection(f.jobs).Add(ctx, job)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	return ref.ID, nil
}

func (f *Firestore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	snap, err := f.client.Collection(f.jobs).Doc(id).Get(ctx)
	if err != nil {
		return nil, notFound(err, "job "+id)
	}
	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	job.ID = snap.Ref.ID
	return &job, nil
}

func (f *Firestore) FindJobByHash(ctx context.Context, fileHash string) (*models.Job, error) {
	docs, err := f.client.Collection(f.jobs).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("job with hash %s: %w", fileHash, ErrNotFound)
	}
	var job models.Job
	if err := docs[0].DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", docs[0].Ref.ID, err)
	}
	job.ID = docs[0].Ref.ID
	return &job, nil
}

func progressUpdates(p pipeline.Progress) []firestore.Update {
	return []firestore.Update{
		{Path: "totalSections", Value: p.TotalSections},
		{Path: "processedSections", Value: p.ProcessedSections},
		{Path: "extractedCount", Value: p.ExtractedCount},
		{Path: "errorCount", Value: p.ErrorCount},
		{Path: "statusMessage", Value: p.StatusMessage},
	}
}

func (f *Firestore) updateJob(ctx context.Context, id string, updates []firestore.Update) error {
	if _, err := f.client.Collection(f.jobs).Doc(id).Update(ctx, updates); err != nil {
		return notFound(err, "update job "+id)
	}
	return nil
}

func (f *Firestore) UpdateProgress(ctx context.Context, id string, p pipeline.Progress) error {
	updates := append(progressUpdates(p), firestore.Update{Path: "status", Value: models.StatusProcessing})
	if p.Stage == pipeline.StageStarting {
		updates = append(updates, firestore.Update{Path: "startedAt", Value: time.Now()})
	}
	return f.updateJob(ctx, id, updates)
}

func (f *Firestore) CompleteJob(ctx context.Context, id string, p pipeline.Progress) error {
	updates := append(progressUpdates(p),
		firestore.Update{Path: "status", Value: models.StatusCompleted},
		firestore.Update{Path: "completedAt", Value: time.Now()},
	)
	return f.updateJob(ctx, id, updates)
}

func (f *Firestore) FailJob(ctx context.Context, id, details string) error {
	return f.updateJob(ctx, id, []firestore.Update{
		{Path: "status", Value: models.StatusFailed},
		{Path: "errorDetails", Value: details},
		{Path: "completedAt", Value: time.Now()},
	})
}

func (f *Firestore) collectJobs(it *firestore.DocumentIterator) ([]models.Job, error) {
	defer it.Stop()
	var out []models.Job
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read jobs: %w", err)
		}
		var job models.Job
		if err := snap.DataTo(&job); err != nil {
			return nil, fmt.Errorf("failed to decode job %s: %w", snap.Ref.ID, err)
		}
		job.ID = snap.Ref.ID
		out = append(out, job)
	}
	return out, nil
}

func (f *Firestore) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	q := f.client.Collection(f.jobs).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return f.collectJobs(q.Documents(ctx))
}

// FindJobsByFilename sorts in memory so the query needs no composite index.
func (f *Firestore) FindJobsByFilename(ctx context.Context, filename string) ([]models.Job, error) {
	jobs, err := f.collectJobs(f.client.Collection(f.jobs).Where("originalFilename", "==", filename).Documents(ctx))
	if err != nil {
		return nil, err
	}
	sortJobs(jobs)
	return jobs, nil
}

// Stats reads the counter fields of every job and counts results with an
// aggregation query.
func (f *Firestore) Stats(ctx context.Context) (*models.Stats, error) {
	it := f.client.Collection(f.jobs).Select("status", "extractedCount", "errorCount").Documents(ctx)
	jobs, err := f.collectJobs(it)
	if err != nil {
		return nil, err
	}
	var stats models.Stats
	for _, job := range jobs {
		stats.Count(job)
	}

	agg, err := f.client.Collection(f.results).NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	count, ok := agg["all"].(*firestorepb.Value)
	if !ok {
		return nil, fmt.Errorf("unexpected result count type %T", agg["all"])
	}
	stats.TotalResults = int(count.GetIntegerValue())
	return &stats, nil
}

func (f *Firestore) AddResult(ctx context.Context, r models.Result) (string, error) {
	if r.ExtractedAt.IsZero() {
		r.ExtractedAt = time.Now()
	}
	ref, _, err := f.client.Collection(f.results).Add(ctx, r)
	if err != nil {
		return "", fmt.Errorf("failed to add result %s: %w", r.Filename, err)
	}
	return ref.ID, nil
}

func (f *Firestore) collect(it *firestore.DocumentIterator, keep func(models.Result) bool) ([]models.Result, error) {
	defer it.Stop()
	var out []models.Result
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read results: %w", err)
		}
		var r models.Result
		if err := snap.DataTo(&r); err != nil {
			return nil, fmt.Errorf("failed to decode result %s: %w", snap.Ref.ID, err)
		}
		r.ID = snap.Ref.ID
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	sortResults(out)
	return out, nil
}

func (f *Firestore) ListResults(ctx context.Context, jobID string) ([]models.Result, error) {
	it := f.client.Collection(f.results).Where("jobId", "==", jobID).Documents(ctx)
	return f.collect(it, nil)
}

func (f *Firestore) SearchResults(ctx context.Context, query string) ([]models.Result, error) {
	it := f.client.Collection(f.results).
		OrderBy("extractedAt", firestore.Desc).
		Limit(searchScanLimit).
		Documents(ctx)
	return f.collect(it, func(r models.Result) bool { return matches(r, query) })
}

func (f *Firestore) DeleteResult(ctx context.Context, id string) error {
	if _, err := f.client.Collection(f.results).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return notFound(err, "delete result "+id)
	}
	return nil
}

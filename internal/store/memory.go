package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	jobs    map[string]models.Job
	results map[string]models.Result
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		jobs:    make(map[string]models.Job),
		results: make(map[string]models.Result),
		now:     time.Now,
	}
}

func (m *Memory) CreateJob(_ context.Context, job models.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = uuid.NewString()
	if job.Status == "" {
		job.Status = models.StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = m.now()
	}
	m.jobs[job.ID] = job
	return job.ID, nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return &job, nil
}

func (m *Memory) FindJobByHash(_ context.Context, fileHash string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.FileHash == fileHash {
			return &job, nil
		}
	}
	return nil, fmt.Errorf("job with hash %s: %w", fileHash, ErrNotFound)
}

func (m *Memory) update(id string, fn func(*models.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	fn(&job)
	m.jobs[id] = job
	return nil
}

func (m *Memory) UpdateProgress(_ context.Context, id string, p pipeline.Progress) error {
	return m.update(id, func(job *models.Job) {
		job.Status = models.StatusProcessing
		if p.Stage == pipeline.StageStarting || job.StartedAt.IsZero() {
			job.StartedAt = m.now()
		}
		copyProgress(job, p)
	})
}

func (m *Memory) CompleteJob(_ context.Context, id string, p pipeline.Progress) error {
	return m.update(id, func(job *models.Job) {
		job.Status = models.StatusCompleted
		job.CompletedAt = m.now()
		copyProgress(job, p)
	})
}

func (m *Memory) FailJob(_ context.Context, id, details string) error {
	return m.update(id, func(job *models.Job) {
		job.Status = models.StatusFailed
		job.ErrorDetails = details
		job.CompletedAt = m.now()
	})
}

func (m *Memory) ListJobs(_ context.Context, limit int) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	sortJobs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) FindJobsByFilename(_ context.Context, filename string) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Job
	for _, job := range m.jobs {
		if job.OriginalFilename == filename {
			out = append(out, job)
		}
	}
	sortJobs(out)
	return out, nil
}

func (m *Memory) Stats(_ context.Context) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats models.Stats
	for _, job := range m.jobs {
		stats.Count(job)
	}
	stats.TotalResults = len(m.results)
	return &stats, nil
}

func copyProgress(job *models.Job, p pipeline.Progress) {
	job.TotalSections = p.TotalSections
	job.ProcessedSections = p.ProcessedSections
	job.ExtractedCount = p.ExtractedCount
	job.ErrorCount = p.ErrorCount
	job.StatusMessage = p.StatusMessage
}

func (m *Memory) AddResult(_ context.Context, r models.Result) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[r.JobID]; !ok {
		return "", fmt.Errorf("job %s: %w", r.JobID, ErrNotFound)
	}
	r.ID = uuid.NewString()
	if r.ExtractedAt.IsZero() {
		r.ExtractedAt = m.now()
	}
	m.results[r.ID] = r
	return r.ID, nil
}

func (m *Memory) ListResults(_ context.Context, jobID string) ([]models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Result
	for _, r := range m.results {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	sortResults(out)
	return out, nil
}

func (m *Memory) SearchResults(_ context.Context, query string) ([]models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Result
	for _, r := range m.results {
		if matches(r, query) {
			out = append(out, r)
		}
	}
	sortResults(out)
	return out, nil
}

func (m *Memory) DeleteResult(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[id]; !ok {
		return fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	delete(m.results, id)
	return nil
}

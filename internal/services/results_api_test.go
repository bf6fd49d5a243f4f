package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

func TestResultsAPI(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	jobID, err := mem.CreateJob(ctx, models.Job{FileHash: "h", OriginalFilename: "slips.docx"})
	require.NoError(t, err)
	resultID, err := mem.AddResult(ctx, models.Result{JobID: jobID, FullName: "Nguyễn Văn A", Code: "XN001", Filename: "XN001_nguyen_van_a.pdf"})
	require.NoError(t, err)

	api := &ResultsAPIFunction{store: mem}

	status, err := api.JobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "slips.docx", status.Job.OriginalFilename)
	assert.Len(t, status.Results, 1)

	found, err := api.Search(ctx, "XN001")
	require.NoError(t, err)
	assert.Len(t, found.Results, 1)

	found, err = api.Search(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, found.Results)
	assert.Empty(t, found.Results)

	require.NoError(t, api.Delete(ctx, resultID))
	assert.ErrorIs(t, api.Delete(ctx, resultID), store.ErrNotFound)

	_, err = api.JobStatus(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = api.JobStatus(ctx, "")
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = api.Search(ctx, " ")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestResultsAPIListJobsAndStats(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"batch/a.docx", "batch/b.docx", "batch/a.docx"} {
		id, err := mem.CreateJob(ctx, models.Job{OriginalFilename: name, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, mem.CompleteJob(ctx, ids[0], pipeline.Progress{ExtractedCount: 4, ErrorCount: 1}))
	require.NoError(t, mem.FailJob(ctx, ids[1], "failed to read document: corrupt"))
	_, err := mem.AddResult(ctx, models.Result{JobID: ids[0], Filename: "XN001_nguyen_van_a.pdf"})
	require.NoError(t, err)

	api := &ResultsAPIFunction{store: mem}

	listed, err := api.ListJobs(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, listed.Jobs, 3)
	assert.Equal(t, ids[2], listed.Jobs[0].ID)

	listed, err = api.ListJobs(ctx, "", "2")
	require.NoError(t, err)
	assert.Len(t, listed.Jobs, 2)

	listed, err = api.ListJobs(ctx, "batch/a.docx", "")
	require.NoError(t, err)
	require.Len(t, listed.Jobs, 2)
	assert.Equal(t, ids[2], listed.Jobs[0].ID)
	assert.Equal(t, ids[0], listed.Jobs[1].ID)

	listed, err = api.ListJobs(ctx, "batch/a.docx", "1")
	require.NoError(t, err)
	require.Len(t, listed.Jobs, 1)
	assert.Equal(t, ids[2], listed.Jobs[0].ID)

	listed, err = api.ListJobs(ctx, "missing.docx", "")
	require.NoError(t, err)
	assert.NotNil(t, listed.Jobs)
	assert.Empty(t, listed.Jobs)

	for _, bad := range []string{"0", "-3", "abc", "501"} {
		_, err = api.ListJobs(ctx, "", bad)
		assert.ErrorIs(t, err, ErrBadRequest, bad)
	}

	stats, err := api.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{
		TotalJobs: 3, PendingJobs: 1, CompletedJobs: 1, FailedJobs: 1,
		TotalExtracted: 4, TotalErrors: 1, TotalResults: 1,
	}, *stats)
}

package services

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

func seedArchive(t *testing.T) (*ArchiverFunction, *fakeBlobs, string, []string) {
	t.Helper()
	ctx := context.Background()
	blobs := newFakeBlobs()
	mem := store.NewMemory()
	jobID, err := mem.CreateJob(ctx, models.Job{FileHash: "h"})
	require.NoError(t, err)

	var ids []string
	for _, r := range []models.Result{
		{Filename: "XN001_a.docx", Format: "docx", Position: 1},
		{Filename: "XN001_a.pdf", Format: "pdf", Position: 1},
		{Filename: "XN002_b.docx", Format: "docx", Position: 2},
	} {
		r.JobID = jobID
		r.ObjectPath = jobID + "/" + r.Format + "/" + r.Filename
		blobs.put("results", r.ObjectPath, []byte("content of "+r.Filename))
		id, err := mem.AddResult(ctx, r)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	f := &ArchiverFunction{
		blobs:  blobs,
		store:  mem,
		config: ArchiverConfig{ResultsBucket: "results", ArchivesBucket: "archives"},
		newID:  func() string { return "fixed" },
	}
	return f, blobs, jobID, ids
}

func zipContents(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[zf.Name] = string(b)
	}
	return out
}

func TestArchiverAllResults(t *testing.T) {
	f, blobs, jobID, _ := seedArchive(t)

	res, err := f.Process(context.Background(), &models.ArchiveRequest{JobID: jobID})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 3, res.FileCount)
	assert.Equal(t, "gs://archives/"+jobID+"/fixed.zip", res.ArchiveGCSUri)

	data, ok := blobs.get("archives", jobID+"/fixed.zip")
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"XN001_a.docx":    "content of XN001_a.docx",
		"pdf/XN001_a.pdf": "content of XN001_a.pdf",
		"XN002_b.docx":    "content of XN002_b.docx",
	}, zipContents(t, data))
}

func TestArchiverSelectedResults(t *testing.T) {
	f, blobs, jobID, ids := seedArchive(t)

	res, err := f.Process(context.Background(), &models.ArchiveRequest{JobID: jobID, ResultIDs: []string{ids[2], "unknown"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileCount)

	data, _ := blobs.get("archives", jobID+"/fixed.zip")
	assert.Equal(t, map[string]string{"XN002_b.docx": "content of XN002_b.docx"}, zipContents(t, data))
}

func TestArchiverErrors(t *testing.T) {
	f, _, jobID, _ := seedArchive(t)
	ctx := context.Background()

	_, err := f.Process(ctx, &models.ArchiveRequest{JobID: "  "})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = f.Process(ctx, &models.ArchiveRequest{JobID: "other-job"})
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = f.Process(ctx, &models.ArchiveRequest{JobID: jobID, ResultIDs: []string{"nope"}})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestArchiverExistingObject(t *testing.T) {
	f, blobs, jobID, _ := seedArchive(t)
	blobs.put("archives", jobID+"/fixed.zip", []byte("old"))

	_, err := f.Process(context.Background(), &models.ArchiveRequest{JobID: jobID})
	assert.ErrorContains(t, err, "already exists")
}

package services

import (
	"context"
	"io"
)

// blobStore is the subset of *gcp.Blobs the functions use.
type blobStore interface {
	Download(ctx context.Context, bucket, object, destPath string) error
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Upload(ctx context.Context, bucket, localPath, object, contentType string) error
	WriteOnce(ctx context.Context, bucket, object, contentType string, write func(io.Writer) error) (bool, error)
}

// workflowStarter is satisfied by *gcp.Workflows.
type workflowStarter interface {
	Trigger(ctx context.Context, argument any) (string, error)
}

package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// uploadTimeout bounds a single upload attempt.
const uploadTimeout = 50 * time.Second

// Blobs wraps the storage client with the object operations the functions
// need.
type Blobs struct {
	client  *storage.Client
	backoff Backoff
}

func NewBlobs(client *storage.Client) *Blobs {
	return &Blobs{client: client, backoff: UploadBackoff}
}

// Download streams gs://bucket/object into a local file at destPath.
func (b *Blobs) Download(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}

// Open returns a reader for gs://bucket/object.
func (b *Blobs) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	return r, nil
}

// Upload copies a local file to gs://bucket/object, retrying with
// exponential backoff.
func (b *Blobs) Upload(ctx context.Context, bucket, localPath, object, contentType string) error {
	return Retry(ctx, b.backoff, "upload "+object, func(ctx context.Context) error {
		localFileReader, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("could not open local file %s: %w", localPath, err)
		}
		defer localFileReader.Close()

		writeCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		defer cancel()

		gcsWriter := b.client.Bucket(bucket).Object(object).NewWriter(writeCtx)
		gcsWriter.ContentType = contentType

		if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
			_ = gcsWriter.Close()
			return fmt.Errorf("io.Copy to GCS failed: %w", err)
		}
		if err := gcsWriter.Close(); err != nil {
			return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
		}
		return nil
	})
}

// WriteOnce streams write's output to gs://bucket/object only if the object
// does not exist yet. It reports false, with no error, when the object was
// already there.
func (b *Blobs) WriteOnce(ctx context.Context, bucket, object, contentType string, write func(io.Writer) error) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := b.client.Bucket(bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if err := write(writer); err != nil {
		// Cancelling before Close discards the partial object.
		cancel()
		_ = writer.Close()
		if preconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", object)
			return false, nil
		}
		return false, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if preconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", object)
			return false, nil
		}
		return false, fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return true, nil
}

func preconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

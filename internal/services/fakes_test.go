package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Lllllllleong/labslipflow/internal/document"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
	"github.com/Lllllllleong/labslipflow/internal/render"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte), types: make(map[string]string)}
}

func key(bucket, object string) string { return bucket + "/" + object }

func (b *fakeBlobs) put(bucket, object string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key(bucket, object)] = data
}

func (b *fakeBlobs) get(bucket, object string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key(bucket, object)]
	return data, ok
}

func (b *fakeBlobs) Download(_ context.Context, bucket, object, destPath string) error {
	data, ok := b.get(bucket, object)
	if !ok {
		return fmt.Errorf("gs://%s/%s: object not found", bucket, object)
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (b *fakeBlobs) Open(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	data, ok := b.get(bucket, object)
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: object not found", bucket, object)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Upload(_ context.Context, bucket, localPath, object, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	b.put(bucket, object, data)
	b.mu.Lock()
	b.types[key(bucket, object)] = contentType
	b.mu.Unlock()
	return nil
}

func (b *fakeBlobs) WriteOnce(_ context.Context, bucket, object, _ string, write func(io.Writer) error) (bool, error) {
	if _, ok := b.get(bucket, object); ok {
		return false, nil
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return false, err
	}
	b.put(bucket, object, buf.Bytes())
	return true, nil
}

type fakeWorkflows struct {
	args []any
	err  error
}

func (w *fakeWorkflows) Trigger(_ context.Context, argument any) (string, error) {
	w.args = append(w.args, argument)
	if w.err != nil {
		return "", w.err
	}
	return "projects/p/locations/l/workflows/w/executions/1", nil
}

var errUpload = errors.New("upload refused")

func newTestSplitter(blobs *fakeBlobs, s store.Store, wf workflowStarter) *SlipSplitterFunction {
	f := &SlipSplitterFunction{
		blobs:     blobs,
		store:     s,
		processor: pipeline.NewProcessor(document.Read, nil, nil),
		renderer:  render.New(nil),
		config:    SlipSplitterConfig{ProjectID: "p", ResultsBucket: "results"},
	}
	if wf != nil {
		f.workflows = wf
	}
	return f
}

func calculateFileHashBytes(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

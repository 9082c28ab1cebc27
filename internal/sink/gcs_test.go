package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

type fakeObject struct {
	contentType string
	buf         bytes.Buffer
	closed      bool
}

type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string]*fakeObject
	writeErr error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]*fakeObject{}}
}

func (b *fakeBucket) NewWriter(_ context.Context, object, contentType string) io.WriteCloser {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj := &fakeObject{contentType: contentType}
	b.objects[object] = obj
	return &fakeWriter{obj: obj, err: b.writeErr}
}

type fakeWriter struct {
	obj *fakeObject
	err error
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return w.obj.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	w.obj.closed = true
	return nil
}

func TestGCSWriteUploadsOneObjectPerResult(t *testing.T) {
	t.Parallel()

	bucket := newFakeBucket()
	g := newGCSWithWriter(bucket, GCSConfig{Bucket: "b", Prefix: "/runs/today/"})

	results := sampleResults()
	require.NoError(t, g.Write(context.Background(), results))
	require.Len(t, bucket.objects, 2)

	for _, res := range results {
		obj, ok := bucket.objects["runs/today/"+res.JobID+".json"]
		require.True(t, ok)
		require.True(t, obj.closed)
		require.Equal(t, "application/json", obj.contentType)

		var got fetcher.Result
		require.NoError(t, json.Unmarshal(obj.buf.Bytes(), &got))
		require.Equal(t, res.JobID, got.JobID)
		require.Equal(t, res.Successful, got.Successful)
	}
}

func TestGCSObjectNameWithoutPrefix(t *testing.T) {
	t.Parallel()

	g := newGCSWithWriter(newFakeBucket(), GCSConfig{Bucket: "b"})
	require.Equal(t, "abc.json", g.ObjectName("abc"))
}

func TestGCSWriteError(t *testing.T) {
	t.Parallel()

	bucket := newFakeBucket()
	bucket.writeErr = errors.New("denied")
	g := newGCSWithWriter(bucket, GCSConfig{Bucket: "b"})

	err := g.Write(context.Background(), sampleResults()[:1])
	require.ErrorContains(t, err, "write gs://b/")
	require.ErrorContains(t, err, "denied")
	require.NoError(t, g.Close())
}

func TestNewGCSRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := NewGCS(context.Background(), GCSConfig{})
	require.ErrorContains(t, err, "bucket is required")
}

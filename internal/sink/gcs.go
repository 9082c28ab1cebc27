package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

// GCSConfig names the bucket and object prefix results are written under.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// objectWriter opens a writer for one object.
type objectWriter interface {
	NewWriter(ctx context.Context, object, contentType string) io.WriteCloser
}

type bucketWriter struct {
	bucket *storage.BucketHandle
}

func (b bucketWriter) NewWriter(ctx context.Context, object, contentType string) io.WriteCloser {
	w := b.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// GCS writes each result as a JSON object named <prefix>/<job_id>.json.
type GCS struct {
	client *storage.Client
	writer objectWriter
	bucket string
	prefix string
}

// NewGCS creates a storage client using Application Default Credentials.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("sink.gcs.bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{
		client: client,
		writer: bucketWriter{bucket: client.Bucket(cfg.Bucket)},
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func newGCSWithWriter(w objectWriter, cfg GCSConfig) *GCS {
	return &GCS{writer: w, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}
}

// ObjectName returns the object path used for a job's result.
func (g *GCS) ObjectName(jobID string) string {
	return path.Join(g.prefix, jobID+".json")
}

// Write uploads one object per result.
func (g *GCS) Write(ctx context.Context, results []fetcher.Result) error {
	for _, res := range results {
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", res.JobID, err)
		}
		name := g.ObjectName(res.JobID)
		w := g.writer.NewWriter(ctx, name, "application/json")
		if _, err := w.Write(data); err != nil {
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("write gs://%s/%s: %w (close writer: %v)", g.bucket, name, err, closeErr)
			}
			return fmt.Errorf("write gs://%s/%s: %w", g.bucket, name, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("close gs://%s/%s: %w", g.bucket, name, err)
		}
	}
	return nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}

// Package objstore wraps the S3-compatible bucket behind the storage engines
// under test. The harness only needs two operations: emptying the bucket
// before a run so every configuration starts cold, and reporting how much
// data a run left behind.
package objstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pkt.systems/pslog"
)

// Config carries the object-store endpoint contract. All fields are
// required; Validate reports every missing one at once.
type Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Validate reports all missing fields in one error.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.EndpointURL) == "" {
		missing = append(missing, "endpoint URL")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "access key id")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "secret access key")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("objstore: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Bucket provides the two bucket operations the orchestrator needs.
type Bucket struct {
	client *minio.Client
	bucket string
	logger pslog.Logger
}

// New builds a Bucket from cfg. The endpoint is a URL; an http scheme
// selects an insecure connection (MinIO and other local S3 stand-ins).
func New(cfg Config, logger pslog.Logger) (*Bucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	u, err := url.Parse(strings.TrimSpace(cfg.EndpointURL))
	if err != nil {
		return nil, fmt.Errorf("objstore: parse endpoint: %w", err)
	}
	host := u.Host
	if host == "" {
		// Bare host[:port] without a scheme.
		host = u.Path
	}
	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       u.Scheme == "https",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: create client: %w", err)
	}
	return &Bucket{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Name returns the bucket name.
func (b *Bucket) Name() string { return b.bucket }

// Empty deletes every object in the bucket and returns how many were
// removed.
func (b *Bucket) Empty(ctx context.Context) (int, error) {
	b.logger.Info("objstore.empty.begin", "bucket", b.bucket)
	removed := 0
	opts := minio.ListObjectsOptions{Recursive: true}
	for object := range b.client.ListObjects(ctx, b.bucket, opts) {
		if object.Err != nil {
			return removed, fmt.Errorf("objstore: list %s: %w", b.bucket, object.Err)
		}
		if err := b.client.RemoveObject(ctx, b.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("objstore: remove %s/%s: %w", b.bucket, object.Key, err)
		}
		removed++
	}
	b.logger.Info("objstore.empty.done", "bucket", b.bucket, "removed", removed)
	return removed, nil
}

// TotalSize sums the sizes of every object currently in the bucket.
func (b *Bucket) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	opts := minio.ListObjectsOptions{Recursive: true}
	for object := range b.client.ListObjects(ctx, b.bucket, opts) {
		if object.Err != nil {
			return total, fmt.Errorf("objstore: list %s: %w", b.bucket, object.Err)
		}
		total += object.Size
	}
	return total, nil
}

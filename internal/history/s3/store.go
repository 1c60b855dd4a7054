// Package s3 stores run history objects in an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/asksql/asksql/internal/history"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// backend is the subset of bucket operations the store needs. Keys passed to
// it already carry the store prefix.
type backend interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (history.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]history.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
}

// Store implements history.ObjectStore. Every key is resolved below Prefix,
// and keys returned by List are relative to it again.
type Store struct {
	backend backend
	bucket  string
	root    string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("history endpoint is required")
	}
	b, err := newMinioBackend(cfg)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg.Bucket, cfg.Prefix, b)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newStore(bucket, prefix string, b backend) (*Store, error) {
	if b == nil {
		return nil, fmt.Errorf("history backend is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("history bucket is required")
	}
	return &Store{backend: b, bucket: bucket, root: rootPrefix(prefix)}, nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts history.PutOptions) (history.ObjectInfo, error) {
	full, err := s.resolve(key)
	if err != nil {
		return history.ObjectInfo{}, err
	}
	info, err := s.backend.PutObject(ctx, s.bucket, full, body, size, opts.ContentType)
	if err != nil {
		return history.ObjectInfo{}, fmt.Errorf("upload %s: %w", full, err)
	}
	info.Key = s.relative(info.Key)
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	body, err := s.backend.GetObject(ctx, s.bucket, full)
	switch {
	case errors.Is(err, history.ErrObjectNotFound):
		return nil, fmt.Errorf("%s: %w", key, history.ErrObjectNotFound)
	case err != nil:
		return nil, fmt.Errorf("download %s: %w", full, err)
	}
	return body, nil
}

// List returns objects under prefix in key order.
func (s *Store) List(ctx context.Context, prefix string) ([]history.ObjectInfo, error) {
	full, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(prefix, "/") {
		full += "/"
	}
	objects, err := s.backend.ListObjects(ctx, s.bucket, full)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", full, err)
	}
	for i := range objects {
		objects[i].Key = s.relative(objects[i].Key)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Ping fails unless the bucket exists and is reachable.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.backend.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("probe bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s not found", s.bucket)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.backend.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("probe bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.backend.MakeBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// resolve rejects keys that escape the store root.
func (s *Store) resolve(key string) (string, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", fmt.Errorf("history key is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("history key %q escapes the store root", key)
	}
	return path.Join(s.root, cleaned), nil
}

func (s *Store) relative(key string) string {
	if s.root == "" {
		return key
	}
	return strings.TrimPrefix(key, s.root+"/")
}

func rootPrefix(prefix string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(prefix))
	return strings.TrimPrefix(cleaned, "/")
}

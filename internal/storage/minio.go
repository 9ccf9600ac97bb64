package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"group-media-backend/internal/config"
)

// MinIOStore stores blobs in any S3-compatible server through minio-go
type MinIOStore struct {
	client *minio.Client
	bucket string

	ensureOnce sync.Once
	ensureErr  error
}

// NewMinIOStore creates a MinIO store
func NewMinIOStore(cfg config.StorageConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket on first use
func (m *MinIOStore) EnsureBucket(ctx context.Context) error {
	m.ensureOnce.Do(func() {
		exists, err := m.client.BucketExists(ctx, m.bucket)
		if err != nil {
			m.ensureErr = err
			return
		}
		if !exists {
			m.ensureErr = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
		}
	})
	if m.ensureErr != nil {
		return fmt.Errorf("failed to ensure bucket %s: %w", m.bucket, m.ensureErr)
	}
	return nil
}

// Put uploads an object
func (m *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := m.EnsureBucket(ctx); err != nil {
		return err
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return classifyMinIOError(fmt.Errorf("failed to put object %s: %w", key, err))
	}
	return nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (m *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinIOError(fmt.Errorf("failed to delete object %s: %w", key, err))
	}
	return nil
}

// Exists reports whether an object is present
func (m *MinIOStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, classifyMinIOError(fmt.Errorf("failed to stat object %s: %w", key, err))
}

// SignedReadURL returns a time-limited GET URL
func (m *MinIOStore) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", Permanent(fmt.Errorf("failed to presign object %s: %w", key, err))
	}
	return u.String(), nil
}

func classifyMinIOError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return Permanent(err)
	}
	return err
}

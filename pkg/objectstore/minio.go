// Package objectstore keeps call evidence blobs in an S3-compatible bucket.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/noah-isme/admission-leads-api/pkg/config"
)

var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// PresignedURL is a time-limited download link for an object.
type PresignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store wraps a MinIO client bound to one bucket.
type Store struct {
	client      *minio.Client
	bucket      string
	maxFileSize int64
	urlTTL      time.Duration
}

// New builds a Store. The client does not dial until the first request.
func New(cfg config.MinIOConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("minio disabled")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{client: client, bucket: cfg.Bucket, maxFileSize: cfg.MaxFileSize, urlTTL: ttl}, nil
}

// EnsureBucket creates the evidence bucket when missing.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Validate checks content type and size before upload.
func (s *Store) Validate(contentType string, size int64) error {
	return validate(contentType, size, s.maxFileSize)
}

// Put uploads r under a unique key inside owner's folder and returns the key.
func (s *Store) Put(ctx context.Context, owner, fileName, contentType string, r io.Reader, size int64) (string, error) {
	if err := s.Validate(contentType, size); err != nil {
		return "", err
	}
	key := ObjectKey(owner, fileName, uuid.NewString())
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// PresignGet returns a time-limited download URL for key.
func (s *Store) PresignGet(ctx context.Context, key string) (*PresignedURL, error) {
	expiresAt := time.Now().Add(s.urlTTL)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlTTL, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return &PresignedURL{URL: u.String(), Key: key, ExpiresAt: expiresAt}, nil
}

// ObjectKey builds "<owner>/<base>_<suffix8><ext>".
func ObjectKey(owner, fileName, suffix string) string {
	fileName = path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if fileName == "." || fileName == "/" {
		fileName = "evidence"
	}
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return path.Join(owner, fmt.Sprintf("%s_%s%s", base, suffix, strings.ToLower(ext)))
}

func validate(contentType string, size, maxSize int64) error {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if _, ok := allowedContentTypes[mediaType]; !ok {
		return fmt.Errorf("content type %q not allowed", contentType)
	}
	if size <= 0 {
		return fmt.Errorf("empty upload")
	}
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("file size %d exceeds limit %d", size, maxSize)
	}
	return nil
}

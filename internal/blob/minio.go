// Package blob stores uploaded images in an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"portfolio/api/internal/util"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds object storage configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Service uploads and removes blobs
type Service struct {
	client *minio.Client
	config Config
}

var allowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".gif":  "image/gif",
}

func NewService(config Config) (*Service, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &Service{client: client, config: config}, nil
}

// IsConfigured returns true if object storage is configured
func (s *Service) IsConfigured() bool {
	return s.config.Endpoint != "" && s.config.Bucket != ""
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.config.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.config.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Put streams an upload into the bucket under kind/ and returns the object key.
// The filename's extension must be an allowed image type.
func (s *Service) Put(ctx context.Context, kind, filename string, r io.Reader, size int64) (string, error) {
	contentType, err := ContentTypeFor(filename)
	if err != nil {
		return "", err
	}

	key := ObjectKey(kind, filename)
	_, err = s.client.PutObject(ctx, s.config.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	return key, nil
}

// Remove deletes an object. Missing objects are not an error.
func (s *Service) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := s.client.RemoveObject(ctx, s.config.Bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// URL returns the public URL for a stored object key.
func (s *Service) URL(key string) string {
	if key == "" {
		return ""
	}
	base := strings.TrimSuffix(s.config.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if s.config.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, s.config.Endpoint, s.config.Bucket)
	}
	return base + "/" + key
}

// KeyFromURL is the inverse of URL. It returns the object key for URLs
// served from this bucket and "" for anything external.
func (s *Service) KeyFromURL(url string) string {
	if url == "" {
		return ""
	}
	base := strings.TrimSuffix(s.config.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if s.config.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, s.config.Endpoint, s.config.Bucket)
	}
	if !strings.HasPrefix(url, base+"/") {
		return ""
	}
	return strings.TrimPrefix(url, base+"/")
}

// ObjectKey builds a collision-free key for an upload.
func ObjectKey(kind, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return kind + "/" + util.NewID("img") + ext
}

// ContentTypeFor maps a filename to its MIME type, rejecting
// extensions outside the image allow-list.
func ContentTypeFor(filename string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	ct, ok := allowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	return ct, nil
}

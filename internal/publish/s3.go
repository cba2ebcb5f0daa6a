package publish

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config points at an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// URLExpiry is the lifetime of the returned download link; 0 means one hour.
	URLExpiry time.Duration
}

// S3Sink uploads README files and returns a presigned download URL.
type S3Sink struct {
	client     *minio.Client
	bucketName string
	region     string
	expiry     time.Duration

	mu    sync.Mutex
	ready bool
}

func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Sink{client: client, bucketName: bucket, region: region, expiry: expiry}, nil
}

// ensureBucket creates the bucket on first use. A failed check is retried by
// the next Publish.
func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

// Publish uploads content under ObjectKey(name, content) and returns a
// presigned GET URL.
func (s *S3Sink) Publish(ctx context.Context, name string, content []byte) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("sink is nil")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	key := ObjectKey(name, content)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/markdown; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.URL(ctx, key)
}

// URL presigns a download link for key.
func (s *S3Sink) URL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ObjectKey is "<slug>-<hash>/README.md": the project slug plus a short
// content hash, so identical output maps to the same object.
func ObjectKey(name string, content []byte) string {
	slug := slugifyASCII(name)
	if slug == "" {
		slug = "project"
	}
	return fmt.Sprintf("%s-%s/%s", slug, shortHashHex(content), DefaultFileName)
}

func shortHashHex(b []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(b)
	sum := h.Sum64()
	return fmt.Sprintf("%08x", uint32(sum&0xffffffff))
}

func slugifyASCII(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"kyc-service/internal/platform/config"
	"kyc-service/pkg/platform/sentinel"
)

// S3Store keeps evidence in an S3-compatible bucket under
// <sessionID>/<filename> keys.
type S3Store struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3Store creates a minio-backed store from the config.
func NewS3Store(cfg config.Config) (*S3Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3Store{client: client, bucket: cfg.S3Bucket, region: cfg.S3Region}, nil
}

// EnsureBucket makes sure the evidence bucket exists before use.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *S3Store) Save(ctx context.Context, sessionID, filename, mimeType string, r io.Reader) (SavedObject, error) {
	// Buffer once to hash and size the object; uploads are bounded by the
	// server's multipart limit.
	hash := sha256.New()
	var buf bytes.Buffer
	size, err := io.Copy(io.MultiWriter(&buf, hash), r)
	if err != nil {
		return SavedObject{}, fmt.Errorf("%w: read evidence: %v", sentinel.ErrUnavailable, err)
	}

	key := sessionID + "/" + filename
	_, err = s.client.PutObject(ctx, s.bucket, key, &buf, size, minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return SavedObject{}, fmt.Errorf("%w: upload evidence: %v", sentinel.ErrUnavailable, err)
	}

	return SavedObject{
		Path:      "s3://" + s.bucket + "/" + key,
		MimeType:  mimeType,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		SizeBytes: size,
	}, nil
}

// Package publish uploads finished output files to an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"hlsfetch/internal/config"
	"hlsfetch/internal/logger"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentType = "video/mp2t"

// Publisher uploads output files with a MinIO client.
type Publisher struct {
	client *minio.Client
	bucket string
	prefix string
	logger logger.Logger
}

// New creates a publisher for cfg. It does not contact the endpoint.
func New(cfg config.Publish, log logger.Logger) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client for %s: %w", cfg.Endpoint, err)
	}
	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: log,
	}, nil
}

// Upload stores the file at localPath in the bucket, creating the bucket when needed.
// It returns the object name.
func (p *Publisher) Upload(ctx context.Context, localPath string) (string, error) {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
		}
		p.logger.Infof("Created bucket %s", p.bucket)
	}

	object := ObjectName(p.prefix, localPath)
	info, err := p.client.FPutObject(ctx, p.bucket, object, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, p.bucket, object, err)
	}
	p.logger.Infof("Uploaded %s to %s/%s (%d bytes)", localPath, p.bucket, object, info.Size)
	return object, nil
}

// ObjectName joins prefix and the base name of localPath with "/".
func ObjectName(prefix, localPath string) string {
	base := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}

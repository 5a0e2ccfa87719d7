// Package storage uploads run artifacts to a MinIO or S3 bucket.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/bsaid97/go-area-weighted-average/config"
)

// objectAPI is the subset of *minio.Client used here.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Uploader struct {
	client objectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// NewUploader connects to the configured endpoint.
func NewUploader(cfg config.StorageConfig, logger *zap.Logger) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create minio client: %w", err)
	}
	return &Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// Upload stores files under <prefix>/<runID>/<base name>, creating the
// bucket if needed, and returns the object names.
func (u *Uploader) Upload(ctx context.Context, runID string, files []string) ([]string, error) {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to check bucket %s: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: failed to create bucket %s: %w", u.bucket, err)
		}
	}

	objects := make([]string, 0, len(files))
	for _, f := range files {
		object := path.Join(u.prefix, runID, filepath.Base(f))
		opts := minio.PutObjectOptions{ContentType: contentType(f)}
		info, err := u.client.FPutObject(ctx, u.bucket, object, f, opts)
		if err != nil {
			return objects, fmt.Errorf("storage: failed to upload %s: %w", f, err)
		}
		u.logger.Info("artifact uploaded",
			zap.String("bucket", u.bucket),
			zap.String("object", object),
			zap.Int64("size", info.Size))
		objects = append(objects, object)
	}
	return objects, nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".geojson":
		return "application/geo+json"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

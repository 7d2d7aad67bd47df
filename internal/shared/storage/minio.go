// Package storage archives uploaded spreadsheets in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOArchive 导入文件归档
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchive 创建MinIO客户端，endpoint为空时返回nil
func NewMinIOArchive(cfg config.MinIOConfig) (*MinIOArchive, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "woinsert"
	}
	return &MinIOArchive{client: client, bucket: bucket}, nil
}

// EnsureBucket 桶不存在时创建
func (a *MinIOArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Put 上传对象
func (a *MinIOArchive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get 读取对象
func (a *MinIOArchive) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Package storage wraps MinIO for logo, product image and document uploads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lolo262652/amg-jewelry-manager/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrUnknownBucket = errors.New("unknown bucket")
	ErrInvalidPath   = errors.New("invalid object path")
)

// ObjectAPI minio.Client 中用到的方法
type ObjectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Object 上传结果
type Object struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Client 对象存储客户端
type Client struct {
	api       ObjectAPI
	publicURL string
	buckets   map[string]bool
}

// NewMinIO 按配置连接 MinIO
func NewMinIO(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}
	return NewClient(mc, publicURL, cfg.Buckets), nil
}

func NewClient(api ObjectAPI, publicURL string, buckets []string) *Client {
	allowed := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		allowed[b] = true
	}
	return &Client{
		api:       api,
		publicURL: strings.TrimRight(publicURL, "/"),
		buckets:   allowed,
	}
}

// EnsureBuckets 创建缺失的 bucket
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for bucket := range c.buckets {
		exists, err := c.api.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// ObjectPath 未指定路径时按日期生成：2006/01/02/xxxxxxxx.ext
func ObjectPath(fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%s%s", now.Format("2006/01/02"), uuid.New().String()[:8], strings.ToLower(filepath.Ext(fileName)))
}

// Upload 上传对象并返回公开访问地址
func (c *Client) Upload(ctx context.Context, bucket, objectPath string, reader io.Reader, size int64, contentType string) (*Object, error) {
	if !c.buckets[bucket] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	clean, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}

	if _, err := c.api.PutObject(ctx, bucket, clean, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	return &Object{
		Bucket:      bucket,
		Path:        clean,
		URL:         c.PublicURL(bucket, clean),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// PublicURL {public_url}/{bucket}/{path}，去掉 path 开头的 /
func (c *Client) PublicURL(bucket, objectPath string) string {
	return c.publicURL + "/" + bucket + "/" + strings.TrimLeft(objectPath, "/")
}

func cleanPath(p string) (string, error) {
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return clean, nil
}

package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	puts    []string
	body    string
	putErr  error
	exists  map[string]bool
	created []string
}

func (f *fakeObjectAPI) PutObject(_ context.Context, bucket, name string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	b, _ := io.ReadAll(reader)
	f.body = string(b)
	f.puts = append(f.puts, bucket+"/"+name)
	return minio.UploadInfo{Bucket: bucket, Key: name}, nil
}

func (f *fakeObjectAPI) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.exists[bucket], nil
}

func (f *fakeObjectAPI) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.created = append(f.created, bucket)
	return nil
}

func TestPublicURL(t *testing.T) {
	c := NewClient(&fakeObjectAPI{}, "https://cdn.example.com/", []string{"logos"})

	assert.Equal(t, "https://cdn.example.com/logos/company/logo.png", c.PublicURL("logos", "/company/logo.png"))
	assert.Equal(t, "https://cdn.example.com/logos/logo.png", c.PublicURL("logos", "logo.png"))
}

func TestUpload(t *testing.T) {
	api := &fakeObjectAPI{}
	c := NewClient(api, "http://minio:9000", []string{"logos", "products"})

	obj, err := c.Upload(context.Background(), "products", "/bagues/bg-001.jpg", strings.NewReader("jpeg"), 4, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, []string{"products/bagues/bg-001.jpg"}, api.puts)
	assert.Equal(t, "jpeg", api.body)
	assert.Equal(t, "http://minio:9000/products/bagues/bg-001.jpg", obj.URL)
	assert.Equal(t, "bagues/bg-001.jpg", obj.Path)
}

func TestUpload_Rejects(t *testing.T) {
	api := &fakeObjectAPI{}
	c := NewClient(api, "http://minio:9000", []string{"logos"})
	ctx := context.Background()

	_, err := c.Upload(ctx, "private", "a.png", strings.NewReader(""), 0, "image/png")
	assert.ErrorIs(t, err, ErrUnknownBucket)

	_, err = c.Upload(ctx, "logos", "../../etc/passwd", strings.NewReader(""), 0, "text/plain")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = c.Upload(ctx, "logos", "", strings.NewReader(""), 0, "text/plain")
	assert.ErrorIs(t, err, ErrInvalidPath)

	assert.Empty(t, api.puts)
}

func TestUpload_BackendError(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewClient(&fakeObjectAPI{putErr: boom}, "http://minio:9000", []string{"logos"})

	_, err := c.Upload(context.Background(), "logos", "logo.png", strings.NewReader("png"), 3, "image/png")
	assert.ErrorIs(t, err, boom)
}

func TestEnsureBuckets(t *testing.T) {
	api := &fakeObjectAPI{exists: map[string]bool{"logos": true}}
	c := NewClient(api, "http://minio:9000", []string{"logos", "documents"})

	require.NoError(t, c.EnsureBuckets(context.Background()))
	assert.Equal(t, []string{"documents"}, api.created)
}

func TestObjectPath(t *testing.T) {
	p := ObjectPath("Logo.PNG", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(p, "2025/03/14/"))
	assert.True(t, strings.HasSuffix(p, ".png"))
}

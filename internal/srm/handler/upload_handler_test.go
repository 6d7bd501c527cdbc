package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lolo262652/amg-jewelry-manager/internal/storage"
	"github.com/lolo262652/amg-jewelry-manager/internal/testutil"
	"github.com/minio/minio-go/v7"
)

type memoryObjects struct {
	objects map[string]string
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, name string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.objects[bucket+"/"+name] = string(b)
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: int64(len(b))}, nil
}

func (m *memoryObjects) BucketExists(context.Context, string) (bool, error) { return true, nil }

func (m *memoryObjects) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	return nil
}

func setupUploadTest(t *testing.T) (*gin.Engine, *memoryObjects) {
	t.Helper()
	objects := &memoryObjects{objects: map[string]string{}}
	h := NewUploadHandler(storage.NewClient(objects, "http://cdn.test", []string{"logos", "products"}))

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/uploads/:bucket", h.Upload)
	return router, objects
}

func multipartRequest(t *testing.T, url, fileName, content, objectPath string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	if objectPath != "" {
		mw.WriteField("path", objectPath)
	}
	mw.Close()

	req := httptest.NewRequest("POST", url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testutil.DefaultTestToken())
	return req
}

func TestUpload(t *testing.T) {
	router, objects := setupUploadTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/api/v1/uploads/logos", "logo.png", "png-bytes", "company/logo.png"))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["url"] != "http://cdn.test/logos/company/logo.png" {
		t.Errorf("Unexpected url %v", data["url"])
	}
	if objects.objects["logos/company/logo.png"] != "png-bytes" {
		t.Errorf("Object not stored: %v", objects.objects)
	}
}

func TestUpload_GeneratedPath(t *testing.T) {
	router, objects := setupUploadTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/api/v1/uploads/products", "bague.jpg", "jpg", ""))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	path := testutil.ParseResponse(w)["data"].(map[string]interface{})["path"].(string)
	if !strings.HasSuffix(path, ".jpg") {
		t.Errorf("Expected .jpg object, got %s", path)
	}
	if len(objects.objects) != 1 {
		t.Errorf("Expected 1 object, got %d", len(objects.objects))
	}
}

func TestUpload_Rejected(t *testing.T) {
	router, objects := setupUploadTest(t)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"unknown bucket", multipartRequest(t, "/api/v1/uploads/secrets", "a.txt", "x", "")},
		{"path traversal", multipartRequest(t, "/api/v1/uploads/logos", "a.txt", "x", "../../etc/passwd")},
		{"missing file", multipartRequest(t, "/api/v1/uploads/logos", "", "", "a.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
	if len(objects.objects) != 0 {
		t.Errorf("Expected nothing stored, got %v", objects.objects)
	}
}

package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lolo262652/amg-jewelry-manager/internal/storage"
)

// 单文件上限 10MB
const maxUploadSize = 10 << 20

// UploadHandler 文件上传处理器
type UploadHandler struct {
	store *storage.Client
}

func NewUploadHandler(store *storage.Client) *UploadHandler {
	return &UploadHandler{store: store}
}

// Upload 上传文件到指定 bucket，返回公开地址
// POST /api/v1/uploads/:bucket  (multipart: file, path 可选)
func (h *UploadHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传文件")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		BadRequest(c, "文件不能超过10MB")
		return
	}

	objectPath := c.PostForm("path")
	if objectPath == "" {
		objectPath = storage.ObjectPath(header.Filename, time.Now())
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj, err := h.store.Upload(c.Request.Context(), c.Param("bucket"), objectPath, file, header.Size, contentType)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnknownBucket), errors.Is(err, storage.ErrInvalidPath):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "上传失败: "+err.Error())
		}
		return
	}

	Created(c, obj)
}

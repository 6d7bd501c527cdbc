package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lolo262652/amg-jewelry-manager/internal/auth"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/repository"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/sequence"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/service"
	"github.com/lolo262652/amg-jewelry-manager/internal/storage"
)

// Handlers 处理器集合
type Handlers struct {
	Order  *OrderHandler
	Auth   *AuthHandler
	Upload *UploadHandler
}

// NewHandlers 创建处理器集合；storageClient 为 nil 时不提供上传
func NewHandlers(orderSvc *service.OrderService, authSvc *auth.Service, storageClient *storage.Client) *Handlers {
	h := &Handlers{
		Order: NewOrderHandler(orderSvc),
		Auth:  NewAuthHandler(authSvc),
	}
	if storageClient != nil {
		h.Upload = NewUploadHandler(storageClient)
	}
	return h
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPagination(page, pageSize int, total int64) *Pagination {
	totalPages := 1
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceError 按错误类型映射响应码
func ServiceError(c *gin.Context, prefix string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(400, Response{Code: 40000, Message: verr.Error(), Data: verr.Fields})
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, prefix+": "+err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderNumberConflict),
		errors.Is(err, sequence.ErrSequenceExhausted):
		Conflict(c, prefix+": "+err.Error())
	default:
		InternalError(c, prefix+": "+err.Error())
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

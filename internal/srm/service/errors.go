package service

import (
	"errors"
	"strings"
)

var (
	ErrInvalidTransition   = errors.New("订单状态不允许该操作")
	ErrOrderNumberConflict = errors.New("订单编号冲突，请重试")
)

// FieldError 单个字段校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 参数校验失败，不会访问数据库
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "参数校验失败: " + strings.Join(parts, "; ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

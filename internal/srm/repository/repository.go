package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// Repositories 仓库集合
type Repositories struct {
	Order       *OrderRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:       NewOrderRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// NewID 生成32位主键
func NewID() string {
	return uuid.New().String()[:32]
}

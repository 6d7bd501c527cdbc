package entity

import "time"

// ActivityLog 订单操作日志
type ActivityLog struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	OrderID     string `json:"order_id" gorm:"size:32;not null;index:idx_order_activity"`
	OrderNumber string `json:"order_number" gorm:"size:20"`

	Action     string `json:"action" gorm:"size:30;not null"` // create/update/status_change/reception/delete
	FromStatus string `json:"from_status" gorm:"size:30"`
	ToStatus   string `json:"to_status" gorm:"size:30"`
	Content    string `json:"content" gorm:"type:text"`

	OperatorID string    `json:"operator_id" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_order_activity"`
}

func (ActivityLog) TableName() string {
	return "amg_order_activity_logs"
}

const (
	ActivityCreate       = "create"
	ActivityUpdate       = "update"
	ActivityAddItems     = "add_items"
	ActivityStatusChange = "status_change"
	ActivityReception    = "reception"
	ActivityDelete       = "delete"
)

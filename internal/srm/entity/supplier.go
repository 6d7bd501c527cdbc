package entity

import "time"

// Supplier 供应商（订单关联用，维护界面不在本服务）
type Supplier struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Name        string    `json:"name" gorm:"size:200;not null;index"`
	ContactName string    `json:"contact_name" gorm:"size:100"`
	Email       string    `json:"email" gorm:"size:200"`
	Phone       string    `json:"phone" gorm:"size:50"`
	Address     string    `json:"address" gorm:"size:500"`
	Country     string    `json:"country" gorm:"size:50"`
	Notes       string    `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Supplier) TableName() string {
	return "amg_suppliers"
}

// Product 产品（订单行项关联用）
type Product struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Name       string    `json:"name" gorm:"size:200;not null"`
	Reference  string    `json:"reference" gorm:"size:50;index"`
	CategoryID *string   `json:"category_id" gorm:"size:32"`
	Material   string    `json:"material" gorm:"size:100"` // or/argent/plaqué...
	ImageURL   string    `json:"image_url" gorm:"size:500"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "amg_products"
}

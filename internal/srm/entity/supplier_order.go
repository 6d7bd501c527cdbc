package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SupplierOrder 供应商采购订单
type SupplierOrder struct {
	ID                   string     `json:"id" gorm:"primaryKey;size:32"`
	OrderNumber          string     `json:"order_number" gorm:"size:20;uniqueIndex;not null"` // CMD + YYMM + 3位序号
	SupplierID           string     `json:"supplier_id" gorm:"size:32;not null;index"`
	OrderDate            time.Time  `json:"order_date" gorm:"not null;index"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	Status               string     `json:"status" gorm:"size:30;not null;default:draft;index"`

	// 金额
	Currency     string          `json:"currency" gorm:"size:3;not null;default:EUR"`
	ShippingCost decimal.Decimal `json:"shipping_cost" gorm:"type:decimal(12,2);not null;default:0"`
	TaxAmount    decimal.Decimal `json:"tax_amount" gorm:"type:decimal(12,2);not null;default:0"`
	TotalAmount  decimal.Decimal `json:"total_amount" gorm:"type:decimal(14,2);not null;default:0"`

	PaymentTerms string    `json:"payment_terms" gorm:"size:200"`
	Notes        string    `json:"notes" gorm:"type:text"`
	CreatedBy    string    `json:"created_by" gorm:"size:32"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 关联
	Items    []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Supplier *Supplier   `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

func (SupplierOrder) TableName() string {
	return "amg_supplier_orders"
}

// 订单状态
const (
	OrderStatusDraft              = "draft"
	OrderStatusPending            = "pending"
	OrderStatusConfirmed          = "confirmed"
	OrderStatusShipped            = "shipped"
	OrderStatusPartiallyDelivered = "partially_delivered"
	OrderStatusDelivered          = "delivered"
	OrderStatusCancelled          = "cancelled"
)

// OrderItem 订单行项
type OrderItem struct {
	ID                   string          `json:"id" gorm:"primaryKey;size:32"`
	OrderID              string          `json:"order_id" gorm:"size:32;not null;index"`
	ProductID            string          `json:"product_id" gorm:"size:32;not null;index"`
	Quantity             int             `json:"quantity" gorm:"not null"`
	UnitPrice            decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null;default:0"`
	TotalPrice           decimal.Decimal `json:"total_price" gorm:"type:decimal(14,2);not null;default:0"`
	ReceivedQuantity     int             `json:"received_quantity" gorm:"not null;default:0"`
	Status               string          `json:"status" gorm:"size:30;not null;default:pending"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	SortOrder            int             `json:"sort_order" gorm:"default:0"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (OrderItem) TableName() string {
	return "amg_supplier_order_items"
}

// 行项收货状态
const (
	ItemStatusPending           = "pending"
	ItemStatusPartiallyReceived = "partially_received"
	ItemStatusReceived          = "received"
)

// 合法的状态流转，cancelled 可由任意非终态进入
var orderTransitions = map[string][]string{
	OrderStatusDraft:              {OrderStatusPending, OrderStatusCancelled},
	OrderStatusPending:            {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:          {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:            {OrderStatusPartiallyDelivered, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusPartiallyDelivered: {OrderStatusDelivered, OrderStatusCancelled},
}

// OrderStatuses 全部订单状态（按流程顺序）
var OrderStatuses = []string{
	OrderStatusDraft,
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusPartiallyDelivered,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsValidOrderStatus 是否为已知状态
func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalStatus delivered / cancelled 之后不再流转
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// CanTransition 判断 from → to 是否允许
func CanTransition(from, to string) bool {
	for _, target := range orderTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// DeriveItemStatus 由数量和已收数量推导行项状态
func DeriveItemStatus(quantity, received int) string {
	switch {
	case quantity > 0 && received >= quantity:
		return ItemStatusReceived
	case received > 0:
		return ItemStatusPartiallyReceived
	default:
		return ItemStatusPending
	}
}

// LineTotal 行金额 = 数量 × 单价
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Refresh 重算行金额和收货状态
func (i *OrderItem) Refresh() {
	i.TotalPrice = LineTotal(i.Quantity, i.UnitPrice)
	i.Status = DeriveItemStatus(i.Quantity, i.ReceivedQuantity)
}

// Subtotal 行项金额合计
func (o *SupplierOrder) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(LineTotal(item.Quantity, item.UnitPrice))
	}
	return sum
}

// RecalculateTotal 总额 = 行项合计 + 运费 + 税额
func (o *SupplierOrder) RecalculateTotal() {
	o.TotalAmount = o.Subtotal().Add(o.ShippingCost).Add(o.TaxAmount).Round(2)
}

// ReceptionProgress 所有行项是否收齐、是否有任何收货
func (o *SupplierOrder) ReceptionProgress() (allReceived, anyReceived bool) {
	if len(o.Items) == 0 {
		return false, false
	}
	allReceived = true
	for _, item := range o.Items {
		if item.ReceivedQuantity > 0 {
			anyReceived = true
		}
		if DeriveItemStatus(item.Quantity, item.ReceivedQuantity) != ItemStatusReceived {
			allReceived = false
		}
	}
	return allReceived, anyReceived
}

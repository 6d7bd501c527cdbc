package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lolo262652/amg-jewelry-manager/internal/srm/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderListQuery 订单列表查询条件
type OrderListQuery struct {
	Page       int
	Limit      int // 0 表示不分页
	Search     string
	Status     string
	SupplierID string
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string
	SortDesc   bool
}

// SortableOrderColumns 允许排序的列
var SortableOrderColumns = map[string]string{
	"order_date":             "order_date",
	"order_number":           "order_number",
	"status":                 "status",
	"total_amount":           "total_amount",
	"expected_delivery_date": "expected_delivery_date",
	"created_at":             "created_at",
}

// OrderRepository 供应商订单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx 绑定到事务，所有读写走同一个 tx
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func hydrate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Supplier").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC").Order("id ASC")
		}).
		Preload("Items.Product")
}

// FindAll 查询订单列表
func (r *OrderRepository) FindAll(ctx context.Context, q OrderListQuery) ([]entity.SupplierOrder, int64, error) {
	var items []entity.SupplierOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.SupplierOrder{})

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.SupplierID != "" {
		query = query.Where("supplier_id = ?", q.SupplierID)
	}
	if q.DateFrom != nil {
		query = query.Where("order_date >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		query = query.Where("order_date <= ?", *q.DateTo)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(order_number) LIKE ? OR supplier_id IN (SELECT id FROM amg_suppliers WHERE LOWER(name) LIKE ?)",
			like, like,
		)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := SortableOrderColumns[q.SortBy]
	if !ok {
		column = "order_date"
	}
	query = hydrate(query).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: q.SortDesc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order_number"}, Desc: q.SortDesc})

	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * q.Limit).Limit(q.Limit)
	}

	err := query.Find(&items).Error
	return items, total, err
}

// FindByID 根据ID查找订单（含供应商、行项、产品）
func (r *OrderRepository) FindByID(ctx context.Context, id string, conds ...clause.Expression) (*entity.SupplierOrder, error) {
	var order entity.SupplierOrder
	query := r.db.WithContext(ctx)
	if len(conds) > 0 {
		query = query.Clauses(conds...)
	}
	err := hydrate(query).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CreateHeader 写入订单头，不级联行项
func (r *OrderRepository) CreateHeader(ctx context.Context, order *entity.SupplierOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

// UpdateHeader 保存订单头全部字段
func (r *OrderRepository) UpdateHeader(ctx context.Context, order *entity.SupplierOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

// FindByIDForUpdate 事务内读取订单并锁住订单头，直到事务结束
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.SupplierOrder, error) {
	return r.FindByID(ctx, id, clause.Locking{Strength: "UPDATE"})
}

// UpdateStatus 状态从 from 改为 to；状态已被他人改动时返回 ErrStatusChanged
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	result := r.db.WithContext(ctx).
		Model(&entity.SupplierOrder{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&entity.SupplierOrder{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStatusChanged
	}
	return nil
}

// UpdateTotal 只更新订单总额
func (r *OrderRepository) UpdateTotal(ctx context.Context, id string, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&entity.SupplierOrder{}).
		Where("id = ?", id).
		Update("total_amount", total).Error
}

// CreateItems 批量写入行项
func (r *OrderRepository) CreateItems(ctx context.Context, items []entity.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}

// DeleteItems 删除订单全部行项
func (r *OrderRepository) DeleteItems(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&entity.OrderItem{}).Error
}

// SaveItem 保存单个行项
func (r *OrderRepository) SaveItem(ctx context.Context, item *entity.OrderItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

// Delete 删除订单及行项
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&entity.OrderItem{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&entity.SupplierOrder{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MaxOrderNumber 指定前缀下最大的订单编号，无则返回空串
func (r *OrderRepository) MaxOrderNumber(ctx context.Context, prefix string) (string, error) {
	var maxNumber string
	err := r.db.WithContext(ctx).
		Model(&entity.SupplierOrder{}).
		Select("COALESCE(MAX(order_number), '')").
		Where("order_number LIKE ?", prefix+"%").
		Scan(&maxNumber).Error
	return maxNumber, err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lolo262652/amg-jewelry-manager/internal/metrics"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/entity"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/repository"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/sequence"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 唯一键冲突时重新分配编号的次数上限
const maxNumberAttempts = 3

// OrderService 供应商订单服务
type OrderService struct {
	db       *gorm.DB
	orders   *repository.OrderRepository
	activity *repository.ActivityLogRepository
	numbers  *sequence.Generator
	locker   sequence.Locker
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewOrderService(db *gorm.DB, repos *repository.Repositories, numbers *sequence.Generator, locker sequence.Locker, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		db:       db,
		orders:   repos.Order,
		activity: repos.ActivityLog,
		numbers:  numbers,
		locker:   locker,
		validate: newValidator(),
		logger:   logger,
	}
}

// SetMetrics 注入指标
func (s *OrderService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// OrderItemInput 订单行项
type OrderItemInput struct {
	ProductID            string          `json:"product_id" validate:"required"`
	Quantity             int             `json:"quantity" validate:"gte=1"`
	UnitPrice            decimal.Decimal `json:"unit_price" validate:"gte=0,cents"`
	ReceivedQuantity     int             `json:"received_quantity" validate:"gte=0,ltefield=Quantity"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
}

// OrderInput 创建/更新订单请求
type OrderInput struct {
	SupplierID           string           `json:"supplier_id" validate:"required"`
	OrderDate            *time.Time       `json:"order_date"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date"`
	Currency             string           `json:"currency" validate:"required,len=3,uppercase"`
	ShippingCost         decimal.Decimal  `json:"shipping_cost" validate:"gte=0,cents"`
	TaxAmount            decimal.Decimal  `json:"tax_amount" validate:"gte=0,cents"`
	PaymentTerms         string           `json:"payment_terms"`
	Notes                string           `json:"notes"`
	Items                []OrderItemInput `json:"items" validate:"dive"`
}

func (s *OrderService) validateInput(in *OrderInput) error {
	if in == nil {
		return newValidationError("body", "必填")
	}
	if err := s.validate.Struct(in); err != nil {
		return toValidationError(err)
	}
	return nil
}

// buildItems 生成行项；keepReceived=false 时收货数量归零（新建订单）
func buildItems(orderID string, inputs []OrderItemInput, keepReceived bool) []entity.OrderItem {
	items := make([]entity.OrderItem, 0, len(inputs))
	for i, in := range inputs {
		item := entity.OrderItem{
			ID:                   repository.NewID(),
			OrderID:              orderID,
			ProductID:            in.ProductID,
			Quantity:             in.Quantity,
			UnitPrice:            in.UnitPrice,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
			SortOrder:            i + 1,
		}
		if keepReceived {
			item.ReceivedQuantity = in.ReceivedQuantity
		}
		item.Refresh()
		items = append(items, item)
	}
	return items
}

func (s *OrderService) logActivity(ctx context.Context, activity *repository.ActivityLogRepository, order *entity.SupplierOrder, action, from, to, content, operatorID string) error {
	err := activity.Create(ctx, &entity.ActivityLog{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Action:      action,
		FromStatus:  from,
		ToStatus:    to,
		Content:     content,
		OperatorID:  operatorID,
	})
	if err != nil {
		return fmt.Errorf("写入操作日志失败: %w", err)
	}
	return nil
}

// statusUpdateError 状态写入时发现已被并发修改，按非法状态变更处理
func statusUpdateError(err error, from, to string) error {
	if errors.Is(err, repository.ErrStatusChanged) {
		return fmt.Errorf("%w: 订单状态已不是 %s，无法变更为 %s", ErrInvalidTransition, from, to)
	}
	return fmt.Errorf("更新订单状态失败: %w", err)
}

// === 订单生命周期 ===

// ListOrders 订单列表
func (s *OrderService) ListOrders(ctx context.Context, q repository.OrderListQuery) ([]entity.SupplierOrder, int64, error) {
	if q.SortBy != "" {
		if _, ok := repository.SortableOrderColumns[q.SortBy]; !ok {
			return nil, 0, newValidationError("sort_by", "不支持的排序字段")
		}
	}
	if q.Status != "" && !entity.IsValidOrderStatus(q.Status) {
		return nil, 0, newValidationError("status", "未知状态")
	}
	if q.Limit < 0 {
		return nil, 0, newValidationError("limit", "不能小于 0")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	return s.orders.FindAll(ctx, q)
}

// GetOrder 订单详情
func (s *OrderService) GetOrder(ctx context.Context, id string) (*entity.SupplierOrder, error) {
	return s.orders.FindByID(ctx, id)
}

// CreateOrder 创建订单：编号分配、订单头、行项在同一事务内完成
func (s *OrderService) CreateOrder(ctx context.Context, operatorID string, in *OrderInput) (*entity.SupplierOrder, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	now := s.numbers.Now()
	unlock, err := s.locker.Lock(ctx, sequence.LockKey(sequence.Prefix(now)))
	if err != nil {
		return nil, fmt.Errorf("获取订单编号锁失败: %w", err)
	}
	defer unlock()

	var order *entity.SupplierOrder
	for attempt := 1; ; attempt++ {
		order, err = s.createOnce(ctx, operatorID, in, now)
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		s.metrics.NumberConflict()
		s.logger.Warn("Order number conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt >= maxNumberAttempts {
			return nil, fmt.Errorf("%w: %v", ErrOrderNumberConflict, err)
		}
	}
	if err != nil {
		s.logger.Warn("Create order rolled back", zap.Error(err))
		return nil, err
	}

	s.metrics.OrderCreated()
	s.logger.Info("Supplier order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	return s.orders.FindByID(ctx, order.ID)
}

func (s *OrderService) createOnce(ctx context.Context, operatorID string, in *OrderInput, now time.Time) (*entity.SupplierOrder, error) {
	var created *entity.SupplierOrder

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)

		number, err := s.numbers.Next(ctx, orders, now)
		if err != nil {
			return err
		}

		orderDate := now
		if in.OrderDate != nil {
			orderDate = *in.OrderDate
		}

		order := &entity.SupplierOrder{
			ID:                   repository.NewID(),
			OrderNumber:          number,
			SupplierID:           in.SupplierID,
			OrderDate:            orderDate,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
			Status:               entity.OrderStatusDraft,
			Currency:             in.Currency,
			ShippingCost:         in.ShippingCost,
			TaxAmount:            in.TaxAmount,
			PaymentTerms:         in.PaymentTerms,
			Notes:                in.Notes,
			CreatedBy:            operatorID,
		}
		order.Items = buildItems(order.ID, in.Items, false)
		order.RecalculateTotal()

		if err := orders.CreateHeader(ctx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}
		if err := orders.CreateItems(ctx, order.Items); err != nil {
			return fmt.Errorf("创建订单行项失败: %w", err)
		}
		if err := s.logActivity(ctx, s.activity.WithTx(tx), order, entity.ActivityCreate, "", order.Status,
			fmt.Sprintf("创建订单 %s，%d 个行项", order.OrderNumber, len(order.Items)), operatorID); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateOrder 更新订单：订单头字段覆盖，行项整体替换
func (s *OrderService) UpdateOrder(ctx context.Context, operatorID, id string, in *OrderInput) (*entity.SupplierOrder, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)

		order, err := orders.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		order.SupplierID = in.SupplierID
		if in.OrderDate != nil {
			order.OrderDate = *in.OrderDate
		}
		order.ExpectedDeliveryDate = in.ExpectedDeliveryDate
		order.Currency = in.Currency
		order.ShippingCost = in.ShippingCost
		order.TaxAmount = in.TaxAmount
		order.PaymentTerms = in.PaymentTerms
		order.Notes = in.Notes
		order.Items = buildItems(order.ID, in.Items, true)
		order.RecalculateTotal()
		order.Supplier = nil

		if err := orders.UpdateHeader(ctx, order); err != nil {
			return fmt.Errorf("更新订单失败: %w", err)
		}
		if err := orders.DeleteItems(ctx, order.ID); err != nil {
			return fmt.Errorf("删除原行项失败: %w", err)
		}
		if err := orders.CreateItems(ctx, order.Items); err != nil {
			return fmt.Errorf("写入行项失败: %w", err)
		}
		return s.logActivity(ctx, s.activity.WithTx(tx), order, entity.ActivityUpdate, "", "",
			fmt.Sprintf("更新订单，%d 个行项，总额 %s", len(order.Items), order.TotalAmount.StringFixed(2)), operatorID)
	})
	if err != nil {
		s.logger.Warn("Update order rolled back", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Supplier order updated", zap.String("order_id", id))
	return s.orders.FindByID(ctx, id)
}

// AddItemsInput 追加行项请求
type AddItemsInput struct {
	Items []OrderItemInput `json:"items" validate:"min=1,dive"`
}

// AddItems 向已有订单追加行项，新行项一律未收货；已交付或已取消的订单不能追加
func (s *OrderService) AddItems(ctx context.Context, operatorID, orderID string, items []OrderItemInput) (*entity.SupplierOrder, error) {
	if err := s.validate.Struct(&AddItemsInput{Items: items}); err != nil {
		return nil, toValidationError(err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)

		order, err := orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if entity.IsTerminalStatus(order.Status) {
			return fmt.Errorf("%w: %s 状态的订单不能追加行项", ErrInvalidTransition, order.Status)
		}

		added := buildItems(order.ID, items, false)
		offset := 0
		for _, it := range order.Items {
			if it.SortOrder > offset {
				offset = it.SortOrder
			}
		}
		for i := range added {
			added[i].SortOrder += offset
		}
		if err := orders.CreateItems(ctx, added); err != nil {
			return fmt.Errorf("写入行项失败: %w", err)
		}

		order.Items = append(order.Items, added...)
		order.RecalculateTotal()
		if err := orders.UpdateTotal(ctx, order.ID, order.TotalAmount); err != nil {
			return fmt.Errorf("更新订单总额失败: %w", err)
		}
		return s.logActivity(ctx, s.activity.WithTx(tx), order, entity.ActivityAddItems, "", "",
			fmt.Sprintf("追加 %d 个行项，总额 %s", len(added), order.TotalAmount.StringFixed(2)), operatorID)
	})
	if err != nil {
		s.logger.Warn("Add items rolled back", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Supplier order items added",
		zap.String("order_id", orderID),
		zap.Int("lines", len(items)),
	)
	return s.orders.FindByID(ctx, orderID)
}

// CancelOrder 取消订单，已交付或已取消的订单不可取消
func (s *OrderService) CancelOrder(ctx context.Context, operatorID, id string) (*entity.SupplierOrder, error) {
	return s.TransitionOrder(ctx, operatorID, id, entity.OrderStatusCancelled)
}

// TransitionOrder 按状态机变更订单状态
func (s *OrderService) TransitionOrder(ctx context.Context, operatorID, id, to string) (*entity.SupplierOrder, error) {
	if !entity.IsValidOrderStatus(to) {
		return nil, newValidationError("status", "未知状态")
	}

	var from string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)

		order, err := orders.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = order.Status
		if !entity.CanTransition(from, to) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
		}

		if err := orders.UpdateStatus(ctx, id, from, to); err != nil {
			return statusUpdateError(err, from, to)
		}
		return s.logActivity(ctx, s.activity.WithTx(tx), order, entity.ActivityStatusChange, from, to, "", operatorID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(from, to)
	s.logger.Info("Supplier order status changed",
		zap.String("order_id", id),
		zap.String("from", from),
		zap.String("to", to),
	)
	return s.orders.FindByID(ctx, id)
}

// DeleteOrder 删除订单及其行项
func (s *OrderService) DeleteOrder(ctx context.Context, operatorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)

		order, err := orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := orders.Delete(ctx, id); err != nil {
			return fmt.Errorf("删除订单失败: %w", err)
		}
		return s.logActivity(ctx, s.activity.WithTx(tx), order, entity.ActivityDelete, order.Status, "",
			"删除订单 "+order.OrderNumber, operatorID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Supplier order deleted", zap.String("order_id", id))
	return nil
}

// ListActivity 订单操作记录；订单删除后日志仍可查询，订单和日志都不存在时返回 ErrNotFound
func (s *OrderService) ListActivity(ctx context.Context, orderID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	logs, total, err := s.activity.FindByOrder(ctx, orderID, page, pageSize)
	if err != nil || total > 0 {
		return logs, total, err
	}
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

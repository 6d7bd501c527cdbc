package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lolo262652/amg-jewelry-manager/internal/srm/entity"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReceptionLine 单行收货数量（覆盖写，不是增量）
type ReceptionLine struct {
	ID               string `json:"id" validate:"required"`
	ReceivedQuantity int    `json:"received_quantity" validate:"gte=0"`
}

// ReceptionInput 收货请求
type ReceptionInput struct {
	Items []ReceptionLine `json:"items" validate:"min=1,dive"`
}

// UpdateReception 更新行项收货数量；整批在一个事务里，任一行失败全部回滚
func (s *OrderService) UpdateReception(ctx context.Context, operatorID, orderID string, in *ReceptionInput) (*entity.SupplierOrder, error) {
	if in == nil {
		return nil, newValidationError("items", "必填")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	var (
		fromStatus string
		toStatus   string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		activity := s.activity.WithTx(tx)

		order, err := orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == entity.OrderStatusCancelled {
			return fmt.Errorf("%w: 已取消的订单不能收货", ErrInvalidTransition)
		}

		index := make(map[string]int, len(order.Items))
		for i := range order.Items {
			index[order.Items[i].ID] = i
		}

		summary := make([]string, 0, len(in.Items))
		for n, line := range in.Items {
			i, ok := index[line.ID]
			if !ok {
				return fmt.Errorf("%w: 订单行 %s", repository.ErrNotFound, line.ID)
			}
			item := &order.Items[i]
			if line.ReceivedQuantity > item.Quantity {
				return newValidationError(fmt.Sprintf("items[%d].received_quantity", n),
					fmt.Sprintf("不能大于订购数量 %d", item.Quantity))
			}

			item.ReceivedQuantity = line.ReceivedQuantity
			item.Refresh()
			item.Product = nil
			if err := orders.SaveItem(ctx, item); err != nil {
				return fmt.Errorf("更新行项收货失败: %w", err)
			}
			summary = append(summary, fmt.Sprintf("%s=%d/%d", item.ProductID, item.ReceivedQuantity, item.Quantity))
		}

		if err := s.logActivity(ctx, activity, order, entity.ActivityReception, "", "",
			"收货: "+strings.Join(summary, ", "), operatorID); err != nil {
			return err
		}

		// 已发货的订单随收货进度推进状态
		fromStatus = order.Status
		toStatus = receptionStatus(order)
		if toStatus == fromStatus {
			return nil
		}
		if err := orders.UpdateStatus(ctx, order.ID, fromStatus, toStatus); err != nil {
			return statusUpdateError(err, fromStatus, toStatus)
		}
		return s.logActivity(ctx, activity, order, entity.ActivityStatusChange, fromStatus, toStatus, "收货自动更新", operatorID)
	})
	if err != nil {
		s.logger.Warn("Reception update rolled back", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	s.metrics.Received(len(in.Items))
	if toStatus != fromStatus {
		s.metrics.Transition(fromStatus, toStatus)
	}
	s.logger.Info("Reception updated",
		zap.String("order_id", orderID),
		zap.Int("lines", len(in.Items)),
		zap.String("status", toStatus),
	)
	return s.orders.FindByID(ctx, orderID)
}

// receptionStatus 只对 shipped / partially_delivered 的订单生效
func receptionStatus(order *entity.SupplierOrder) string {
	if order.Status != entity.OrderStatusShipped && order.Status != entity.OrderStatusPartiallyDelivered {
		return order.Status
	}
	allReceived, anyReceived := order.ReceptionProgress()
	switch {
	case allReceived:
		return entity.OrderStatusDelivered
	case anyReceived:
		return entity.OrderStatusPartiallyDelivered
	default:
		return order.Status
	}
}

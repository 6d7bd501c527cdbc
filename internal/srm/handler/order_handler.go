package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/repository"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/service"
)

const (
	defaultOrderLimit = 10
	maxOrderLimit     = 100
)

// OrderHandler 供应商订单处理器
type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// parseListQuery 解析列表参数，limit=0 表示全部
func parseListQuery(c *gin.Context) (repository.OrderListQuery, error) {
	q := repository.OrderListQuery{
		Page:       1,
		Limit:      defaultOrderLimit,
		Search:     c.Query("search"),
		Status:     c.Query("status"),
		SupplierID: c.Query("supplier_id"),
		SortBy:     c.DefaultQuery("sort_by", "order_date"),
		SortDesc:   true,
	}

	if p := c.Query("page"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 {
			return q, fmt.Errorf("page 参数错误")
		}
		q.Page = v
	}
	if l := c.Query("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 {
			return q, fmt.Errorf("limit 参数错误")
		}
		if v > maxOrderLimit {
			v = maxOrderLimit
		}
		q.Limit = v
	}

	switch strings.ToLower(c.DefaultQuery("sort_order", "desc")) {
	case "desc":
		q.SortDesc = true
	case "asc":
		q.SortDesc = false
	default:
		return q, fmt.Errorf("sort_order 只能是 asc 或 desc")
	}

	if v := c.Query("date_from"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return q, fmt.Errorf("date_from 参数错误")
		}
		q.DateFrom = &t
	}
	if v := c.Query("date_to"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return q, fmt.Errorf("date_to 参数错误")
		}
		// 只给日期时包含当天
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		q.DateTo = &t
	}
	return q, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}

// ListOrders 订单列表
// GET /api/v1/supplier-orders?page=1&limit=10&search=xxx&status=xxx&supplier_id=xxx&date_from=2025-03-01&date_to=2025-03-31&sort_by=order_date&sort_order=desc
func (h *OrderHandler) ListOrders(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	items, total, err := h.svc.ListOrders(c.Request.Context(), q)
	if err != nil {
		ServiceError(c, "获取订单列表失败", err)
		return
	}

	Success(c, ListResponse{
		Items:      items,
		Pagination: NewPagination(q.Page, q.Limit, total),
	})
}

// ExportOrders 导出订单（筛选条件同列表）
// GET /api/v1/supplier-orders/export
func (h *OrderHandler) ExportOrders(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	f, filename, err := h.svc.ExportOrders(c.Request.Context(), q)
	if err != nil {
		ServiceError(c, "导出失败", err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// GetOrder 订单详情
// GET /api/v1/supplier-orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, "订单不存在", err)
		return
	}
	Success(c, order)
}

// CreateOrder 创建订单
// POST /api/v1/supplier-orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.OrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, "创建订单失败", err)
		return
	}
	Created(c, order)
}

// UpdateOrder 更新订单（行项整体替换）
// PUT /api/v1/supplier-orders/:id
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var req service.OrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.UpdateOrder(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, "更新订单失败", err)
		return
	}
	Success(c, order)
}

// AddItems 追加订单行项
// POST /api/v1/supplier-orders/:id/items
func (h *OrderHandler) AddItems(c *gin.Context) {
	var req service.AddItemsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.AddItems(c.Request.Context(), GetUserID(c), c.Param("id"), req.Items)
	if err != nil {
		ServiceError(c, "追加行项失败", err)
		return
	}
	Success(c, order)
}

// CancelOrder 取消订单
// POST /api/v1/supplier-orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.svc.CancelOrder(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		ServiceError(c, "取消订单失败", err)
		return
	}
	Success(c, order)
}

// UpdateStatusRequest 状态变更请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 变更订单状态
// POST /api/v1/supplier-orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.TransitionOrder(c.Request.Context(), GetUserID(c), c.Param("id"), req.Status)
	if err != nil {
		ServiceError(c, "状态变更失败", err)
		return
	}
	Success(c, order)
}

// UpdateReception 更新收货数量
// PUT /api/v1/supplier-orders/:id/reception
func (h *OrderHandler) UpdateReception(c *gin.Context) {
	var req service.ReceptionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.UpdateReception(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, "收货失败", err)
		return
	}
	Success(c, order)
}

// DeleteOrder 删除订单
// DELETE /api/v1/supplier-orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.svc.DeleteOrder(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		ServiceError(c, "删除订单失败", err)
		return
	}
	Success(c, nil)
}

// ListActivity 订单操作记录
// GET /api/v1/supplier-orders/:id/activity
func (h *OrderHandler) ListActivity(c *gin.Context) {
	page, pageSize := GetPagination(c)

	items, total, err := h.svc.ListActivity(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		ServiceError(c, "获取操作记录失败", err)
		return
	}

	Success(c, ListResponse{
		Items:      items,
		Pagination: NewPagination(page, pageSize, total),
	})
}

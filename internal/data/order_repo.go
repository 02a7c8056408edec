package data

import (
	"context"
	"errors"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// orderRepo 积分订单数据访问
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单 repo（返回 biz.OrderRepo 接口）
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateOrder 创建 pending 订单
func (r *orderRepo) CreateOrder(ctx context.Context, order *biz.Order) error {
	m := &model.CreditOrder{
		ID:              order.ID,
		UserID:          order.UserID,
		PlanID:          order.PlanID,
		PlanName:        order.PlanName,
		Credits:         order.Credits,
		Amount:          order.Amount,
		Currency:        order.Currency,
		ExternalOrderID: nullable(order.ExternalOrderID),
		Status:          order.Status,
	}
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	order.CreatedAt = m.CreatedAt
	order.UpdatedAt = m.UpdatedAt
	return nil
}

// GetOrder 通过订单ID查询，不存在返回 nil
func (r *orderRepo) GetOrder(ctx context.Context, orderID string) (*biz.Order, error) {
	return r.first(ctx, "id = ?", orderID)
}

// GetOrderByExternalID 通过 PayPal 订单ID查询，不存在返回 nil
func (r *orderRepo) GetOrderByExternalID(ctx context.Context, externalOrderID string) (*biz.Order, error) {
	return r.first(ctx, "external_order_id = ?", externalOrderID)
}

// ListOrdersByUser 用户订单，按创建时间倒序
func (r *orderRepo) ListOrdersByUser(ctx context.Context, userID string, limit int) ([]*biz.Order, error) {
	var models []model.CreditOrder
	if err := r.data.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return toBizOrders(models), nil
}

// SetExternalOrderID 写入 PayPal 订单ID，已写入的不会被覆盖
func (r *orderRepo) SetExternalOrderID(ctx context.Context, orderID, externalOrderID string) (bool, error) {
	return r.transition(ctx, r.data.db.WithContext(ctx).Model(&model.CreditOrder{}).
		Where("id = ? AND status = ? AND external_order_id IS NULL", orderID, constants.OrderStatusPending),
		map[string]interface{}{"external_order_id": externalOrderID})
}

// MarkCompleted pending -> completed
func (r *orderRepo) MarkCompleted(ctx context.Context, orderID, captureID string, capturedAt time.Time) (bool, error) {
	return r.transition(ctx, r.pending(ctx, orderID), map[string]interface{}{
		"status":      constants.OrderStatusCompleted,
		"capture_id":  captureID,
		"captured_at": capturedAt,
	})
}

// MarkFailed pending -> failed
func (r *orderRepo) MarkFailed(ctx context.Context, orderID, reason string) (bool, error) {
	return r.transition(ctx, r.pending(ctx, orderID), map[string]interface{}{
		"status":        constants.OrderStatusFailed,
		"error_message": truncate(reason, 512),
	})
}

// MarkCancelled pending -> cancelled
func (r *orderRepo) MarkCancelled(ctx context.Context, orderID, reason string) (bool, error) {
	return r.transition(ctx, r.pending(ctx, orderID), map[string]interface{}{
		"status":        constants.OrderStatusCancelled,
		"error_message": truncate(reason, 512),
	})
}

// ListCompletedWithoutCredit 已完成但没有对应 purchase 流水的订单
func (r *orderRepo) ListCompletedWithoutCredit(ctx context.Context, limit int) ([]*biz.Order, error) {
	var models []model.CreditOrder
	if err := r.data.db.WithContext(ctx).
		Select("credit_order.*").
		Joins("LEFT JOIN credit_usage_record ON credit_usage_record.order_id = credit_order.id AND credit_usage_record.type = ?", constants.UsageTypePurchase).
		Where("credit_order.status = ? AND credit_usage_record.id IS NULL", constants.OrderStatusCompleted).
		Order("credit_order.created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		r.log.Errorf("ListCompletedWithoutCredit failed: %v", err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return toBizOrders(models), nil
}

// ListStalePending 创建时间早于 createdBefore 的 pending 订单，包括未关联 PayPal 订单的
func (r *orderRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*biz.Order, error) {
	var models []model.CreditOrder
	if err := r.data.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", constants.OrderStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		r.log.Errorf("ListStalePending failed: %v", err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return toBizOrders(models), nil
}

func (r *orderRepo) pending(ctx context.Context, orderID string) *gorm.DB {
	return r.data.db.WithContext(ctx).Model(&model.CreditOrder{}).
		Where("id = ? AND status = ?", orderID, constants.OrderStatusPending)
}

func (r *orderRepo) transition(ctx context.Context, query *gorm.DB, updates map[string]interface{}) (bool, error) {
	res := query.Updates(updates)
	if res.Error != nil {
		r.log.WithContext(ctx).Errorf("Order transition failed: updates=%v, error=%v", updates, res.Error)
		return false, creditErrors.Wrap(res.Error, creditErrors.ErrCodeStorageUnavailable)
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepo) first(ctx context.Context, query string, arg string) (*biz.Order, error) {
	var m model.CreditOrder
	if err := r.data.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return toBizOrder(&m), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func toBizOrders(models []model.CreditOrder) []*biz.Order {
	orders := make([]*biz.Order, 0, len(models))
	for i := range models {
		orders = append(orders, toBizOrder(&models[i]))
	}
	return orders
}

func toBizOrder(m *model.CreditOrder) *biz.Order {
	return &biz.Order{
		ID:              m.ID,
		UserID:          m.UserID,
		PlanID:          m.PlanID,
		PlanName:        m.PlanName,
		Credits:         m.Credits,
		Amount:          m.Amount,
		Currency:        m.Currency,
		ExternalOrderID: deref(m.ExternalOrderID),
		CaptureID:       m.CaptureID,
		Status:          m.Status,
		ErrorMessage:    m.ErrorMessage,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		CapturedAt:      m.CapturedAt,
	}
}

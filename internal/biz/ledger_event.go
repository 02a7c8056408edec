package biz

import (
	"context"
	"time"
)

// LedgerEvent 账本变更事件，账本提交后投递到消息队列
type LedgerEvent struct {
	EventID     string    `json:"event_id"` // 与流水ID一致，消费端据此去重
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	OrderID     string    `json:"order_id,omitempty"`
	FeatureID   string    `json:"feature_id,omitempty"`
	Description string    `json:"description"`
	Remaining   int64     `json:"remaining_credits"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// LedgerEventPublisher 账本事件投递接口
type LedgerEventPublisher interface {
	Publish(ctx context.Context, event *LedgerEvent) error
}

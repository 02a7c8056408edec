package model

import (
	"time"

	"credit-service/internal/constants"

	"github.com/shopspring/decimal"
)

// 订单状态常量（引用 constants 包中的常量，保持一致性）
const (
	OrderStatusPending   = constants.OrderStatusPending
	OrderStatusCompleted = constants.OrderStatusCompleted
	OrderStatusFailed    = constants.OrderStatusFailed
	OrderStatusCancelled = constants.OrderStatusCancelled
)

// CreditOrder 积分购买订单表
type CreditOrder struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)"`
	UserID          string          `gorm:"type:varchar(64);not null;index:idx_order_user_created,priority:1"`
	PlanID          string          `gorm:"type:varchar(32);not null"`
	PlanName        string          `gorm:"type:varchar(64);not null"`
	Credits         int64           `gorm:"not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency        string          `gorm:"type:varchar(8);not null"`
	ExternalOrderID *string         `gorm:"type:varchar(64);uniqueIndex"` // PayPal 订单ID
	CaptureID       string          `gorm:"type:varchar(64);not null;default:''"`
	Status          string          `gorm:"type:varchar(16);not null;index"`
	ErrorMessage    string          `gorm:"type:varchar(512);not null;default:''"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index:idx_order_user_created,priority:2"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
	CapturedAt      *time.Time
}

// TableName 指定表名
func (CreditOrder) TableName() string {
	return "credit_order"
}

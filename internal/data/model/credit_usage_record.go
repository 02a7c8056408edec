package model

import (
	"time"

	"credit-service/internal/constants"
)

// 流水类型常量（引用 constants 包中的常量，保持一致性）
const (
	UsageTypePurchase   = constants.UsageTypePurchase
	UsageTypeUsage      = constants.UsageTypeUsage
	UsageTypeRefund     = constants.UsageTypeRefund
	UsageTypeAdjustment = constants.UsageTypeAdjustment
)

// CreditUsageRecord 积分流水表，只追加
type CreditUsageRecord struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_record_user_created,priority:1"`
	OrderID     *string   `gorm:"type:varchar(36);uniqueIndex"` // 仅 purchase 流水，保证一个订单只入账一次
	FeatureID   *string   `gorm:"type:varchar(32);index"`
	Amount      int64     `gorm:"not null"` // 入账为正，扣减为负
	Type        string    `gorm:"type:varchar(16);not null"`
	Description string    `gorm:"type:varchar(255);not null;default:''"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_record_user_created,priority:2"`
}

// TableName 指定表名
func (CreditUsageRecord) TableName() string {
	return "credit_usage_record"
}

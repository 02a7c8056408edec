package model

import (
	"time"
)

// CreditAccount 积分账户表
type CreditAccount struct {
	UserID           string    `gorm:"primaryKey;type:varchar(64)"`
	TotalCredits     int64     `gorm:"not null;default:0"`
	UsedCredits      int64     `gorm:"not null;default:0"`
	RemainingCredits int64     `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CreditAccount) TableName() string {
	return "credit_account"
}

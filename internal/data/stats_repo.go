package data

import (
	"context"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// statsRepo 统计相关数据访问
type statsRepo struct {
	data *Data
	log  *log.Helper
}

// NewStatsRepo 创建统计 repo（返回 biz.StatsRepo 接口）
func NewStatsRepo(data *Data, logger log.Logger) biz.StatsRepo {
	return &statsRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetUsageSummary 按功能分组统计扣费与退回，购买入账单独汇总
func (r *statsRepo) GetUsageSummary(ctx context.Context, userID string, from, to time.Time) (*biz.UsageSummary, error) {
	db := r.data.db.WithContext(ctx)

	var featureStats []struct {
		FeatureID       string
		Calls           int64
		CreditsUsed     int64
		CreditsRefunded int64
	}
	if err := db.Model(&model.CreditUsageRecord{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ? AND feature_id IS NOT NULL", userID, from, to).
		Select(
			"feature_id",
			fmt.Sprintf("SUM(CASE WHEN type = '%s' THEN 1 ELSE 0 END) as calls", constants.UsageTypeUsage),
			fmt.Sprintf("SUM(CASE WHEN type = '%s' THEN -amount ELSE 0 END) as credits_used", constants.UsageTypeUsage),
			fmt.Sprintf("SUM(CASE WHEN type = '%s' THEN amount ELSE 0 END) as credits_refunded", constants.UsageTypeRefund),
		).
		Group("feature_id").
		Order("feature_id").
		Scan(&featureStats).Error; err != nil {
		r.log.Errorf("GetUsageSummary by feature failed: userID=%s, error=%v", userID, err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}

	var purchased int64
	if err := db.Model(&model.CreditUsageRecord{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ? AND type = ?", userID, from, to, constants.UsageTypePurchase).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&purchased).Error; err != nil {
		r.log.Errorf("GetUsageSummary purchases failed: userID=%s, error=%v", userID, err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}

	summary := &biz.UsageSummary{
		UserID:           userID,
		CreditsPurchased: purchased,
		Features:         make([]*biz.FeatureUsage, 0, len(featureStats)),
	}
	for _, s := range featureStats {
		summary.Features = append(summary.Features, &biz.FeatureUsage{
			FeatureID:       s.FeatureID,
			Calls:           s.Calls,
			CreditsUsed:     s.CreditsUsed,
			CreditsRefunded: s.CreditsRefunded,
		})
		summary.TotalCalls += s.Calls
		summary.CreditsUsed += s.CreditsUsed
		summary.CreditsRefunded += s.CreditsRefunded
	}
	return summary, nil
}

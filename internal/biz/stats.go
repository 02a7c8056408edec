package biz

import (
	"context"
	"strings"
	"time"

	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// 统计周期
const (
	StatsPeriodToday = "today"
	StatsPeriodMonth = "month"
)

// FeatureUsage 单个功能的使用统计
type FeatureUsage struct {
	FeatureID       string
	Calls           int64 // 扣费次数
	CreditsUsed     int64
	CreditsRefunded int64
}

// UsageSummary 用户积分使用汇总
type UsageSummary struct {
	UserID           string
	Period           string // today 或 month
	From             time.Time
	To               time.Time
	TotalCalls       int64
	CreditsUsed      int64
	CreditsRefunded  int64
	CreditsPurchased int64
	Features         []*FeatureUsage
}

// StatsRepo 统计数据层接口（定义在 biz 层）
type StatsRepo interface {
	// GetUsageSummary 统计 [from, to) 区间内的流水
	GetUsageSummary(ctx context.Context, userID string, from, to time.Time) (*UsageSummary, error)
}

// StatsUseCase 统计业务逻辑
type StatsUseCase struct {
	repo StatsRepo
	log  *log.Helper
	now  func() time.Time
}

// NewStatsUseCase 创建统计 UseCase
func NewStatsUseCase(repo StatsRepo, logger log.Logger) *StatsUseCase {
	return &StatsUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
		now:  time.Now,
	}
}

// GetUsageSummary 按周期汇总积分使用，period 为空时按本月统计
func (uc *StatsUseCase) GetUsageSummary(ctx context.Context, userID, period string) (*UsageSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	from, to, err := periodRange(uc.now(), period)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = StatsPeriodMonth
	}

	summary, err := uc.repo.GetUsageSummary(ctx, userID, from, to)
	if err != nil {
		uc.log.Errorf("GetUsageSummary failed: userID=%s, period=%s, error=%v", userID, period, err)
		return nil, err
	}
	summary.UserID = userID
	summary.Period = period
	summary.From = from
	summary.To = to
	return summary, nil
}

func periodRange(now time.Time, period string) (from, to time.Time, err error) {
	switch period {
	case StatsPeriodToday:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return from, from.AddDate(0, 0, 1), nil
	case StatsPeriodMonth, "":
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return from, from.AddDate(0, 1, 0), nil
	}
	return from, to, creditErrors.Newf(creditErrors.ErrCodeInvalidArgument, "period must be today or month")
}

package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// Account 积分账户领域对象
type Account struct {
	UserID           string
	TotalCredits     int64
	UsedCredits      int64
	RemainingCredits int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UsageRecord 积分流水领域对象，只追加
type UsageRecord struct {
	ID          string
	UserID      string
	OrderID     string // 仅 purchase 流水
	FeatureID   string
	Amount      int64 // 入账为正，扣减为负
	Type        string
	Description string
	CreatedAt   time.Time
}

// LedgerEntry 一次账本变更请求，Amount 恒为正数
type LedgerEntry struct {
	UserID      string
	Amount      int64
	Type        string
	OrderID     string
	FeatureID   string
	Description string
}

// LedgerResult 账本变更结果
type LedgerResult struct {
	Account   *Account
	Record    *UsageRecord // Duplicate 时为 nil
	Duplicate bool         // 该订单此前已入账
}

// AccountDrift 账户余额与流水汇总的对照
type AccountDrift struct {
	UserID           string
	TotalCredits     int64
	UsedCredits      int64
	RemainingCredits int64
	RecordSum        int64
}

// Consistent 余额等于流水之和，且 total - used == remaining
func (d *AccountDrift) Consistent() bool {
	return d.RecordSum == d.RemainingCredits && d.TotalCredits-d.UsedCredits == d.RemainingCredits
}

// AccountRepo 积分账户数据层接口（定义在 biz 层）
type AccountRepo interface {
	GetOrCreateAccount(ctx context.Context, userID string) (*Account, error)
	// Credit 增加 total/remaining 并写入流水；OrderID 已入账时返回 Duplicate
	Credit(ctx context.Context, entry *LedgerEntry) (*LedgerResult, error)
	// Debit 条件扣减，余额不足返回 ErrCodeInsufficientCredits 且不做任何修改
	Debit(ctx context.Context, entry *LedgerEntry) (*LedgerResult, error)
	ListUsageRecords(ctx context.Context, userID string, page, pageSize int) ([]*UsageRecord, int64, error)
	GetAccountDrift(ctx context.Context, userID string) (*AccountDrift, error)
	ListDriftedAccounts(ctx context.Context, limit int) ([]*AccountDrift, error)
}

// LedgerUseCase 积分账本业务逻辑
type LedgerUseCase struct {
	repo      AccountRepo
	publisher LedgerEventPublisher
	conf      *CreditConfig
	log       *log.Helper
	metrics   *metrics.CreditMetrics
}

// NewLedgerUseCase 创建账本 UseCase
func NewLedgerUseCase(repo AccountRepo, publisher LedgerEventPublisher, conf *CreditConfig, logger log.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		repo:      repo,
		publisher: publisher,
		conf:      conf,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// GetBalance 获取余额，账户不存在时创建零余额账户
func (uc *LedgerUseCase) GetBalance(ctx context.Context, userID string) (*Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	return uc.repo.GetOrCreateAccount(ctx, userID)
}

// Credit 购买入账；orderID 非空时同一订单只入账一次
func (uc *LedgerUseCase) Credit(ctx context.Context, userID string, amount int64, orderID string) (*LedgerResult, error) {
	return uc.apply(ctx, &LedgerEntry{
		UserID:      userID,
		Amount:      amount,
		Type:        constants.UsageTypePurchase,
		OrderID:     orderID,
		Description: fmt.Sprintf("Purchased package: +%d credits", amount),
	})
}

// CreditOrder 为已完成订单入账（幂等）
func (uc *LedgerUseCase) CreditOrder(ctx context.Context, order *Order) (*LedgerResult, error) {
	if order.Status != constants.OrderStatusCompleted {
		return nil, creditErrors.Newf(creditErrors.ErrCodeInvalidArgument, "order is not completed")
	}
	return uc.Credit(ctx, order.UserID, order.Credits, order.ID)
}

// Debit 扣减积分
func (uc *LedgerUseCase) Debit(ctx context.Context, userID string, amount int64, featureID, description string) (*LedgerResult, error) {
	return uc.apply(ctx, &LedgerEntry{
		UserID:      userID,
		Amount:      amount,
		Type:        constants.UsageTypeUsage,
		FeatureID:   featureID,
		Description: description,
	})
}

// Refund 退回积分（作为新的入账流水，不回滚原扣减）
func (uc *LedgerUseCase) Refund(ctx context.Context, userID string, amount int64, featureID, description string) (*LedgerResult, error) {
	return uc.apply(ctx, &LedgerEntry{
		UserID:      userID,
		Amount:      amount,
		Type:        constants.UsageTypeRefund,
		FeatureID:   featureID,
		Description: description,
	})
}

// ListUsageRecords 分页查询流水
func (uc *LedgerUseCase) ListUsageRecords(ctx context.Context, userID string, page, pageSize int) ([]*UsageRecord, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	if page <= 0 {
		page = constants.DefaultPage
	}
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return uc.repo.ListUsageRecords(ctx, userID, page, pageSize)
}

// Audit 核对单个账户余额与流水
func (uc *LedgerUseCase) Audit(ctx context.Context, userID string) (*AccountDrift, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	return uc.repo.GetAccountDrift(ctx, userID)
}

// AuditAll 列出所有不一致的账户
func (uc *LedgerUseCase) AuditAll(ctx context.Context, limit int) ([]*AccountDrift, error) {
	if limit <= 0 {
		limit = uc.conf.ReconcileBatchSize
	}
	return uc.repo.ListDriftedAccounts(ctx, limit)
}

func (uc *LedgerUseCase) apply(ctx context.Context, entry *LedgerEntry) (*LedgerResult, error) {
	if strings.TrimSpace(entry.UserID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	if entry.Amount <= 0 {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidAmount)
	}

	operation := "credit"
	if entry.Type == constants.UsageTypeUsage {
		operation = "debit"
	}

	startTime := time.Now()
	var (
		result *LedgerResult
		err    error
	)
	if operation == "debit" {
		result, err = uc.repo.Debit(ctx, entry)
	} else {
		result, err = uc.repo.Credit(ctx, entry)
	}
	if uc.metrics != nil {
		uc.metrics.LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}

	if err != nil {
		if creditErrors.Is(err, creditErrors.ErrCodeInsufficientCredits) {
			uc.log.Infof("Debit rejected, insufficient credits: userID=%s, amount=%d", entry.UserID, entry.Amount)
			uc.observe(operation, constants.ResultInsufficient)
			return nil, err
		}
		uc.log.Errorf("Ledger %s failed: userID=%s, amount=%d, orderID=%s, error=%v", operation, entry.UserID, entry.Amount, entry.OrderID, err)
		uc.observe(operation, constants.ResultError)
		return nil, err
	}

	if result.Duplicate {
		uc.log.Infof("Order already credited: userID=%s, orderID=%s", entry.UserID, entry.OrderID)
		uc.observe(operation, constants.ResultDuplicate)
		return result, nil
	}

	uc.observe(operation, constants.ResultSuccess)
	if uc.metrics != nil {
		if operation == "debit" {
			uc.metrics.CreditsConsumed.WithLabelValues(entry.FeatureID).Add(float64(entry.Amount))
			if result.Account.RemainingCredits < uc.conf.BalanceLowThreshold {
				uc.metrics.BalanceLowTotal.Inc()
			}
		} else {
			uc.metrics.CreditsGranted.WithLabelValues(entry.Type).Add(float64(entry.Amount))
		}
	}
	uc.publish(ctx, result)
	return result, nil
}

func (uc *LedgerUseCase) observe(operation, result string) {
	if uc.metrics != nil {
		uc.metrics.LedgerOperationTotal.WithLabelValues(operation, result).Inc()
	}
}

// publish 投递账本事件，失败只记录日志，不影响已提交的账本
func (uc *LedgerUseCase) publish(ctx context.Context, result *LedgerResult) {
	if uc.publisher == nil || result.Record == nil {
		return
	}
	record := result.Record
	event := &LedgerEvent{
		EventID:     record.ID,
		UserID:      record.UserID,
		Type:        record.Type,
		Amount:      record.Amount,
		OrderID:     record.OrderID,
		FeatureID:   record.FeatureID,
		Description: record.Description,
		Remaining:   result.Account.RemainingCredits,
		OccurredAt:  record.CreatedAt,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, event); err != nil {
		uc.log.Warnf("Publish ledger event failed: eventID=%s, userID=%s, error=%v", event.EventID, event.UserID, err)
		if uc.metrics != nil {
			uc.metrics.LedgerEventPublishTotal.WithLabelValues(constants.ResultFailed).Inc()
		}
		return
	}
	if uc.metrics != nil {
		uc.metrics.LedgerEventPublishTotal.WithLabelValues(constants.ResultSuccess).Inc()
	}
}

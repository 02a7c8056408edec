package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountRepo 积分账户与流水数据访问
type accountRepo struct {
	data *Data
	log  *log.Helper
}

// NewAccountRepo 创建账户 repo（返回 biz.AccountRepo 接口）
func NewAccountRepo(data *Data, logger log.Logger) biz.AccountRepo {
	return &accountRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetOrCreateAccount 获取账户，不存在时创建零余额账户
func (r *accountRepo) GetOrCreateAccount(ctx context.Context, userID string) (*biz.Account, error) {
	db := r.data.db.WithContext(ctx)
	if err := ensureAccount(db, userID); err != nil {
		r.log.Errorf("ensureAccount failed: userID=%s, error=%v", userID, err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	var m model.CreditAccount
	if err := db.Where("user_id = ?", userID).First(&m).Error; err != nil {
		r.log.Errorf("GetAccount failed: userID=%s, error=%v", userID, err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return toBizAccount(&m), nil
}

// Credit 入账：锁定账户行，检查订单是否已入账，增加余额并写流水，在同一事务内完成
func (r *accountRepo) Credit(ctx context.Context, entry *biz.LedgerEntry) (*biz.LedgerResult, error) {
	result := &biz.LedgerResult{}
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureAccount(tx, entry.UserID); err != nil {
			return err
		}

		var account model.CreditAccount
		if err := forUpdate(tx).Where("user_id = ?", entry.UserID).First(&account).Error; err != nil {
			return err
		}

		if entry.OrderID != "" {
			var count int64
			if err := tx.Model(&model.CreditUsageRecord{}).
				Where("order_id = ?", entry.OrderID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				result.Duplicate = true
				result.Account = toBizAccount(&account)
				return nil
			}
		}

		if err := tx.Model(&account).Updates(map[string]interface{}{
			"total_credits":     gorm.Expr("total_credits + ?", entry.Amount),
			"remaining_credits": gorm.Expr("remaining_credits + ?", entry.Amount),
		}).Error; err != nil {
			return err
		}

		record, err := appendRecord(tx, entry, entry.Amount)
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", entry.UserID).First(&account).Error; err != nil {
			return err
		}
		result.Account = toBizAccount(&account)
		result.Record = toBizUsageRecord(record)
		return nil
	})
	if err != nil {
		// 并发重复入账由 order_id 唯一索引兜底
		if entry.OrderID != "" && isDuplicateKey(err) {
			account, getErr := r.GetOrCreateAccount(ctx, entry.UserID)
			if getErr != nil {
				return nil, getErr
			}
			return &biz.LedgerResult{Account: account, Duplicate: true}, nil
		}
		r.log.Errorf("Credit failed: userID=%s, amount=%d, orderID=%s, error=%v", entry.UserID, entry.Amount, entry.OrderID, err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return result, nil
}

// Debit 条件扣减：remaining_credits >= amount 与扣减在同一条 UPDATE 中完成
func (r *accountRepo) Debit(ctx context.Context, entry *biz.LedgerEntry) (*biz.LedgerResult, error) {
	result := &biz.LedgerResult{}
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureAccount(tx, entry.UserID); err != nil {
			return err
		}

		res := tx.Model(&model.CreditAccount{}).
			Where("user_id = ? AND remaining_credits >= ?", entry.UserID, entry.Amount).
			Updates(map[string]interface{}{
				"used_credits":      gorm.Expr("used_credits + ?", entry.Amount),
				"remaining_credits": gorm.Expr("remaining_credits - ?", entry.Amount),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return creditErrors.New(creditErrors.ErrCodeInsufficientCredits)
		}

		record, err := appendRecord(tx, entry, -entry.Amount)
		if err != nil {
			return err
		}
		var account model.CreditAccount
		if err := tx.Where("user_id = ?", entry.UserID).First(&account).Error; err != nil {
			return err
		}
		result.Account = toBizAccount(&account)
		result.Record = toBizUsageRecord(record)
		return nil
	})
	if err != nil {
		if creditErrors.Is(err, creditErrors.ErrCodeInsufficientCredits) {
			return nil, err
		}
		r.log.Errorf("Debit failed: userID=%s, amount=%d, error=%v", entry.UserID, entry.Amount, err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return result, nil
}

// ListUsageRecords 分页查询流水，按时间倒序
func (r *accountRepo) ListUsageRecords(ctx context.Context, userID string, page, pageSize int) ([]*biz.UsageRecord, int64, error) {
	var (
		models []model.CreditUsageRecord
		total  int64
	)
	db := r.data.db.WithContext(ctx).Model(&model.CreditUsageRecord{}).
		Where("user_id = ?", userID).
		Session(&gorm.Session{})
	if err := db.Count(&total).Error; err != nil {
		r.log.Errorf("CountUsageRecords failed: userID=%s, error=%v", userID, err)
		return nil, 0, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		r.log.Errorf("ListUsageRecords failed: userID=%s, error=%v", userID, err)
		return nil, 0, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}

	records := make([]*biz.UsageRecord, 0, len(models))
	for i := range models {
		records = append(records, toBizUsageRecord(&models[i]))
	}
	return records, total, nil
}

// GetAccountDrift 读取账户及其流水汇总
func (r *accountRepo) GetAccountDrift(ctx context.Context, userID string) (*biz.AccountDrift, error) {
	db := r.data.db.WithContext(ctx)
	var account model.CreditAccount
	if err := db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &biz.AccountDrift{UserID: userID}, nil
		}
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}

	var sum int64
	if err := db.Model(&model.CreditUsageRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}
	return &biz.AccountDrift{
		UserID:           account.UserID,
		TotalCredits:     account.TotalCredits,
		UsedCredits:      account.UsedCredits,
		RemainingCredits: account.RemainingCredits,
		RecordSum:        sum,
	}, nil
}

// ListDriftedAccounts 列出余额与流水之和不一致的账户
func (r *accountRepo) ListDriftedAccounts(ctx context.Context, limit int) ([]*biz.AccountDrift, error) {
	var rows []struct {
		UserID           string
		TotalCredits     int64
		UsedCredits      int64
		RemainingCredits int64
		RecordSum        int64
	}
	query := fmt.Sprintf(`SELECT a.user_id, a.total_credits, a.used_credits, a.remaining_credits,
	COALESCE(SUM(r.amount), 0) AS record_sum
FROM %s a LEFT JOIN %s r ON r.user_id = a.user_id
GROUP BY a.user_id, a.total_credits, a.used_credits, a.remaining_credits
HAVING COALESCE(SUM(r.amount), 0) <> a.remaining_credits
	OR a.total_credits - a.used_credits <> a.remaining_credits
LIMIT ?`, model.CreditAccount{}.TableName(), model.CreditUsageRecord{}.TableName())

	if err := r.data.db.WithContext(ctx).Raw(query, limit).Scan(&rows).Error; err != nil {
		r.log.Errorf("ListDriftedAccounts failed: %v", err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeStorageUnavailable)
	}

	drifts := make([]*biz.AccountDrift, 0, len(rows))
	for _, row := range rows {
		drifts = append(drifts, &biz.AccountDrift{
			UserID:           row.UserID,
			TotalCredits:     row.TotalCredits,
			UsedCredits:      row.UsedCredits,
			RemainingCredits: row.RemainingCredits,
			RecordSum:        row.RecordSum,
		})
	}
	return drifts, nil
}

// forUpdate 行锁，sqlite 不支持 FOR UPDATE，单连接下事务本身已串行
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ensureAccount 账户不存在时插入零余额记录，已存在则不做任何修改
func ensureAccount(db *gorm.DB, userID string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.CreditAccount{UserID: userID}).Error
}

func appendRecord(tx *gorm.DB, entry *biz.LedgerEntry, amount int64) (*model.CreditUsageRecord, error) {
	record := &model.CreditUsageRecord{
		ID:          uuid.New().String(),
		UserID:      entry.UserID,
		OrderID:     nullable(entry.OrderID),
		FeatureID:   nullable(entry.FeatureID),
		Amount:      amount,
		Type:        entry.Type,
		Description: entry.Description,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toBizAccount(m *model.CreditAccount) *biz.Account {
	return &biz.Account{
		UserID:           m.UserID,
		TotalCredits:     m.TotalCredits,
		UsedCredits:      m.UsedCredits,
		RemainingCredits: m.RemainingCredits,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toBizUsageRecord(m *model.CreditUsageRecord) *biz.UsageRecord {
	return &biz.UsageRecord{
		ID:          m.ID,
		UserID:      m.UserID,
		OrderID:     deref(m.OrderID),
		FeatureID:   deref(m.FeatureID),
		Amount:      m.Amount,
		Type:        m.Type,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

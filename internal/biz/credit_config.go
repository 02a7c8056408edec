package biz

import (
	"fmt"
	"strings"
	"time"

	"credit-service/internal/conf"

	"github.com/shopspring/decimal"
)

// Plan 积分套餐
type Plan struct {
	ID       string
	Name     string
	Credits  int64
	Price    decimal.Decimal
	Currency string
}

// CreditConfig 积分业务配置
type CreditConfig struct {
	Plans                     []*Plan
	FeaturePrices             map[string]int64
	RefundOnGenerationFailure bool
	CaptureLockExpiry         time.Duration
	BalanceLowThreshold       int64 // 扣减后剩余积分低于该值时计入指标
	ReconcileBatchSize        int
	ReconcilePendingAfter     time.Duration

	planIndex map[string]*Plan
}

// defaultPlans 未配置套餐时使用
var defaultPlans = []*conf.Credit_Plan{
	{Id: "basic", Name: "Basic", Credits: 12, Price: "9.90", Currency: "USD"},
	{Id: "standard", Name: "Standard", Credits: 45, Price: "29.90", Currency: "USD"},
	{Id: "pro", Name: "Pro", Credits: 120, Price: "59.90", Currency: "USD"},
}

// NewCreditConfig 从配置创建 CreditConfig
func NewCreditConfig(c *conf.Bootstrap) (*CreditConfig, error) {
	config := &CreditConfig{
		FeaturePrices:         make(map[string]int64),
		CaptureLockExpiry:     30 * time.Second, // 默认值
		BalanceLowThreshold:   5,                // 默认值
		ReconcileBatchSize:    100,              // 默认值
		ReconcilePendingAfter: 30 * time.Minute, // 默认值
		planIndex:             make(map[string]*Plan),
	}

	plans := defaultPlans
	if c.Credit != nil {
		if len(c.Credit.Plans) > 0 {
			plans = c.Credit.Plans
		}
		for k, v := range c.Credit.FeaturePrices {
			config.FeaturePrices[k] = v
		}
		config.RefundOnGenerationFailure = c.Credit.RefundOnGenerationFailure
		if d := c.Credit.CaptureLockExpiry.AsDuration(); d > 0 {
			config.CaptureLockExpiry = d
		}
		if c.Credit.BalanceLowThreshold > 0 {
			config.BalanceLowThreshold = c.Credit.BalanceLowThreshold
		}
	}
	if c.Reconcile != nil {
		if c.Reconcile.BatchSize > 0 {
			config.ReconcileBatchSize = c.Reconcile.BatchSize
		}
		if d := c.Reconcile.PendingAfter.AsDuration(); d > 0 {
			config.ReconcilePendingAfter = d
		}
	}

	for _, p := range plans {
		plan, err := newPlan(p)
		if err != nil {
			return nil, err
		}
		if _, dup := config.planIndex[plan.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", plan.ID)
		}
		config.Plans = append(config.Plans, plan)
		config.planIndex[plan.ID] = plan
	}
	return config, nil
}

func newPlan(p *conf.Credit_Plan) (*Plan, error) {
	if p == nil || p.Id == "" {
		return nil, fmt.Errorf("plan id is required")
	}
	if p.Credits <= 0 {
		return nil, fmt.Errorf("plan %s: credits must be positive", p.Id)
	}
	// 价格可能带货币符号，例如 "$29.90"
	price, err := decimal.NewFromString(strings.TrimLeft(strings.TrimSpace(p.Price), "$¥￥"))
	if err != nil {
		return nil, fmt.Errorf("plan %s: invalid price %q: %w", p.Id, p.Price, err)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("plan %s: price must be positive", p.Id)
	}
	currency := strings.ToUpper(p.Currency)
	if currency == "" {
		currency = "USD"
	}
	name := p.Name
	if name == "" {
		name = p.Id
	}
	return &Plan{
		ID:       p.Id,
		Name:     name,
		Credits:  p.Credits,
		Price:    price,
		Currency: currency,
	}, nil
}

// Plan 按 ID 查找套餐
func (c *CreditConfig) Plan(id string) (*Plan, bool) {
	p, ok := c.planIndex[id]
	return p, ok
}

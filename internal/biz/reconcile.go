package biz

import (
	"context"
	"time"

	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ReconcileReport 一次对账的结果
type ReconcileReport struct {
	Credited  int // 已完成但未入账的订单，本次补入账
	Completed int // pending 订单经支付方确认已扣款
	Cancelled int // pending 订单经支付方确认已作废
	Failed    int // pending 订单从未关联 PayPal 订单，置为 failed
	Errors    int
	Drifted   []*AccountDrift
}

// ReconcileUseCase 对账任务
type ReconcileUseCase struct {
	orders  OrderRepo
	orderUC *OrderUseCase
	ledger  *LedgerUseCase
	conf    *CreditConfig
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewReconcileUseCase 创建对账 UseCase
func NewReconcileUseCase(orders OrderRepo, orderUC *OrderUseCase, ledger *LedgerUseCase, conf *CreditConfig, logger log.Logger) *ReconcileUseCase {
	return &ReconcileUseCase{
		orders:  orders,
		orderUC: orderUC,
		ledger:  ledger,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Run 执行一次对账：补入账、同步滞留订单、核对账户
func (uc *ReconcileUseCase) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	uncredited, err := uc.orders.ListCompletedWithoutCredit(ctx, uc.conf.ReconcileBatchSize)
	if err != nil {
		return nil, err
	}
	for _, order := range uncredited {
		result, err := uc.ledger.CreditOrder(ctx, order)
		if err != nil {
			uc.log.Errorf("Reconcile credit failed: orderID=%s, error=%v", order.ID, err)
			uc.repair("error")
			report.Errors++
			continue
		}
		if !result.Duplicate {
			uc.log.Warnf("Reconcile credited completed order: orderID=%s, userID=%s, credits=%d", order.ID, order.UserID, order.Credits)
			uc.repair("credit")
			report.Credited++
		}
	}

	stale, err := uc.orders.ListStalePending(ctx, time.Now().Add(-uc.conf.ReconcilePendingAfter), uc.conf.ReconcileBatchSize)
	if err != nil {
		return nil, err
	}
	for _, order := range stale {
		if order.ExternalOrderID == "" {
			// 下单时未拿到 PayPal 订单ID，用户从未收到支付链接
			failed, err := uc.orderUC.FailUnlinkedOrder(ctx, order)
			if err != nil {
				uc.log.Errorf("Reconcile fail unlinked order failed: orderID=%s, error=%v", order.ID, err)
				uc.repair("error")
				report.Errors++
				continue
			}
			if failed {
				uc.repair("fail")
				report.Failed++
			}
			continue
		}
		synced, err := uc.orderUC.SyncExternalOrder(ctx, order.ExternalOrderID)
		if err != nil {
			uc.log.Errorf("Reconcile sync failed: orderID=%s, externalOrderID=%s, error=%v", order.ID, order.ExternalOrderID, err)
			uc.repair("error")
			report.Errors++
			continue
		}
		switch synced.Status {
		case constants.OrderStatusCompleted:
			uc.repair("complete")
			report.Completed++
		case constants.OrderStatusCancelled:
			uc.repair("cancel")
			report.Cancelled++
		}
	}

	drifted, err := uc.ledger.AuditAll(ctx, uc.conf.ReconcileBatchSize)
	if err != nil {
		return nil, err
	}
	for _, d := range drifted {
		uc.log.Errorf("Ledger drift: userID=%s, total=%d, used=%d, remaining=%d, recordSum=%d",
			d.UserID, d.TotalCredits, d.UsedCredits, d.RemainingCredits, d.RecordSum)
	}
	if uc.metrics != nil {
		uc.metrics.LedgerDriftAccounts.Set(float64(len(drifted)))
	}
	report.Drifted = drifted
	return report, nil
}

func (uc *ReconcileUseCase) repair(kind string) {
	if uc.metrics != nil {
		uc.metrics.ReconcileRepairTotal.WithLabelValues(kind).Inc()
	}
}

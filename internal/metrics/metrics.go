package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CreditMetrics 积分服务指标
type CreditMetrics struct {
	// 账本相关指标
	LedgerOperationTotal    *prometheus.CounterVec   // 账本操作总数（按操作、结果）
	LedgerOperationDuration *prometheus.HistogramVec // 账本操作耗时
	CreditsGranted          *prometheus.CounterVec   // 入账积分（按类型）
	CreditsConsumed         *prometheus.CounterVec   // 消耗积分（按功能）
	LedgerEventPublishTotal *prometheus.CounterVec   // 账本事件投递（按结果）
	BalanceLowTotal         prometheus.Counter       // 扣减后余额低于阈值次数

	// 功能调用相关指标
	FeatureCallTotal   *prometheus.CounterVec   // 功能调用总数（按功能、结果）
	GenerationDuration *prometheus.HistogramVec // AI 生成耗时

	// 订单相关指标
	OrderTotal          *prometheus.CounterVec // 订单总数（按状态）
	OrderCreateDuration prometheus.Histogram   // 订单创建耗时
	CaptureTotal        *prometheus.CounterVec // 扣款总数（按结果）
	CaptureDuration     prometheus.Histogram   // 扣款耗时

	// 支付网关相关指标
	GatewayRequestTotal *prometheus.CounterVec // 网关请求（按操作、结果）

	// 对账相关指标
	ReconcileRepairTotal *prometheus.CounterVec // 对账修复（按类型）
	LedgerDriftAccounts  prometheus.Gauge       // 余额与流水不一致的账户数

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewCreditMetrics 创建积分服务指标
func NewCreditMetrics() *CreditMetrics {
	return &CreditMetrics{
		LedgerOperationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_ledger_operation_total",
				Help: "Total number of ledger operations",
			},
			[]string{"operation", "result"}, // operation: credit/debit/refund
		),
		LedgerOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CreditsGranted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_granted_total",
				Help: "Total credits granted",
			},
			[]string{"type"},
		),
		CreditsConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_consumed_total",
				Help: "Total credits consumed",
			},
			[]string{"feature"},
		),
		LedgerEventPublishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_ledger_event_publish_total",
				Help: "Total number of ledger event publish attempts",
			},
			[]string{"result"},
		),
		BalanceLowTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_balance_low_total",
				Help: "Number of debits leaving the balance below threshold",
			},
		),

		FeatureCallTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_feature_call_total",
				Help: "Total number of metered feature calls",
			},
			[]string{"feature", "result"},
		),
		GenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_generation_duration_seconds",
				Help:    "Duration of AI generation calls",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"feature"},
		),

		OrderTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_order_total",
				Help: "Total number of orders by status transition",
			},
			[]string{"status"},
		),
		OrderCreateDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_order_create_duration_seconds",
				Help:    "Duration of order open operations",
				Buckets: prometheus.DefBuckets,
			},
		),
		CaptureTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_capture_total",
				Help: "Total number of capture attempts",
			},
			[]string{"result"},
		),
		CaptureDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_capture_duration_seconds",
				Help:    "Duration of capture operations",
				Buckets: prometheus.DefBuckets,
			},
		),

		GatewayRequestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_gateway_request_total",
				Help: "Total number of payment gateway requests",
			},
			[]string{"operation", "result"},
		),

		ReconcileRepairTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_reconcile_repair_total",
				Help: "Total number of reconciliation repairs",
			},
			[]string{"kind"}, // kind: credit/complete/cancel/error
		),
		LedgerDriftAccounts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "credit_ledger_drift_accounts",
				Help: "Number of accounts whose balance disagrees with their usage records",
			},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_lock_acquire_total",
				Help: "Total number of lock acquisitions",
			},
			[]string{"result"},
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

var (
	globalMetrics *CreditMetrics
	metricsOnce   sync.Once
)

// GetMetrics 获取全局指标实例（单例）
func GetMetrics() *CreditMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewCreditMetrics()
	})
	return globalMetrics
}

package constants

// Redis Key 前缀常量
const (
	// RedisKeyCaptureLock 订单扣款锁 key 前缀
	RedisKeyCaptureLock = "capture:lock:"
	// RedisKeyPayPalToken PayPal access token 缓存 key 前缀
	RedisKeyPayPalToken = "paypal:token:"
)

// HTTP Header 常量
const (
	// HeaderUserID 网关注入的已认证用户ID
	HeaderUserID = "X-User-Id"
)

// 流水类型常量
const (
	// UsageTypePurchase 购买套餐入账
	UsageTypePurchase = "purchase"
	// UsageTypeUsage 功能调用扣减
	UsageTypeUsage = "usage"
	// UsageTypeRefund 退回
	UsageTypeRefund = "refund"
	// UsageTypeAdjustment 人工调整
	UsageTypeAdjustment = "adjustment"
)

// 订单状态常量
const (
	// OrderStatusPending 待支付
	OrderStatusPending = "pending"
	// OrderStatusCompleted 已完成
	OrderStatusCompleted = "completed"
	// OrderStatusFailed 失败
	OrderStatusFailed = "failed"
	// OrderStatusCancelled 已取消
	OrderStatusCancelled = "cancelled"
)

// PayPal 订单状态常量
const (
	PayPalStatusCreated   = "CREATED"
	PayPalStatusApproved  = "APPROVED"
	PayPalStatusCompleted = "COMPLETED"
	PayPalStatusVoided    = "VOIDED"
)

// PayPal issue 常量
const (
	// PayPalIssueAlreadyCaptured 订单已被扣款
	PayPalIssueAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
)

// PayPal webhook 事件类型
const (
	PayPalEventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	PayPalEventOrderCompleted  = "CHECKOUT.ORDER.COMPLETED"
	PayPalEventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
)

// 指标结果标签常量
const (
	ResultSuccess      = "success"
	ResultFailed       = "failed"
	ResultInsufficient = "insufficient"
	ResultDuplicate    = "duplicate"
	ResultUnavailable  = "unavailable"
	ResultRejected     = "rejected"
	ResultError        = "error"
)

// 分页默认值
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

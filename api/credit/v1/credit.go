// Package v1 定义积分服务对外 HTTP 接口的请求与响应结构。
package v1

// GetBalanceRequest 查询余额
type GetBalanceRequest struct{}

// Balance 积分余额
type Balance struct {
	UserID           string `json:"user_id"`
	TotalCredits     int64  `json:"total_credits"`
	UsedCredits      int64  `json:"used_credits"`
	RemainingCredits int64  `json:"remaining_credits"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// ListRecordsRequest 分页查询积分流水
type ListRecordsRequest struct {
	Page     int32 `json:"page"`
	PageSize int32 `json:"page_size"`
}

// UsageRecord 积分流水
type UsageRecord struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id,omitempty"`
	FeatureID   string `json:"feature_id,omitempty"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// ListRecordsReply 积分流水列表
type ListRecordsReply struct {
	Records  []*UsageRecord `json:"records"`
	Total    int64          `json:"total"`
	Page     int32          `json:"page"`
	PageSize int32          `json:"page_size"`
}

// GetUsageSummaryRequest 查询用量汇总，period 为 today 或 month
type GetUsageSummaryRequest struct {
	Period string `json:"period"`
}

// FeatureUsage 单个功能的用量
type FeatureUsage struct {
	FeatureID       string `json:"feature_id"`
	Calls           int64  `json:"calls"`
	CreditsUsed     int64  `json:"credits_used"`
	CreditsRefunded int64  `json:"credits_refunded"`
}

// UsageSummaryReply 用量汇总
type UsageSummaryReply struct {
	UserID           string          `json:"user_id"`
	Period           string          `json:"period"`
	From             string          `json:"from"`
	To               string          `json:"to"`
	TotalCalls       int64           `json:"total_calls"`
	CreditsUsed      int64           `json:"credits_used"`
	CreditsRefunded  int64           `json:"credits_refunded"`
	CreditsPurchased int64           `json:"credits_purchased"`
	Features         []*FeatureUsage `json:"features"`
}

// ListPlansRequest 查询套餐
type ListPlansRequest struct{}

// Plan 积分套餐
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Credits  int64  `json:"credits"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// ListPlansReply 套餐列表
type ListPlansReply struct {
	Plans []*Plan `json:"plans"`
}

// ListFeaturesRequest 查询可调用功能
type ListFeaturesRequest struct{}

// Feature 计费功能
type Feature struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Price          int64    `json:"price"`
	RequiredInputs []string `json:"required_inputs"`
}

// ListFeaturesReply 功能列表
type ListFeaturesReply struct {
	Features []*Feature `json:"features"`
}

// Order 积分订单
type Order struct {
	ID              string `json:"id"`
	PlanID          string `json:"plan_id"`
	PlanName        string `json:"plan_name"`
	Credits         int64  `json:"credits"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ExternalOrderID string `json:"external_order_id,omitempty"`
	CaptureID       string `json:"capture_id,omitempty"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	CreatedAt       string `json:"created_at"`
	CapturedAt      string `json:"captured_at,omitempty"`
}

// CreateOrderRequest 下单
type CreateOrderRequest struct {
	PlanID string `json:"plan_id"`
}

// CreateOrderReply 下单结果，前端跳转 approval_link 完成支付
type CreateOrderReply struct {
	OrderID         string `json:"order_id"`
	ExternalOrderID string `json:"external_order_id"`
	ApprovalLink    string `json:"approval_link"`
	Order           *Order `json:"order"`
}

// CaptureOrderRequest 确认扣款
type CaptureOrderRequest struct {
	ExternalOrderID string `json:"external_order_id"`
}

// CaptureOrderReply 扣款结果
type CaptureOrderReply struct {
	Order     *Order   `json:"order"`
	Balance   *Balance `json:"balance"`
	CaptureID string   `json:"capture_id"`
	Duplicate bool     `json:"duplicate"`
}

// ListOrdersRequest 查询当前用户订单
type ListOrdersRequest struct{}

// ListOrdersReply 订单列表
type ListOrdersReply struct {
	Orders  []*Order `json:"orders"`
	Balance *Balance `json:"balance"`
}

// QueryOrderRequest 按本地订单ID或 PayPal 订单ID查询
type QueryOrderRequest struct {
	OrderID         string `json:"order_id"`
	ExternalOrderID string `json:"external_order_id"`
}

// Payer 付款人
type Payer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ProcessorDetails 支付方订单详情
type ProcessorDetails struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Amount     string `json:"amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
	CaptureID  string `json:"capture_id,omitempty"`
	Payer      *Payer `json:"payer,omitempty"`
	CreateTime string `json:"create_time,omitempty"`
}

// QueryOrderReply 订单查询结果
type QueryOrderReply struct {
	Order            *Order            `json:"order"`
	ProcessorDetails *ProcessorDetails `json:"processor_details,omitempty"`
	ProcessorError   string            `json:"processor_error,omitempty"`
}

// CallFeatureRequest 调用计费功能
type CallFeatureRequest struct {
	FeatureID string            `json:"feature_id"`
	Input     map[string]string `json:"input"`
}

// CallFeatureReply 功能调用结果
type CallFeatureReply struct {
	Result      string   `json:"result"`
	CreditsUsed int64    `json:"credits_used"`
	Balance     *Balance `json:"balance"`
}

package biz

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CreateExternalOrderRequest 创建外部支付订单请求
type CreateExternalOrderRequest struct {
	RequestID   string // 幂等键，使用本地订单ID
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// ExternalOrder 外部支付订单
type ExternalOrder struct {
	ID           string
	Status       string
	ApprovalLink string
}

// Payer 付款人信息
type Payer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// CaptureResult 扣款结果
type CaptureResult struct {
	ExternalOrderID string
	CaptureID       string
	Status          string
	Payer           *Payer
}

// ExternalOrderDetails 外部订单详情
type ExternalOrderDetails struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Amount     string `json:"amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
	CaptureID  string `json:"capture_id,omitempty"`
	Payer      *Payer `json:"payer,omitempty"`
	CreateTime string `json:"create_time,omitempty"`
}

// PaymentFailure 支付网关统一失败结果
type PaymentFailure struct {
	Operation  string // create / capture / get / token
	Reason     string // 可展示的失败原因，不含原始报文
	Issue      string // 处理方错误码，如 ORDER_ALREADY_CAPTURED
	StatusCode int
	Temporary  bool // 网络错误、超时、5xx、429
}

func (f *PaymentFailure) Error() string {
	if f.Issue != "" {
		return fmt.Sprintf("payment %s failed: %s (%s)", f.Operation, f.Reason, f.Issue)
	}
	return fmt.Sprintf("payment %s failed: %s", f.Operation, f.Reason)
}

// AsPaymentFailure 提取 PaymentFailure
func AsPaymentFailure(err error) (*PaymentFailure, bool) {
	var f *PaymentFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// failureReason 用于持久化到订单的失败原因
func failureReason(err error) string {
	if f, ok := AsPaymentFailure(err); ok {
		if f.Issue != "" {
			return f.Issue + ": " + f.Reason
		}
		return f.Reason
	}
	return err.Error()
}

// PaymentGateway 支付网关接口（定义在 biz 层），所有失败都以 *PaymentFailure 返回
type PaymentGateway interface {
	CreateExternalOrder(ctx context.Context, req *CreateExternalOrderRequest) (*ExternalOrder, error)
	CaptureExternalOrder(ctx context.Context, externalOrderID string) (*CaptureResult, error)
	GetExternalOrder(ctx context.Context, externalOrderID string) (*ExternalOrderDetails, error)
}

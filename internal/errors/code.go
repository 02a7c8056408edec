package errors

import (
	"errors"
	"net/http"
	"strconv"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Credit Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，固定为 19
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   00: 通用模块
//   01: 积分账户模块
//   02: 功能调用模块
//   03: 订单模块
//   04: 支付模块

// 通用错误码 (190000-190099)
const (
	// ErrCodeInvalidArgument 参数错误
	ErrCodeInvalidArgument = 190001
	// ErrCodeUnauthenticated 未认证
	ErrCodeUnauthenticated = 190002
	// ErrCodeStorageUnavailable 存储不可用
	ErrCodeStorageUnavailable = 190003
)

// 积分账户模块错误码 (190100-190199)
const (
	// ErrCodeInvalidUserID 无效的用户ID
	ErrCodeInvalidUserID = 190101
	// ErrCodeInsufficientCredits 积分不足
	ErrCodeInsufficientCredits = 190102
	// ErrCodeInvalidAmount 无效的积分数
	ErrCodeInvalidAmount = 190103
)

// 功能调用模块错误码 (190200-190299)
const (
	// ErrCodeFeatureNotFound 未知功能
	ErrCodeFeatureNotFound = 190201
	// ErrCodeGenerationFailed AI 生成失败
	ErrCodeGenerationFailed = 190202
)

// 订单模块错误码 (190300-190399)
const (
	// ErrCodeOrderNotFound 订单不存在
	ErrCodeOrderNotFound = 190301
	// ErrCodeOrderForbidden 无权操作该订单
	ErrCodeOrderForbidden = 190302
	// ErrCodeOrderClosed 订单已关闭（失败或取消）
	ErrCodeOrderClosed = 190303
	// ErrCodePlanNotFound 套餐不存在
	ErrCodePlanNotFound = 190304
	// ErrCodeCaptureInProgress 订单正在扣款
	ErrCodeCaptureInProgress = 190305
)

// 支付模块错误码 (190400-190499)
const (
	// ErrCodePaymentCreateFailed 创建支付订单失败
	ErrCodePaymentCreateFailed = 190401
	// ErrCodePaymentRejected 支付被拒绝
	ErrCodePaymentRejected = 190402
	// ErrCodePaymentUnavailable 支付服务不可用
	ErrCodePaymentUnavailable = 190403
)

type definition struct {
	status  int
	reason  string
	message string
}

var definitions = map[int]definition{
	ErrCodeInvalidArgument:     {http.StatusBadRequest, "INVALID_ARGUMENT", "invalid argument"},
	ErrCodeUnauthenticated:     {http.StatusUnauthorized, "UNAUTHENTICATED", "authenticated user required"},
	ErrCodeStorageUnavailable:  {http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage temporarily unavailable, please retry"},
	ErrCodeInvalidUserID:       {http.StatusBadRequest, "INVALID_USER", "invalid user id"},
	ErrCodeInsufficientCredits: {http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "insufficient credits, please purchase more"},
	ErrCodeInvalidAmount:       {http.StatusBadRequest, "INVALID_AMOUNT", "credit amount must be positive"},
	ErrCodeFeatureNotFound:     {http.StatusNotFound, "FEATURE_NOT_FOUND", "feature not found"},
	ErrCodeGenerationFailed:    {http.StatusBadGateway, "GENERATION_FAILED", "generation failed, please retry"},
	ErrCodeOrderNotFound:       {http.StatusNotFound, "ORDER_NOT_FOUND", "order not found"},
	ErrCodeOrderForbidden:      {http.StatusForbidden, "ORDER_FORBIDDEN", "order belongs to another user"},
	ErrCodeOrderClosed:         {http.StatusConflict, "ORDER_CLOSED", "order is closed, please open a new order"},
	ErrCodePlanNotFound:        {http.StatusNotFound, "PLAN_NOT_FOUND", "plan not found"},
	ErrCodeCaptureInProgress:   {http.StatusConflict, "CAPTURE_IN_PROGRESS", "order capture in progress, please retry"},
	ErrCodePaymentCreateFailed: {http.StatusBadGateway, "PAYMENT_CREATE_FAILED", "failed to create payment, please retry with a new order"},
	ErrCodePaymentRejected:     {http.StatusPaymentRequired, "PAYMENT_REJECTED", "payment was rejected by the processor"},
	ErrCodePaymentUnavailable:  {http.StatusServiceUnavailable, "PAYMENT_UNAVAILABLE", "payment processor unavailable, please retry"},
}

// New 根据错误码创建 kratos 错误
func New(code int) *kerrors.Error {
	d, ok := definitions[code]
	if !ok {
		d = definition{http.StatusInternalServerError, kerrors.UnknownReason, "internal error"}
	}
	return kerrors.New(d.status, d.reason, d.message).
		WithMetadata(map[string]string{"biz_code": strconv.Itoa(code)})
}

// Newf 创建错误并覆盖默认提示信息
func Newf(code int, message string) *kerrors.Error {
	e := New(code)
	e.Message = message
	return e
}

// Wrap 包装底层错误，保留 cause
func Wrap(err error, code int) *kerrors.Error {
	return New(code).WithCause(err)
}

// Is 判断 err 是否为指定错误码
func Is(err error, code int) bool {
	if err == nil {
		return false
	}
	d, ok := definitions[code]
	if !ok {
		return false
	}
	var se *kerrors.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Reason == d.reason && int(se.Code) == d.status
}

package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order 积分购买订单领域对象
type Order struct {
	ID              string
	UserID          string
	PlanID          string
	PlanName        string
	Credits         int64
	Amount          decimal.Decimal
	Currency        string
	ExternalOrderID string // PayPal 订单ID，写入后不可变
	CaptureID       string
	Status          string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CapturedAt      *time.Time
}

// OrderRepo 订单数据层接口（定义在 biz 层）
// 状态迁移方法均以 status = pending 为条件，返回值表示本次调用是否完成迁移
type OrderRepo interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrderByExternalID(ctx context.Context, externalOrderID string) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit int) ([]*Order, error)
	SetExternalOrderID(ctx context.Context, orderID, externalOrderID string) (bool, error)
	MarkCompleted(ctx context.Context, orderID, captureID string, capturedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, orderID, reason string) (bool, error)
	MarkCancelled(ctx context.Context, orderID, reason string) (bool, error)
	ListCompletedWithoutCredit(ctx context.Context, limit int) ([]*Order, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*Order, error)
}

// CaptureLocker 订单扣款互斥锁，获取失败返回 ErrCodeCaptureInProgress
type CaptureLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// OpenOrderResult 下单结果
type OpenOrderResult struct {
	Order        *Order
	ApprovalLink string
}

// CaptureOrderResult 扣款结果
type CaptureOrderResult struct {
	Order     *Order
	Balance   *Account
	CaptureID string
	Duplicate bool // 订单此前已完成，本次未调用支付方，仅补齐缺失的入账
}

// OrderLookup 订单查询条件，二选一
type OrderLookup struct {
	OrderID         string
	ExternalOrderID string
}

// OrderQueryResult 订单查询结果
type OrderQueryResult struct {
	Order            *Order
	ProcessorDetails *ExternalOrderDetails
	ProcessorError   string
}

// OrderListResult 用户订单列表
type OrderListResult struct {
	Orders  []*Order
	Balance *Account
}

// OrderUseCase 订单编排业务逻辑
type OrderUseCase struct {
	repo    OrderRepo
	gateway PaymentGateway
	ledger  *LedgerUseCase
	locker  CaptureLocker
	conf    *CreditConfig
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewOrderUseCase 创建订单 UseCase
func NewOrderUseCase(
	repo OrderRepo,
	gateway PaymentGateway,
	ledger *LedgerUseCase,
	locker CaptureLocker,
	conf *CreditConfig,
	logger log.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		repo:    repo,
		gateway: gateway,
		ledger:  ledger,
		locker:  locker,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// ListPlans 套餐列表
func (uc *OrderUseCase) ListPlans() []*Plan {
	return uc.conf.Plans
}

// OpenOrder 创建订单：先落本地 pending 订单，再调用支付方
func (uc *OrderUseCase) OpenOrder(ctx context.Context, userID, planID string) (*OpenOrderResult, error) {
	startTime := time.Now()
	if strings.TrimSpace(userID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	plan, ok := uc.conf.Plan(planID)
	if !ok {
		return nil, creditErrors.New(creditErrors.ErrCodePlanNotFound)
	}

	order := &Order{
		ID:       uuid.New().String(),
		UserID:   userID,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Credits:  plan.Credits,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Status:   constants.OrderStatusPending,
	}
	if err := uc.repo.CreateOrder(ctx, order); err != nil {
		uc.log.Errorf("CreateOrder failed: userID=%s, planID=%s, error=%v", userID, planID, err)
		return nil, err
	}
	uc.countOrder(constants.OrderStatusPending)

	ext, err := uc.gateway.CreateExternalOrder(ctx, &CreateExternalOrderRequest{
		RequestID:   order.ID,
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Description: fmt.Sprintf("%s - %d credits", plan.Name, plan.Credits),
	})
	if uc.metrics != nil {
		uc.metrics.OrderCreateDuration.Observe(time.Since(startTime).Seconds())
	}
	if err != nil {
		reason := failureReason(err)
		uc.log.Errorf("CreateExternalOrder failed: orderID=%s, error=%v", order.ID, err)
		if _, markErr := uc.repo.MarkFailed(ctx, order.ID, reason); markErr != nil {
			uc.log.Errorf("MarkFailed failed: orderID=%s, error=%v", order.ID, markErr)
		} else {
			order.Status = constants.OrderStatusFailed
			order.ErrorMessage = reason
			uc.countOrder(constants.OrderStatusFailed)
		}
		return nil, withOrderID(creditErrors.Wrap(err, creditErrors.ErrCodePaymentCreateFailed), order.ID)
	}

	linked, err := uc.repo.SetExternalOrderID(ctx, order.ID, ext.ID)
	if err != nil {
		uc.log.Errorf("SetExternalOrderID failed: orderID=%s, externalOrderID=%s, error=%v", order.ID, ext.ID, err)
		return nil, err
	}
	if !linked {
		// 订单已不是 pending 或已关联其他 PayPal 订单
		uc.log.Errorf("SetExternalOrderID matched no pending order: orderID=%s, externalOrderID=%s", order.ID, ext.ID)
		return nil, withOrderID(creditErrors.New(creditErrors.ErrCodeOrderClosed), order.ID)
	}
	order.ExternalOrderID = ext.ID

	uc.log.Infof("Order opened: orderID=%s, externalOrderID=%s, userID=%s, plan=%s", order.ID, ext.ID, userID, plan.ID)
	return &OpenOrderResult{Order: order, ApprovalLink: ext.ApprovalLink}, nil
}

// CaptureOrder 扣款并入账，重复调用返回首次结果
func (uc *OrderUseCase) CaptureOrder(ctx context.Context, userID, externalOrderID string) (*CaptureOrderResult, error) {
	startTime := time.Now()
	defer func() {
		if uc.metrics != nil {
			uc.metrics.CaptureDuration.Observe(time.Since(startTime).Seconds())
		}
	}()

	if strings.TrimSpace(userID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	if strings.TrimSpace(externalOrderID) == "" {
		return nil, creditErrors.Newf(creditErrors.ErrCodeInvalidArgument, "external_order_id is required")
	}

	order, err := uc.ownedOrder(ctx, userID, OrderLookup{ExternalOrderID: externalOrderID})
	if err != nil {
		return nil, err
	}
	if result, done, err := uc.settled(ctx, order); done {
		return result, err
	}

	release, err := uc.locker.Acquire(ctx, constants.RedisKeyCaptureLock+externalOrderID)
	if err != nil {
		uc.countCapture(constants.ResultUnavailable)
		return nil, err
	}
	defer release()

	// 持锁后重新读取，其他请求可能已完成扣款
	order, err = uc.repo.GetOrderByExternalID(ctx, externalOrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, creditErrors.New(creditErrors.ErrCodeOrderNotFound)
	}
	if result, done, err := uc.settled(ctx, order); done {
		return result, err
	}

	capture, err := uc.gateway.CaptureExternalOrder(ctx, externalOrderID)
	if err != nil {
		capture, err = uc.recoverCapture(ctx, order, err)
		if err != nil {
			return nil, err
		}
	}
	return uc.complete(ctx, order, capture.CaptureID)
}

// QueryOrder 查询订单，支付方详情获取失败不影响结果
func (uc *OrderUseCase) QueryOrder(ctx context.Context, userID string, lookup OrderLookup) (*OrderQueryResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	if lookup.OrderID == "" && lookup.ExternalOrderID == "" {
		return nil, creditErrors.Newf(creditErrors.ErrCodeInvalidArgument, "order_id or external_order_id is required")
	}
	order, err := uc.ownedOrder(ctx, userID, lookup)
	if err != nil {
		return nil, err
	}

	result := &OrderQueryResult{Order: order}
	if order.ExternalOrderID != "" {
		details, err := uc.gateway.GetExternalOrder(ctx, order.ExternalOrderID)
		if err != nil {
			uc.log.Warnf("GetExternalOrder failed: orderID=%s, externalOrderID=%s, error=%v", order.ID, order.ExternalOrderID, err)
			result.ProcessorError = failureReason(err)
		} else {
			result.ProcessorDetails = details
		}
	}
	return result, nil
}

// ListOrders 用户订单列表及当前余额
func (uc *OrderUseCase) ListOrders(ctx context.Context, userID string) (*OrderListResult, error) {
	balance, err := uc.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders, err := uc.repo.ListOrdersByUser(ctx, userID, constants.MaxPageSize)
	if err != nil {
		uc.log.Errorf("ListOrdersByUser failed: userID=%s, error=%v", userID, err)
		return nil, err
	}
	return &OrderListResult{Orders: orders, Balance: balance}, nil
}

// SyncExternalOrder 以支付方状态为准同步本地订单，用于回调通知和对账
func (uc *OrderUseCase) SyncExternalOrder(ctx context.Context, externalOrderID string) (*Order, error) {
	order, err := uc.repo.GetOrderByExternalID(ctx, externalOrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, creditErrors.New(creditErrors.ErrCodeOrderNotFound)
	}

	switch order.Status {
	case constants.OrderStatusCompleted:
		if _, err := uc.ledger.CreditOrder(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	case constants.OrderStatusFailed, constants.OrderStatusCancelled:
		return order, nil
	}

	details, err := uc.gateway.GetExternalOrder(ctx, externalOrderID)
	if err != nil {
		uc.log.Warnf("SyncExternalOrder GetExternalOrder failed: externalOrderID=%s, error=%v", externalOrderID, err)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodePaymentUnavailable)
	}

	switch details.Status {
	case constants.PayPalStatusCompleted:
		result, err := uc.complete(ctx, order, details.CaptureID)
		if err != nil {
			return nil, err
		}
		uc.log.Infof("Order synced to completed: orderID=%s, externalOrderID=%s", order.ID, externalOrderID)
		return result.Order, nil
	case constants.PayPalStatusVoided:
		ok, err := uc.repo.MarkCancelled(ctx, order.ID, "voided by payment processor")
		if err != nil {
			return nil, err
		}
		if ok {
			order.Status = constants.OrderStatusCancelled
			uc.countOrder(constants.OrderStatusCancelled)
			uc.log.Infof("Order synced to cancelled: orderID=%s, externalOrderID=%s", order.ID, externalOrderID)
		}
	}
	return order, nil
}

// FailUnlinkedOrder 将未关联 PayPal 订单的 pending 订单置为 failed，返回是否完成迁移
func (uc *OrderUseCase) FailUnlinkedOrder(ctx context.Context, order *Order) (bool, error) {
	if order.ExternalOrderID != "" {
		return false, nil
	}
	ok, err := uc.repo.MarkFailed(ctx, order.ID, "payment order was never created")
	if err != nil {
		return false, err
	}
	if ok {
		uc.countOrder(constants.OrderStatusFailed)
		uc.log.Warnf("Unlinked pending order marked failed: orderID=%s, userID=%s", order.ID, order.UserID)
	}
	return ok, nil
}

func (uc *OrderUseCase) ownedOrder(ctx context.Context, userID string, lookup OrderLookup) (*Order, error) {
	var (
		order *Order
		err   error
	)
	if lookup.OrderID != "" {
		order, err = uc.repo.GetOrder(ctx, lookup.OrderID)
	} else {
		order, err = uc.repo.GetOrderByExternalID(ctx, lookup.ExternalOrderID)
	}
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, creditErrors.New(creditErrors.ErrCodeOrderNotFound)
	}
	if order.UserID != userID {
		uc.log.Warnf("Order ownership mismatch: orderID=%s, owner=%s, caller=%s", order.ID, order.UserID, userID)
		return nil, creditErrors.New(creditErrors.ErrCodeOrderForbidden)
	}
	return order, nil
}

// settled 处理终态订单；done 为 false 表示订单仍为 pending
func (uc *OrderUseCase) settled(ctx context.Context, order *Order) (result *CaptureOrderResult, done bool, err error) {
	switch order.Status {
	case constants.OrderStatusCompleted:
		uc.countCapture(constants.ResultDuplicate)
		// 按订单ID幂等入账，补上完成与入账之间中断留下的缺口
		credited, err := uc.ledger.CreditOrder(ctx, order)
		if err != nil {
			return nil, true, err
		}
		if !credited.Duplicate {
			uc.log.Warnf("Completed order credited on capture retry: orderID=%s, userID=%s, credits=%d", order.ID, order.UserID, order.Credits)
		}
		return &CaptureOrderResult{Order: order, Balance: credited.Account, CaptureID: order.CaptureID, Duplicate: true}, true, nil
	case constants.OrderStatusFailed, constants.OrderStatusCancelled:
		return nil, true, withOrderID(creditErrors.New(creditErrors.ErrCodeOrderClosed), order.ID)
	}
	return nil, false, nil
}

// recoverCapture 处理扣款失败：已扣款的以支付方为准，临时错误保持 pending，拒绝则置为 failed
func (uc *OrderUseCase) recoverCapture(ctx context.Context, order *Order, captureErr error) (*CaptureResult, error) {
	failure, ok := AsPaymentFailure(captureErr)
	if !ok {
		failure = &PaymentFailure{Operation: "capture", Reason: captureErr.Error(), Temporary: true}
	}

	if failure.Issue == constants.PayPalIssueAlreadyCaptured {
		details, err := uc.gateway.GetExternalOrder(ctx, order.ExternalOrderID)
		if err != nil {
			uc.log.Warnf("Order reported captured but lookup failed: orderID=%s, error=%v", order.ID, err)
			uc.countCapture(constants.ResultUnavailable)
			return nil, withOrderID(creditErrors.Wrap(err, creditErrors.ErrCodePaymentUnavailable), order.ID)
		}
		if details.Status == constants.PayPalStatusCompleted {
			uc.log.Infof("Order already captured at processor: orderID=%s, externalOrderID=%s", order.ID, order.ExternalOrderID)
			return &CaptureResult{
				ExternalOrderID: details.ID,
				CaptureID:       details.CaptureID,
				Status:          details.Status,
				Payer:           details.Payer,
			}, nil
		}
	}

	if failure.Temporary {
		uc.log.Warnf("CaptureExternalOrder unavailable, order kept pending: orderID=%s, error=%v", order.ID, captureErr)
		uc.countCapture(constants.ResultUnavailable)
		return nil, withOrderID(creditErrors.Wrap(captureErr, creditErrors.ErrCodePaymentUnavailable), order.ID)
	}

	reason := failureReason(captureErr)
	uc.log.Errorf("CaptureExternalOrder rejected: orderID=%s, reason=%s", order.ID, reason)
	if _, err := uc.repo.MarkFailed(ctx, order.ID, reason); err != nil {
		uc.log.Errorf("MarkFailed failed: orderID=%s, error=%v", order.ID, err)
		return nil, err
	}
	uc.countOrder(constants.OrderStatusFailed)
	uc.countCapture(constants.ResultRejected)

	e := withOrderID(creditErrors.Wrap(captureErr, creditErrors.ErrCodePaymentRejected), order.ID)
	if failure.Issue != "" {
		e.Metadata["issue"] = failure.Issue
	}
	return nil, e
}

// complete 先将订单置为 completed，再入账；两步之间中断由对账任务补偿
func (uc *OrderUseCase) complete(ctx context.Context, order *Order, captureID string) (*CaptureOrderResult, error) {
	capturedAt := time.Now()
	transitioned, err := uc.repo.MarkCompleted(ctx, order.ID, captureID, capturedAt)
	if err != nil {
		uc.log.Errorf("MarkCompleted failed after capture: orderID=%s, captureID=%s, error=%v", order.ID, captureID, err)
		return nil, err
	}

	if transitioned {
		completed := *order
		completed.Status = constants.OrderStatusCompleted
		completed.CaptureID = captureID
		completed.CapturedAt = &capturedAt
		order = &completed
		uc.countOrder(constants.OrderStatusCompleted)
	} else {
		current, err := uc.repo.GetOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.Status != constants.OrderStatusCompleted {
			uc.log.Errorf("Order captured at processor but local status is not completed: orderID=%s", order.ID)
			return nil, withOrderID(creditErrors.New(creditErrors.ErrCodeOrderClosed), order.ID)
		}
		order = current
	}

	credited, err := uc.ledger.CreditOrder(ctx, order)
	if err != nil {
		uc.log.Errorf("Credit after capture failed, pending reconciliation: orderID=%s, error=%v", order.ID, err)
		return nil, err
	}

	if transitioned {
		uc.countCapture(constants.ResultSuccess)
	} else {
		uc.countCapture(constants.ResultDuplicate)
	}
	uc.log.Infof("Order completed: orderID=%s, captureID=%s, credits=%d, duplicate=%v", order.ID, order.CaptureID, order.Credits, !transitioned)
	return &CaptureOrderResult{
		Order:     order,
		Balance:   credited.Account,
		CaptureID: order.CaptureID,
		Duplicate: !transitioned,
	}, nil
}

func (uc *OrderUseCase) countOrder(status string) {
	if uc.metrics != nil {
		uc.metrics.OrderTotal.WithLabelValues(status).Inc()
	}
}

func (uc *OrderUseCase) countCapture(result string) {
	if uc.metrics != nil {
		uc.metrics.CaptureTotal.WithLabelValues(result).Inc()
	}
}

// withOrderID 错误附带订单ID，便于用户联系客服
func withOrderID(e *kerrors.Error, orderID string) *kerrors.Error {
	e.Metadata["order_id"] = orderID
	return e
}

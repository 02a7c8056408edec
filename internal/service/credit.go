package service

import (
	"context"

	v1 "credit-service/api/credit/v1"
	"credit-service/internal/authn"
	"credit-service/internal/biz"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

var _ v1.CreditServiceHTTPServer = (*CreditService)(nil)

// CreditService 面向前端的积分服务
type CreditService struct {
	ledger  *biz.LedgerUseCase
	orders  *biz.OrderUseCase
	feature *biz.FeatureUseCase
	stats   *biz.StatsUseCase
	log     *log.Helper
}

// NewCreditService 创建 CreditService
func NewCreditService(
	ledger *biz.LedgerUseCase,
	orders *biz.OrderUseCase,
	feature *biz.FeatureUseCase,
	stats *biz.StatsUseCase,
	logger log.Logger,
) *CreditService {
	return &CreditService{
		ledger:  ledger,
		orders:  orders,
		feature: feature,
		stats:   stats,
		log:     log.NewHelper(logger),
	}
}

// GetBalance 查询当前用户余额
func (s *CreditService) GetBalance(ctx context.Context, req *v1.GetBalanceRequest) (*v1.Balance, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	account, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		s.log.Errorf("GetBalance failed: user_id=%s, err=%v", userID, err)
		return nil, err
	}
	return toBalance(account), nil
}

// ListRecords 分页查询积分流水
func (s *CreditService) ListRecords(ctx context.Context, req *v1.ListRecordsRequest) (*v1.ListRecordsReply, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	page := int(req.Page)
	if page <= 0 {
		page = constants.DefaultPage
	}
	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	records, total, err := s.ledger.ListUsageRecords(ctx, userID, page, pageSize)
	if err != nil {
		s.log.Errorf("ListRecords failed: user_id=%s, err=%v", userID, err)
		return nil, err
	}

	reply := &v1.ListRecordsReply{
		Records:  make([]*v1.UsageRecord, 0, len(records)),
		Total:    total,
		Page:     int32(page),
		PageSize: int32(pageSize),
	}
	for _, r := range records {
		reply.Records = append(reply.Records, toUsageRecord(r))
	}
	return reply, nil
}

// GetUsageSummary 查询今日或本月用量
func (s *CreditService) GetUsageSummary(ctx context.Context, req *v1.GetUsageSummaryRequest) (*v1.UsageSummaryReply, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.stats.GetUsageSummary(ctx, userID, req.Period)
	if err != nil {
		s.log.Errorf("GetUsageSummary failed: user_id=%s, err=%v", userID, err)
		return nil, err
	}
	return toUsageSummary(summary), nil
}

// ListPlans 套餐列表，无需登录
func (s *CreditService) ListPlans(ctx context.Context, req *v1.ListPlansRequest) (*v1.ListPlansReply, error) {
	plans := s.orders.ListPlans()
	reply := &v1.ListPlansReply{Plans: make([]*v1.Plan, 0, len(plans))}
	for _, p := range plans {
		reply.Plans = append(reply.Plans, &v1.Plan{
			ID:       p.ID,
			Name:     p.Name,
			Credits:  p.Credits,
			Price:    p.Price.StringFixed(2),
			Currency: p.Currency,
		})
	}
	return reply, nil
}

// ListFeatures 可调用功能列表，无需登录
func (s *CreditService) ListFeatures(ctx context.Context, req *v1.ListFeaturesRequest) (*v1.ListFeaturesReply, error) {
	features := s.feature.ListFeatures()
	reply := &v1.ListFeaturesReply{Features: make([]*v1.Feature, 0, len(features))}
	for _, f := range features {
		reply.Features = append(reply.Features, &v1.Feature{
			ID:             f.ID,
			Name:           f.Name,
			Price:          f.Price,
			RequiredInputs: f.RequiredInputs,
		})
	}
	return reply, nil
}

// CallFeature 扣费后调用 AI 功能
func (s *CreditService) CallFeature(ctx context.Context, req *v1.CallFeatureRequest) (*v1.CallFeatureReply, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.feature.CallFeature(ctx, userID, req.FeatureID, req.Input)
	if err != nil {
		s.log.Errorf("CallFeature failed: user_id=%s, feature_id=%s, err=%v", userID, req.FeatureID, err)
		return nil, err
	}
	return &v1.CallFeatureReply{
		Result:      result.Result,
		CreditsUsed: result.CreditsUsed,
		Balance:     toBalance(result.Balance),
	}, nil
}

// CreateOrder 创建积分订单并返回 PayPal 支付链接
func (s *CreditService) CreateOrder(ctx context.Context, req *v1.CreateOrderRequest) (*v1.CreateOrderReply, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.orders.OpenOrder(ctx, userID, req.PlanID)
	if err != nil {
		s.log.Errorf("CreateOrder failed: user_id=%s, plan_id=%s, err=%v", userID, req.PlanID, err)
		return nil, err
	}
	return &v1.CreateOrderReply{
		OrderID:         result.Order.ID,
		ExternalOrderID: result.Order.ExternalOrderID,
		ApprovalLink:    result.ApprovalLink,
		Order:           toOrder(result.Order),
	}, nil
}

// CaptureOrder 用户完成支付后确认扣款并入账
func (s *CreditService) CaptureOrder(ctx context.Context, req *v1.CaptureOrderRequest) (*v1.CaptureOrderReply, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.orders.CaptureOrder(ctx, userID, req.ExternalOrderID)
	if err != nil {
		s.log.Errorf("CaptureOrder failed: user_id=%s, external_order_id=%s, err=%v", userID, req.ExternalOrderID, err)
		return nil, err
	}
	return &v1.CaptureOrderReply{
		Order:     toOrder(result.Order),
		Balance:   toBalance(result.Balance),
		CaptureID: result.CaptureID,
		Duplicate: result.Duplicate,
	}, nil
}

// ListOrders 当前用户订单列表
func (s *CreditService) ListOrders(ctx context.Context, req *v1.ListOrdersRequest) (*v1.ListOrdersReply, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		s.log.Errorf("ListOrders failed: user_id=%s, err=%v", userID, err)
		return nil, err
	}
	reply := &v1.ListOrdersReply{
		Orders:  make([]*v1.Order, 0, len(result.Orders)),
		Balance: toBalance(result.Balance),
	}
	for _, o := range result.Orders {
		reply.Orders = append(reply.Orders, toOrder(o))
	}
	return reply, nil
}

// QueryOrder 查询订单及支付方状态
func (s *CreditService) QueryOrder(ctx context.Context, req *v1.QueryOrderRequest) (*v1.QueryOrderReply, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.orders.QueryOrder(ctx, userID, biz.OrderLookup{
		OrderID:         req.OrderID,
		ExternalOrderID: req.ExternalOrderID,
	})
	if err != nil {
		s.log.Errorf("QueryOrder failed: user_id=%s, err=%v", userID, err)
		return nil, err
	}
	return &v1.QueryOrderReply{
		Order:            toOrder(result.Order),
		ProcessorDetails: toProcessorDetails(result.ProcessorDetails),
		ProcessorError:   result.ProcessorError,
	}, nil
}

func currentUser(ctx context.Context) (string, error) {
	userID, ok := authn.UserIDFromContext(ctx)
	if !ok {
		return "", creditErrors.New(creditErrors.ErrCodeUnauthenticated)
	}
	return userID, nil
}

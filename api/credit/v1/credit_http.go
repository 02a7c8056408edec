// HTTP 路由绑定，结构与 protoc-gen-go-http 生成代码保持一致。

package v1

import (
	context "context"

	http "github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationCreditServiceGetBalance      = "/credit.v1.CreditService/GetBalance"
	OperationCreditServiceListRecords     = "/credit.v1.CreditService/ListRecords"
	OperationCreditServiceGetUsageSummary = "/credit.v1.CreditService/GetUsageSummary"
	OperationCreditServiceListPlans       = "/credit.v1.CreditService/ListPlans"
	OperationCreditServiceListFeatures    = "/credit.v1.CreditService/ListFeatures"
	OperationCreditServiceCallFeature     = "/credit.v1.CreditService/CallFeature"
	OperationCreditServiceCreateOrder     = "/credit.v1.CreditService/CreateOrder"
	OperationCreditServiceCaptureOrder    = "/credit.v1.CreditService/CaptureOrder"
	OperationCreditServiceListOrders      = "/credit.v1.CreditService/ListOrders"
	OperationCreditServiceQueryOrder      = "/credit.v1.CreditService/QueryOrder"
)

type CreditServiceHTTPServer interface {
	GetBalance(context.Context, *GetBalanceRequest) (*Balance, error)
	ListRecords(context.Context, *ListRecordsRequest) (*ListRecordsReply, error)
	GetUsageSummary(context.Context, *GetUsageSummaryRequest) (*UsageSummaryReply, error)
	ListPlans(context.Context, *ListPlansRequest) (*ListPlansReply, error)
	ListFeatures(context.Context, *ListFeaturesRequest) (*ListFeaturesReply, error)
	CallFeature(context.Context, *CallFeatureRequest) (*CallFeatureReply, error)
	CreateOrder(context.Context, *CreateOrderRequest) (*CreateOrderReply, error)
	CaptureOrder(context.Context, *CaptureOrderRequest) (*CaptureOrderReply, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersReply, error)
	QueryOrder(context.Context, *QueryOrderRequest) (*QueryOrderReply, error)
}

func RegisterCreditServiceHTTPServer(s *http.Server, srv CreditServiceHTTPServer) {
	r := s.Route("/")
	r.GET("/v1/credits/balance", _CreditService_GetBalance0_HTTP_Handler(srv))
	r.GET("/v1/credits/records", _CreditService_ListRecords0_HTTP_Handler(srv))
	r.GET("/v1/credits/summary", _CreditService_GetUsageSummary0_HTTP_Handler(srv))
	r.GET("/v1/plans", _CreditService_ListPlans0_HTTP_Handler(srv))
	r.GET("/v1/features", _CreditService_ListFeatures0_HTTP_Handler(srv))
	r.POST("/v1/features/{feature_id}/call", _CreditService_CallFeature0_HTTP_Handler(srv))
	r.POST("/v1/orders", _CreditService_CreateOrder0_HTTP_Handler(srv))
	r.POST("/v1/orders/capture", _CreditService_CaptureOrder0_HTTP_Handler(srv))
	r.GET("/v1/orders", _CreditService_ListOrders0_HTTP_Handler(srv))
	r.GET("/v1/orders/query", _CreditService_QueryOrder0_HTTP_Handler(srv))
}

func _CreditService_GetBalance0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetBalanceRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceGetBalance)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetBalance(ctx, req.(*GetBalanceRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*Balance)
		return ctx.Result(200, reply)
	}
}

func _CreditService_ListRecords0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListRecordsRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceListRecords)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListRecords(ctx, req.(*ListRecordsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ListRecordsReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_GetUsageSummary0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetUsageSummaryRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceGetUsageSummary)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetUsageSummary(ctx, req.(*GetUsageSummaryRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*UsageSummaryReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_ListPlans0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListPlansRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceListPlans)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListPlans(ctx, req.(*ListPlansRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ListPlansReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_ListFeatures0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListFeaturesRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceListFeatures)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListFeatures(ctx, req.(*ListFeaturesRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ListFeaturesReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_CallFeature0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CallFeatureRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceCallFeature)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CallFeature(ctx, req.(*CallFeatureRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*CallFeatureReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_CreateOrder0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CreateOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceCreateOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CreateOrder(ctx, req.(*CreateOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*CreateOrderReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_CaptureOrder0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CaptureOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceCaptureOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CaptureOrder(ctx, req.(*CaptureOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*CaptureOrderReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_ListOrders0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListOrdersRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceListOrders)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListOrders(ctx, req.(*ListOrdersRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ListOrdersReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_QueryOrder0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in QueryOrderRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceQueryOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.QueryOrder(ctx, req.(*QueryOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*QueryOrderReply)
		return ctx.Result(200, reply)
	}
}

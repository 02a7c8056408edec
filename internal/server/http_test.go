package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	"credit-service/internal/data"
	"credit-service/internal/server"
	"credit-service/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approvingGateway 创建后立即可扣款的支付网关
type approvingGateway struct {
	mu  sync.Mutex
	seq int
}

func (g *approvingGateway) CreateExternalOrder(_ context.Context, req *biz.CreateExternalOrderRequest) (*biz.ExternalOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("PAY-%d", g.seq)
	return &biz.ExternalOrder{ID: id, Status: constants.PayPalStatusCreated, ApprovalLink: "https://paypal.test/approve?token=" + id}, nil
}

func (g *approvingGateway) CaptureExternalOrder(_ context.Context, externalOrderID string) (*biz.CaptureResult, error) {
	return &biz.CaptureResult{ExternalOrderID: externalOrderID, CaptureID: "CAP-" + externalOrderID, Status: constants.PayPalStatusCompleted}, nil
}

func (g *approvingGateway) GetExternalOrder(_ context.Context, externalOrderID string) (*biz.ExternalOrderDetails, error) {
	return &biz.ExternalOrderDetails{ID: externalOrderID, Status: constants.PayPalStatusApproved}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt, _ string) (string, error) {
	return "answer to " + prompt, nil
}

func newTestServer(t *testing.T) *khttp.Server {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)

	dc := &conf.Data{Database: &conf.Data_Database{
		Driver:      "sqlite",
		Source:      "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		AutoMigrate: true,
	}}
	db, err := data.NewDB(dc)
	require.NoError(t, err)
	d, cleanup, err := data.NewData(dc, logger, db, nil, nil)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	cfg, err := biz.NewCreditConfig(&conf.Bootstrap{})
	require.NoError(t, err)
	catalog, err := biz.NewFeatureCatalog(cfg)
	require.NoError(t, err)

	ledger := biz.NewLedgerUseCase(data.NewAccountRepo(d, logger), nil, cfg, logger)
	orders := biz.NewOrderUseCase(data.NewOrderRepo(d, logger), &approvingGateway{}, ledger, data.NewCaptureLocker(nil, cfg, logger), cfg, logger)
	feature := biz.NewFeatureUseCase(catalog, ledger, echoGenerator{}, cfg, logger)
	stats := biz.NewStatsUseCase(data.NewStatsRepo(d, logger), logger)

	svc := service.NewCreditService(ledger, orders, feature, stats, logger)
	return server.NewHTTPServer(&conf.Server{}, svc, logger)
}

type errorBody struct {
	Code     int               `json:"code"`
	Reason   string            `json:"reason"`
	Metadata map[string]string `json:"metadata"`
}

func do(t *testing.T, srv *khttp.Server, method, path, userID, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(constants.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func decode(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}

func TestHTTP_PublicRoutesSkipAuth(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, http.MethodGet, "/v1/plans", "", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var plans struct {
		Plans []struct {
			ID      string `json:"id"`
			Credits int64  `json:"credits"`
			Price   string `json:"price"`
		} `json:"plans"`
	}
	decode(t, raw, &plans)
	assert.NotEmpty(t, plans.Plans)

	status, raw = do(t, srv, http.MethodGet, "/v1/features", "", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var features struct {
		Features []struct {
			ID    string `json:"id"`
			Price int64  `json:"price"`
		} `json:"features"`
	}
	decode(t, raw, &features)
	assert.Len(t, features.Features, 5)

	status, _ = do(t, srv, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestHTTP_RequiresUser(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, http.MethodGet, "/v1/credits/balance", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	var e errorBody
	decode(t, raw, &e)
	assert.Equal(t, "UNAUTHENTICATED", e.Reason)
	assert.Equal(t, "190002", e.Metadata["biz_code"])
}

func TestHTTP_InsufficientCredits(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, http.MethodPost, "/v1/features/legal-qa/call", "u1", `{"input":{"query":"Can I sublet?"}}`)
	assert.Equal(t, http.StatusPaymentRequired, status)
	var e errorBody
	decode(t, raw, &e)
	assert.Equal(t, "INSUFFICIENT_CREDITS", e.Reason)
	assert.Equal(t, "190102", e.Metadata["biz_code"])
}

func TestHTTP_PurchaseAndSpend(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, http.MethodPost, "/v1/orders", "u1", `{"plan_id":"basic"}`)
	require.Equal(t, http.StatusOK, status, string(raw))
	var created struct {
		OrderID         string `json:"order_id"`
		ExternalOrderID string `json:"external_order_id"`
		ApprovalLink    string `json:"approval_link"`
	}
	decode(t, raw, &created)
	require.NotEmpty(t, created.ExternalOrderID)
	assert.Contains(t, created.ApprovalLink, created.ExternalOrderID)

	status, raw = do(t, srv, http.MethodPost, "/v1/orders/capture", "u2", `{"external_order_id":"`+created.ExternalOrderID+`"}`)
	assert.Equal(t, http.StatusForbidden, status, string(raw))

	status, raw = do(t, srv, http.MethodPost, "/v1/orders/capture", "u1", `{"external_order_id":"`+created.ExternalOrderID+`"}`)
	require.Equal(t, http.StatusOK, status, string(raw))
	var captured struct {
		CaptureID string `json:"capture_id"`
		Duplicate bool   `json:"duplicate"`
		Balance   struct {
			RemainingCredits int64 `json:"remaining_credits"`
		} `json:"balance"`
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
	}
	decode(t, raw, &captured)
	assert.Equal(t, "CAP-"+created.ExternalOrderID, captured.CaptureID)
	assert.False(t, captured.Duplicate)
	assert.Equal(t, constants.OrderStatusCompleted, captured.Order.Status)
	assert.Equal(t, int64(12), captured.Balance.RemainingCredits)

	status, raw = do(t, srv, http.MethodPost, "/v1/orders/capture", "u1", `{"external_order_id":"`+created.ExternalOrderID+`"}`)
	require.Equal(t, http.StatusOK, status, string(raw))
	decode(t, raw, &captured)
	assert.True(t, captured.Duplicate)
	assert.Equal(t, int64(12), captured.Balance.RemainingCredits)

	status, raw = do(t, srv, http.MethodPost, "/v1/features/legal-qa/call", "u1", `{"input":{"query":"Can I sublet?"}}`)
	require.Equal(t, http.StatusOK, status, string(raw))
	var called struct {
		Result      string `json:"result"`
		CreditsUsed int64  `json:"credits_used"`
		Balance     struct {
			RemainingCredits int64 `json:"remaining_credits"`
		} `json:"balance"`
	}
	decode(t, raw, &called)
	assert.Equal(t, "answer to User question: Can I sublet?", called.Result)
	assert.Equal(t, int64(1), called.CreditsUsed)
	assert.Equal(t, int64(11), called.Balance.RemainingCredits)

	status, raw = do(t, srv, http.MethodGet, "/v1/credits/records?page=1&page_size=1", "u1", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var records struct {
		Records []struct {
			Type   string `json:"type"`
			Amount int64  `json:"amount"`
		} `json:"records"`
		Total    int64 `json:"total"`
		PageSize int32 `json:"page_size"`
	}
	decode(t, raw, &records)
	assert.Equal(t, int64(2), records.Total)
	assert.Equal(t, int32(1), records.PageSize)
	require.Len(t, records.Records, 1)

	status, raw = do(t, srv, http.MethodGet, "/v1/credits/summary?period=today", "u1", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var summary struct {
		TotalCalls       int64 `json:"total_calls"`
		CreditsPurchased int64 `json:"credits_purchased"`
	}
	decode(t, raw, &summary)
	assert.Equal(t, int64(1), summary.TotalCalls)
	assert.Equal(t, int64(12), summary.CreditsPurchased)

	status, raw = do(t, srv, http.MethodGet, "/v1/orders/query?order_id="+created.OrderID, "u1", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var queried struct {
		Order struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"order"`
	}
	decode(t, raw, &queried)
	assert.Equal(t, created.OrderID, queried.Order.ID)
	assert.Equal(t, constants.OrderStatusCompleted, queried.Order.Status)

	status, raw = do(t, srv, http.MethodGet, "/v1/orders", "u1", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var listed struct {
		Orders  []json.RawMessage `json:"orders"`
		Balance struct {
			RemainingCredits int64 `json:"remaining_credits"`
		} `json:"balance"`
	}
	decode(t, raw, &listed)
	assert.Len(t, listed.Orders, 1)
	assert.Equal(t, int64(11), listed.Balance.RemainingCredits)
}

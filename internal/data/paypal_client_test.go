package data

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	t          *testing.T
	tokenCalls atomic.Int32

	// rejectToken 首次出现该 token 时返回 401
	rejectToken atomic.Value

	mu         sync.Mutex
	requestIDs []string
	lastCreate map[string]interface{}
}

func (f *fakePayPal) writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakePayPal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/oauth2/token" {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "secret" {
			f.writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
			return
		}
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "client_credentials", r.PostForm.Get("grant_type"))
		n := f.tokenCalls.Add(1)
		f.writeJSON(w, http.StatusOK, `{"access_token":"tok-`+string(rune('0'+n))+`","token_type":"Bearer","expires_in":32400}`)
		return
	}

	auth := r.Header.Get("Authorization")
	if reject, _ := f.rejectToken.Load().(string); reject != "" && auth == "Bearer "+reject {
		f.rejectToken.Store("")
		f.writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_token"}`)
		return
	}
	if len(auth) < 8 || auth[:7] != "Bearer " {
		f.writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_token"}`)
		return
	}
	f.mu.Lock()
	f.requestIDs = append(f.requestIDs, r.Header.Get("PayPal-Request-Id"))
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders":
		var body map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.lastCreate = body
		f.mu.Unlock()
		f.writeJSON(w, http.StatusCreated, `{"id":"PAY-1","status":"CREATED","links":[
			{"href":"https://api.sandbox.paypal.com/v2/checkout/orders/PAY-1","rel":"self","method":"GET"},
			{"href":"https://www.sandbox.paypal.com/checkoutnow?token=PAY-1","rel":"approve","method":"GET"}]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/PAY-1/capture":
		f.writeJSON(w, http.StatusCreated, `{"id":"PAY-1","status":"COMPLETED",
			"payer":{"payer_id":"P1","email_address":"buyer@example.com","name":{"given_name":"Ada","surname":"Lovelace"}},
			"purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED"}]}}]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/PAY-DONE/capture":
		f.writeJSON(w, http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed.",
			"details":[{"issue":"ORDER_ALREADY_CAPTURED","description":"Order already captured."}]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/PAY-DOWN/capture":
		f.writeJSON(w, http.StatusServiceUnavailable, `{"name":"SERVICE_UNAVAILABLE","message":"Service Unavailable."}`)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/PAY-REVIEW/capture":
		f.writeJSON(w, http.StatusCreated, `{"id":"PAY-REVIEW","status":"PENDING"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/PAY-1":
		f.writeJSON(w, http.StatusOK, `{"id":"PAY-1","status":"COMPLETED","create_time":"2026-10-14T08:00:00Z",
			"purchase_units":[{"amount":{"currency_code":"USD","value":"29.90"},"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED"}]}}]}`)
	default:
		f.writeJSON(w, http.StatusNotFound, `{"name":"RESOURCE_NOT_FOUND","message":"not found","details":[{"issue":"INVALID_RESOURCE_ID","description":"Specified resource ID does not exist."}]}`)
	}
}

func newTestPayPal(t *testing.T, d *Data) (*fakePayPal, biz.PaymentGateway) {
	t.Helper()
	fake := &fakePayPal{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	gw, err := NewPayPalGateway(&conf.Payment{Paypal: &conf.Payment_PayPal{
		BaseUrl:      srv.URL,
		ClientId:     "client",
		ClientSecret: "secret",
		BrandName:    "Credits",
		ReturnUrl:    "https://example.com/return",
		CancelUrl:    "https://example.com/cancel",
	}}, d, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return fake, gw
}

func TestPayPalGateway_CreateCaptureGet(t *testing.T) {
	fake, gw := newTestPayPal(t, &Data{})
	ctx := context.Background()

	order, err := gw.CreateExternalOrder(ctx, &biz.CreateExternalOrderRequest{
		RequestID:   "order-1",
		Amount:      decimal.RequireFromString("29.9"),
		Currency:    "USD",
		Description: "Standard - 45 credits",
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", order.ID)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=PAY-1", order.ApprovalLink)

	units := fake.lastCreate["purchase_units"].([]interface{})
	amount := units[0].(map[string]interface{})["amount"].(map[string]interface{})
	assert.Equal(t, "29.90", amount["value"])
	assert.Equal(t, "USD", amount["currency_code"])
	assert.Equal(t, "CAPTURE", fake.lastCreate["intent"])

	capture, err := gw.CaptureExternalOrder(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", capture.CaptureID)
	assert.Equal(t, constants.PayPalStatusCompleted, capture.Status)
	require.NotNil(t, capture.Payer)
	assert.Equal(t, "Ada Lovelace", capture.Payer.Name)

	details, err := gw.GetExternalOrder(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "29.90", details.Amount)
	assert.Equal(t, "CAP-1", details.CaptureID)

	assert.Equal(t, int32(1), fake.tokenCalls.Load(), "access token is reused")
	assert.Equal(t, []string{"order-1", "capture-PAY-1", ""}, fake.requestIDs)
}

func TestPayPalGateway_Failures(t *testing.T) {
	_, gw := newTestPayPal(t, &Data{})
	ctx := context.Background()

	_, err := gw.CaptureExternalOrder(ctx, "PAY-DONE")
	f, ok := biz.AsPaymentFailure(err)
	require.True(t, ok)
	assert.Equal(t, "capture", f.Operation)
	assert.Equal(t, constants.PayPalIssueAlreadyCaptured, f.Issue)
	assert.Equal(t, http.StatusUnprocessableEntity, f.StatusCode)
	assert.False(t, f.Temporary)

	_, err = gw.CaptureExternalOrder(ctx, "PAY-DOWN")
	f, ok = biz.AsPaymentFailure(err)
	require.True(t, ok)
	assert.True(t, f.Temporary)
	assert.Equal(t, "Service Unavailable.", f.Reason)

	// 资金审核中未完成，可重试
	_, err = gw.CaptureExternalOrder(ctx, "PAY-REVIEW")
	f, ok = biz.AsPaymentFailure(err)
	require.True(t, ok)
	assert.Equal(t, "capture", f.Operation)
	assert.True(t, f.Temporary)
	assert.Contains(t, f.Reason, "PENDING")

	_, err = gw.GetExternalOrder(ctx, "PAY-404")
	f, ok = biz.AsPaymentFailure(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_RESOURCE_ID", f.Issue)
	assert.Equal(t, "get", f.Operation)
}

func TestPayPalGateway_NetworkFailureIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	gw, err := NewPayPalGateway(&conf.Payment{Paypal: &conf.Payment_PayPal{BaseUrl: base, ClientId: "client", ClientSecret: "secret"}},
		&Data{}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)

	_, err = gw.GetExternalOrder(context.Background(), "PAY-1")
	f, ok := biz.AsPaymentFailure(err)
	require.True(t, ok)
	assert.True(t, f.Temporary)
}

func TestPayPalGateway_MissingCredentials(t *testing.T) {
	gw, err := NewPayPalGateway(&conf.Payment{Paypal: &conf.Payment_PayPal{BaseUrl: "http://127.0.0.1:1"}}, &Data{}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)

	_, err = gw.GetExternalOrder(context.Background(), "PAY-1")
	f, ok := biz.AsPaymentFailure(err)
	require.True(t, ok)
	assert.False(t, f.Temporary)
}

func TestPayPalGateway_TokenCacheAndRefresh(t *testing.T) {
	mr, rdb := newTestRedis(t)
	fake, gw := newTestPayPal(t, &Data{rdb: rdb})
	ctx := context.Background()

	_, err := gw.GetExternalOrder(ctx, "PAY-1")
	require.NoError(t, err)
	cached, err := mr.Get(constants.RedisKeyPayPalToken + "client")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cached)
	assert.True(t, mr.TTL(constants.RedisKeyPayPalToken+"client") > 0)

	// 另一个实例从 Redis 读取 token
	otherFake, other := newTestPayPal(t, &Data{rdb: rdb})
	_, err = other.GetExternalOrder(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Zero(t, otherFake.tokenCalls.Load())

	fake.rejectToken.Store("tok-1")
	_, err = gw.GetExternalOrder(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.tokenCalls.Load())

	cached, err = mr.Get(constants.RedisKeyPayPalToken + "client")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", cached)
}

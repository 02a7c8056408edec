package data

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
)

const (
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"

	// token 提前过期，避免临界时刻使用已失效的 token
	tokenExpiryMargin    = 60 * time.Second
	defaultPayPalTimeout = 15 * time.Second
)

type paypalCallKey struct{}

type paypalCall struct {
	token     string
	requestID string
}

// paypalGateway PayPal Orders v2 适配器
type paypalGateway struct {
	api    *khttp.Client
	oauth  *khttp.Client
	prefix string
	conf   *conf.Payment_PayPal

	rdb      *redis.Client
	cacheKey string
	group    singleflight.Group
	mu       sync.Mutex
	token    string
	expireAt time.Time

	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewPayPalGateway 创建 PayPal 支付网关（返回 biz.PaymentGateway 接口）
func NewPayPalGateway(c *conf.Payment, data *Data, logger log.Logger) (biz.PaymentGateway, error) {
	helper := log.NewHelper(logger)
	pc := &conf.Payment_PayPal{Mode: "sandbox"}
	if c != nil && c.Paypal != nil {
		pc = c.Paypal
	}
	if pc.ClientId == "" || pc.ClientSecret == "" {
		helper.Warn("paypal credentials are not configured, payment calls will be rejected")
	}

	base := pc.BaseUrl
	if base == "" {
		base = paypalSandboxURL
		if pc.Mode == "live" {
			base = paypalLiveURL
		}
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid paypal base_url %q", base)
	}
	endpoint := u.Scheme + "://" + u.Host

	timeout := pc.Timeout.AsDuration()
	if timeout <= 0 {
		timeout = defaultPayPalTimeout
	}

	oauth, err := khttp.NewClient(context.Background(),
		khttp.WithEndpoint(endpoint),
		khttp.WithTimeout(timeout),
		khttp.WithMiddleware(basicAuth(pc.ClientId, pc.ClientSecret)),
		khttp.WithErrorDecoder(decodePayPalError),
	)
	if err != nil {
		return nil, fmt.Errorf("init paypal oauth client: %w", err)
	}
	api, err := khttp.NewClient(context.Background(),
		khttp.WithEndpoint(endpoint),
		khttp.WithTimeout(timeout),
		khttp.WithMiddleware(bearerAuth()),
		khttp.WithErrorDecoder(decodePayPalError),
	)
	if err != nil {
		return nil, fmt.Errorf("init paypal api client: %w", err)
	}

	return &paypalGateway{
		api:      api,
		oauth:    oauth,
		prefix:   strings.TrimRight(u.Path, "/"),
		conf:     pc,
		rdb:      data.rdb,
		cacheKey: constants.RedisKeyPayPalToken + pc.ClientId,
		log:      helper,
		metrics:  metrics.GetMetrics(),
	}, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type paypalCapture struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Amount *paypalAmount `json:"amount,omitempty"`
}

type paypalPurchaseUnit struct {
	ReferenceID string        `json:"reference_id,omitempty"`
	CustomID    string        `json:"custom_id,omitempty"`
	Description string        `json:"description,omitempty"`
	Amount      *paypalAmount `json:"amount,omitempty"`
	Payments    *struct {
		Captures []paypalCapture `json:"captures"`
	} `json:"payments,omitempty"`
}

type paypalPayer struct {
	PayerID      string `json:"payer_id"`
	EmailAddress string `json:"email_address"`
	Name         *struct {
		GivenName string `json:"given_name"`
		Surname   string `json:"surname"`
	} `json:"name,omitempty"`
}

type paypalApplicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
	UserAction         string `json:"user_action"`
	ShippingPreference string `json:"shipping_preference"`
}

type paypalCreateOrderRequest struct {
	Intent             string                    `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit      `json:"purchase_units"`
	ApplicationContext *paypalApplicationContext `json:"application_context,omitempty"`
}

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	CreateTime    string               `json:"create_time"`
	Links         []paypalLink         `json:"links"`
	Payer         *paypalPayer         `json:"payer"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalTokenRequest struct {
	GrantType string `json:"grant_type"`
}

type paypalTokenReply struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CreateExternalOrder 创建 CAPTURE 订单，RequestID 作为 PayPal-Request-Id 幂等键
func (g *paypalGateway) CreateExternalOrder(ctx context.Context, req *biz.CreateExternalOrderRequest) (*biz.ExternalOrder, error) {
	body := &paypalCreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.RequestID,
			CustomID:    req.RequestID,
			Description: req.Description,
			Amount: &paypalAmount{
				CurrencyCode: req.Currency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
		ApplicationContext: &paypalApplicationContext{
			BrandName:          g.conf.BrandName,
			ReturnURL:          g.conf.ReturnUrl,
			CancelURL:          g.conf.CancelUrl,
			UserAction:         "PAY_NOW",
			ShippingPreference: "NO_SHIPPING",
		},
	}

	var reply paypalOrder
	if err := g.call(ctx, "create", http.MethodPost, "/v2/checkout/orders", body, &reply, req.RequestID); err != nil {
		return nil, err
	}
	if reply.ID == "" {
		return nil, g.fail("create", &biz.PaymentFailure{Reason: "missing order id in response"})
	}

	order := &biz.ExternalOrder{ID: reply.ID, Status: reply.Status}
	for _, link := range reply.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			order.ApprovalLink = link.Href
			break
		}
	}
	if order.ApprovalLink == "" {
		return nil, g.fail("create", &biz.PaymentFailure{Reason: "missing approval link in response"})
	}
	return order, nil
}

// CaptureExternalOrder 扣款，PayPal-Request-Id 固定为订单ID，重试不会重复扣款
func (g *paypalGateway) CaptureExternalOrder(ctx context.Context, externalOrderID string) (*biz.CaptureResult, error) {
	var reply paypalOrder
	path := "/v2/checkout/orders/" + url.PathEscape(externalOrderID) + "/capture"
	if err := g.call(ctx, "capture", http.MethodPost, path, struct{}{}, &reply, "capture-"+externalOrderID); err != nil {
		return nil, err
	}
	if reply.Status != constants.PayPalStatusCompleted {
		// PENDING 等状态资金尚未到账，订单保持 pending 等待重试或对账
		return nil, g.fail("capture", &biz.PaymentFailure{Reason: "unexpected capture status " + reply.Status, Temporary: true})
	}
	return &biz.CaptureResult{
		ExternalOrderID: reply.ID,
		CaptureID:       firstCapture(&reply).ID,
		Status:          reply.Status,
		Payer:           toBizPayer(reply.Payer),
	}, nil
}

// GetExternalOrder 查询订单详情
func (g *paypalGateway) GetExternalOrder(ctx context.Context, externalOrderID string) (*biz.ExternalOrderDetails, error) {
	var reply paypalOrder
	if err := g.call(ctx, "get", http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(externalOrderID), nil, &reply, ""); err != nil {
		return nil, err
	}

	details := &biz.ExternalOrderDetails{
		ID:         reply.ID,
		Status:     reply.Status,
		CaptureID:  firstCapture(&reply).ID,
		Payer:      toBizPayer(reply.Payer),
		CreateTime: reply.CreateTime,
	}
	if len(reply.PurchaseUnits) > 0 && reply.PurchaseUnits[0].Amount != nil {
		details.Amount = reply.PurchaseUnits[0].Amount.Value
		details.Currency = reply.PurchaseUnits[0].Amount.CurrencyCode
	}
	return details, nil
}

// call 携带 access token 调用 API，401 时刷新 token 重试一次
func (g *paypalGateway) call(ctx context.Context, op, method, path string, args, reply interface{}, requestID string) error {
	for attempt := 0; ; attempt++ {
		token, err := g.accessToken(ctx)
		if err != nil {
			return g.fail(op, err)
		}

		callCtx := context.WithValue(ctx, paypalCallKey{}, &paypalCall{token: token, requestID: requestID})
		err = g.api.Invoke(callCtx, method, g.prefix+path, args, reply)
		if err == nil {
			g.observe(op, constants.ResultSuccess)
			return nil
		}
		if f, ok := biz.AsPaymentFailure(err); ok && f.StatusCode == http.StatusUnauthorized && attempt == 0 {
			g.log.Warnf("PayPal rejected access token, refreshing: operation=%s", op)
			g.invalidateToken(ctx, token)
			continue
		}
		return g.fail(op, err)
	}
}

// fail 统一转换为 *biz.PaymentFailure；非 PayPal 响应的错误视为临时错误
func (g *paypalGateway) fail(op string, err error) error {
	f, ok := biz.AsPaymentFailure(err)
	if !ok {
		f = &biz.PaymentFailure{Reason: err.Error(), Temporary: true}
	}
	failure := *f
	failure.Operation = op
	if failure.Temporary {
		g.observe(op, constants.ResultUnavailable)
	} else {
		g.observe(op, constants.ResultRejected)
	}
	g.log.Warnf("PayPal %s failed: status=%d, issue=%s, reason=%s", op, failure.StatusCode, failure.Issue, failure.Reason)
	return &failure
}

func (g *paypalGateway) observe(op, result string) {
	if g.metrics != nil {
		g.metrics.GatewayRequestTotal.WithLabelValues(op, result).Inc()
	}
}

// accessToken 依次读取内存、Redis，均未命中时向 PayPal 申请；并发刷新合并为一次请求
func (g *paypalGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.token != "" && time.Now().Before(g.expireAt) {
		token := g.token
		g.mu.Unlock()
		return token, nil
	}
	g.mu.Unlock()

	v, err, _ := g.group.Do(g.cacheKey, func() (interface{}, error) {
		return g.refreshToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *paypalGateway) refreshToken(ctx context.Context) (string, error) {
	if g.rdb != nil {
		cached, err := g.rdb.Get(ctx, g.cacheKey).Result()
		switch {
		case err == nil && cached != "":
			if ttl, err := g.rdb.TTL(ctx, g.cacheKey).Result(); err == nil && ttl > 0 {
				g.storeToken(cached, ttl)
			}
			return cached, nil
		case err != nil && !errors.Is(err, redis.Nil):
			g.log.Warnf("Read paypal token cache failed: %v", err)
		}
	}

	if g.conf.ClientId == "" || g.conf.ClientSecret == "" {
		return "", &biz.PaymentFailure{Operation: "token", Reason: "paypal credentials are not configured"}
	}

	var reply paypalTokenReply
	err := g.oauth.Invoke(ctx, http.MethodPost, g.prefix+"/v1/oauth2/token",
		&paypalTokenRequest{GrantType: "client_credentials"}, &reply,
		khttp.ContentType("application/x-www-form-urlencoded"))
	if err != nil {
		return "", err
	}
	if reply.AccessToken == "" {
		return "", &biz.PaymentFailure{Operation: "token", Reason: "empty access token"}
	}

	ttl := time.Duration(reply.ExpiresIn)*time.Second - tokenExpiryMargin
	if ttl <= 0 {
		ttl = time.Duration(reply.ExpiresIn) * time.Second / 2
	}
	g.storeToken(reply.AccessToken, ttl)
	if g.rdb != nil && ttl > 0 {
		if err := g.rdb.Set(ctx, g.cacheKey, reply.AccessToken, ttl).Err(); err != nil {
			g.log.Warnf("Write paypal token cache failed: %v", err)
		}
	}
	return reply.AccessToken, nil
}

func (g *paypalGateway) storeToken(token string, ttl time.Duration) {
	g.mu.Lock()
	g.token = token
	g.expireAt = time.Now().Add(ttl)
	g.mu.Unlock()
}

func (g *paypalGateway) invalidateToken(ctx context.Context, token string) {
	g.mu.Lock()
	if g.token == token {
		g.token = ""
		g.expireAt = time.Time{}
	}
	g.mu.Unlock()
	if g.rdb != nil {
		if err := g.rdb.Del(ctx, g.cacheKey).Err(); err != nil {
			g.log.Warnf("Delete paypal token cache failed: %v", err)
		}
	}
}

func firstCapture(o *paypalOrder) paypalCapture {
	for _, unit := range o.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			return unit.Payments.Captures[0]
		}
	}
	return paypalCapture{}
}

func toBizPayer(p *paypalPayer) *biz.Payer {
	if p == nil {
		return nil
	}
	payer := &biz.Payer{ID: p.PayerID, Email: p.EmailAddress}
	if p.Name != nil {
		payer.Name = strings.TrimSpace(p.Name.GivenName + " " + p.Name.Surname)
	}
	return payer
}

type paypalErrorReply struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// decodePayPalError 将非 2xx 响应转换为 *biz.PaymentFailure
func decodePayPalError(_ context.Context, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))

	var reply paypalErrorReply
	_ = json.Unmarshal(data, &reply)

	f := &biz.PaymentFailure{
		StatusCode: res.StatusCode,
		Temporary:  res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests,
	}
	if len(reply.Details) > 0 {
		f.Issue = reply.Details[0].Issue
		f.Reason = reply.Details[0].Description
	}
	for _, reason := range []string{reply.Message, reply.ErrorDescription, reply.Error, reply.Name, http.StatusText(res.StatusCode)} {
		if f.Reason != "" {
			break
		}
		f.Reason = reason
	}
	return f
}

func basicAuth(clientID, secret string) middleware.Middleware {
	credential := "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+secret))
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromClientContext(ctx); ok {
				tr.RequestHeader().Set("Authorization", credential)
				tr.RequestHeader().Set("Accept", "application/json")
			}
			return handler(ctx, req)
		}
	}
}

func bearerAuth() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromClientContext(ctx)
			call, _ := ctx.Value(paypalCallKey{}).(*paypalCall)
			if ok && call != nil {
				tr.RequestHeader().Set("Authorization", "Bearer "+call.token)
				tr.RequestHeader().Set("Prefer", "return=representation")
				if call.requestID != "" {
					tr.RequestHeader().Set("PayPal-Request-Id", call.requestID)
				}
			}
			return handler(ctx, req)
		}
	}
}

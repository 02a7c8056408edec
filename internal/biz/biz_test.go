package biz_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	"credit-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeGateway 内存中的支付网关
type fakeGateway struct {
	mu           sync.Mutex
	seq          int
	createErr    error
	captureErrs  []error // 依次返回，用完后扣款成功
	captureCalls int
	details      map[string]*biz.ExternalOrderDetails
	getErr       error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{details: make(map[string]*biz.ExternalOrderDetails)}
}

func (g *fakeGateway) CreateExternalOrder(_ context.Context, req *biz.CreateExternalOrderRequest) (*biz.ExternalOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("PAY-%d", g.seq)
	g.details[id] = &biz.ExternalOrderDetails{
		ID:       id,
		Status:   constants.PayPalStatusCreated,
		Amount:   req.Amount.StringFixed(2),
		Currency: req.Currency,
	}
	return &biz.ExternalOrder{ID: id, Status: constants.PayPalStatusCreated, ApprovalLink: "https://paypal.test/approve?token=" + id}, nil
}

func (g *fakeGateway) CaptureExternalOrder(_ context.Context, externalOrderID string) (*biz.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++
	if len(g.captureErrs) > 0 {
		err := g.captureErrs[0]
		g.captureErrs = g.captureErrs[1:]
		return nil, err
	}
	d, ok := g.details[externalOrderID]
	if !ok {
		return nil, &biz.PaymentFailure{Operation: "capture", Reason: "not found", Issue: "INVALID_RESOURCE_ID", StatusCode: 404}
	}
	if d.Status == constants.PayPalStatusCompleted {
		return nil, &biz.PaymentFailure{Operation: "capture", Reason: "already captured", Issue: constants.PayPalIssueAlreadyCaptured, StatusCode: 422}
	}
	d.Status = constants.PayPalStatusCompleted
	d.CaptureID = "CAP-" + externalOrderID
	return &biz.CaptureResult{ExternalOrderID: externalOrderID, CaptureID: d.CaptureID, Status: d.Status}, nil
}

func (g *fakeGateway) GetExternalOrder(_ context.Context, externalOrderID string) (*biz.ExternalOrderDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	d, ok := g.details[externalOrderID]
	if !ok {
		return nil, &biz.PaymentFailure{Operation: "get", Reason: "not found", Issue: "INVALID_RESOURCE_ID", StatusCode: 404}
	}
	copied := *d
	return &copied, nil
}

// setStatus 模拟用户在 PayPal 侧的操作
func (g *fakeGateway) setStatus(externalOrderID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d := g.details[externalOrderID]
	d.Status = status
	if status == constants.PayPalStatusCompleted {
		d.CaptureID = "CAP-" + externalOrderID
	}
}

func (g *fakeGateway) captures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captureCalls
}

type fakeGenerator struct {
	mu     sync.Mutex
	text   string
	err    error
	calls  int
	prompt string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompt = prompt
	return g.text, g.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*biz.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *biz.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type testEnv struct {
	db        *gorm.DB
	conf      *biz.CreditConfig
	gateway   *fakeGateway
	generator *fakeGenerator
	publisher *recordingPublisher
	accounts  biz.AccountRepo
	orders    biz.OrderRepo
	ledger    *biz.LedgerUseCase
	orderUC   *biz.OrderUseCase
	featureUC *biz.FeatureUseCase
	statsUC   *biz.StatsUseCase
	reconcile *biz.ReconcileUseCase
}

func newTestEnv(t *testing.T, credit *conf.Credit) *testEnv {
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

	cfg, err := biz.NewCreditConfig(&conf.Bootstrap{Credit: credit})
	require.NoError(t, err)
	catalog, err := biz.NewFeatureCatalog(cfg)
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		conf:      cfg,
		gateway:   newFakeGateway(),
		generator: &fakeGenerator{text: "generated text"},
		publisher: &recordingPublisher{},
		accounts:  data.NewAccountRepo(d, logger),
		orders:    data.NewOrderRepo(d, logger),
	}
	env.ledger = biz.NewLedgerUseCase(env.accounts, env.publisher, cfg, logger)
	env.orderUC = biz.NewOrderUseCase(env.orders, env.gateway, env.ledger, data.NewCaptureLocker(nil, cfg, logger), cfg, logger)
	env.featureUC = biz.NewFeatureUseCase(catalog, env.ledger, env.generator, cfg, logger)
	env.statsUC = biz.NewStatsUseCase(data.NewStatsRepo(d, logger), logger)
	env.reconcile = biz.NewReconcileUseCase(env.orders, env.orderUC, env.ledger, cfg, logger)
	return env
}

// buy 下单并扣款，返回扣款结果
func (e *testEnv) buy(t *testing.T, userID, planID string) *biz.CaptureOrderResult {
	t.Helper()
	ctx := context.Background()
	opened, err := e.orderUC.OpenOrder(ctx, userID, planID)
	require.NoError(t, err)
	captured, err := e.orderUC.CaptureOrder(ctx, userID, opened.Order.ExternalOrderID)
	require.NoError(t, err)
	return captured
}

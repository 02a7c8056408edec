package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu     sync.Mutex
	synced []string
	errs   map[string]error
}

func (f *fakeSyncer) SyncExternalOrder(_ context.Context, externalOrderID string) (*biz.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, externalOrderID)
	if err := f.errs[externalOrderID]; err != nil {
		return nil, err
	}
	return &biz.Order{ExternalOrderID: externalOrderID, Status: constants.OrderStatusCompleted}, nil
}

func newTestConsumer(syncer orderSyncer) *PaymentNotifyConsumer {
	return &PaymentNotifyConsumer{
		orders:  syncer,
		log:     log.NewHelper(log.NewStdLogger(io.Discard)),
		enabled: true,
	}
}

func message(body string) *primitive.MessageExt {
	return &primitive.MessageExt{Message: primitive.Message{Body: []byte(body)}}
}

func TestWebhookEvent_OrderID(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"order approved", `{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PAY-1"}}`, "PAY-1"},
		{"order completed", `{"event_type":"CHECKOUT.ORDER.COMPLETED","resource":{"id":"PAY-2"}}`, "PAY-2"},
		{
			"capture completed",
			`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-3","supplementary_data":{"related_ids":{"order_id":"PAY-3"}}}}`,
			"PAY-3",
		},
		{"capture without related order", `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-4"}}`, ""},
		{"other event", `{"event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"CAP-5"}}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var event paypalWebhookEvent
			require.NoError(t, json.Unmarshal([]byte(tc.body), &event))
			assert.Equal(t, tc.want, event.orderID())
		})
	}
}

func TestPaymentNotifyConsumer_SyncsOrders(t *testing.T) {
	syncer := &fakeSyncer{errs: map[string]error{
		"PAY-GONE": creditErrors.New(creditErrors.ErrCodeOrderNotFound),
	}}
	s := newTestConsumer(syncer)

	result, err := s.handler(context.Background(),
		message(`{"id":"WH-1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PAY-1"}}`),
		message(`not json`),
		message(`{"id":"WH-2","event_type":"CHECKOUT.ORDER.COMPLETED","resource":{"id":"PAY-GONE"}}`),
		message(`{"id":"WH-3","event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"CAP-9"}}`),
	)
	require.NoError(t, err)
	assert.Equal(t, consumer.ConsumeSuccess, result)
	assert.Equal(t, []string{"PAY-1", "PAY-GONE"}, syncer.synced)
}

func TestPaymentNotifyConsumer_RetriesTransientFailure(t *testing.T) {
	syncer := &fakeSyncer{errs: map[string]error{
		"PAY-1": creditErrors.Wrap(errors.New("timeout"), creditErrors.ErrCodePaymentUnavailable),
	}}
	s := newTestConsumer(syncer)

	result, err := s.handler(context.Background(),
		message(`{"id":"WH-1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PAY-1"}}`),
		message(`{"id":"WH-2","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PAY-2"}}`),
	)
	require.NoError(t, err)
	assert.Equal(t, consumer.ConsumeRetryLater, result)
	assert.Equal(t, []string{"PAY-1", "PAY-2"}, syncer.synced)
}

func TestPaymentNotifyConsumer_DisabledLifecycle(t *testing.T) {
	s := NewPaymentNotifyConsumer(nil, nil, log.NewStdLogger(io.Discard))
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}

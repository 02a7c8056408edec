package server

import (
	"context"
	"encoding/json"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

type orderSyncer interface {
	SyncExternalOrder(ctx context.Context, externalOrderID string) (*biz.Order, error)
}

// paypalWebhookEvent 边缘网关转发的 PayPal webhook 事件
type paypalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// orderID 返回事件关联的 PayPal 订单ID，不关心的事件返回空
func (e *paypalWebhookEvent) orderID() string {
	switch e.EventType {
	case constants.PayPalEventOrderApproved, constants.PayPalEventOrderCompleted:
		return e.Resource.ID
	case constants.PayPalEventCaptureComplete:
		// capture 事件的 resource 是 capture 本身
		return e.Resource.SupplementaryData.RelatedIDs.OrderID
	default:
		return ""
	}
}

// PaymentNotifyConsumer 消费支付通知，驱动订单与 PayPal 状态对齐
type PaymentNotifyConsumer struct {
	c       rocketmq.PushConsumer
	orders  orderSyncer
	conf    *conf.Data
	log     *log.Helper
	enabled bool
}

// NewPaymentNotifyConsumer 创建支付通知消费者
func NewPaymentNotifyConsumer(c *conf.Data, orders *biz.OrderUseCase, logger log.Logger) *PaymentNotifyConsumer {
	helper := log.NewHelper(logger)
	if c == nil || c.Rocketmq == nil || !c.Rocketmq.Enabled {
		return &PaymentNotifyConsumer{log: helper}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Rocketmq.GroupName),
		consumer.WithRetry(int(c.Rocketmq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(16),
	)
	if err != nil {
		helper.Errorf("init payment notify consumer error: %v", err)
		return &PaymentNotifyConsumer{log: helper}
	}

	return &PaymentNotifyConsumer{
		c:       r,
		orders:  orders,
		conf:    c,
		log:     helper,
		enabled: true,
	}
}

// Start 启动消费者
func (s *PaymentNotifyConsumer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("PaymentNotifyConsumer is disabled, skipping startup")
		return nil
	}

	topic := s.conf.Rocketmq.NotifyTopic
	s.log.Infof("Starting PaymentNotifyConsumer, topic: %s", topic)

	if err := s.c.Subscribe(topic, consumer.MessageSelector{}, s.handler); err != nil {
		// 不返回错误，RocketMQ 不可用时对账任务兜底
		s.log.Errorf("Failed to subscribe to topic %s: %v", topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop 停止消费者
func (s *PaymentNotifyConsumer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping PaymentNotifyConsumer")
	return s.c.Shutdown()
}

func (s *PaymentNotifyConsumer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	result := consumer.ConsumeSuccess
	for _, msg := range msgs {
		var event paypalWebhookEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("Unmarshal payment notify failed: %v, body: %s", err, string(msg.Body))
			continue
		}
		orderID := event.orderID()
		if orderID == "" {
			s.log.Debugf("Skip payment notify: event_id=%s, event_type=%s", event.ID, event.EventType)
			continue
		}

		if _, err := s.orders.SyncExternalOrder(ctx, orderID); err != nil {
			if creditErrors.Is(err, creditErrors.ErrCodeOrderNotFound) {
				s.log.Warnf("Payment notify for unknown order: event_id=%s, external_order_id=%s", event.ID, orderID)
				continue
			}
			s.log.Errorf("Sync order from payment notify failed: event_id=%s, external_order_id=%s, err=%v", event.ID, orderID, err)
			// 同步幂等，整批重投
			result = consumer.ConsumeRetryLater
			continue
		}
		s.log.Infof("Payment notify applied: event_id=%s, event_type=%s, external_order_id=%s", event.ID, event.EventType, orderID)
	}
	return result, nil
}

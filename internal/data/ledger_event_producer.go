package data

import (
	"context"
	"encoding/json"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// ledgerEventPublisher 将账本事件写入 RocketMQ
type ledgerEventPublisher struct {
	data  *Data
	topic string
	log   *log.Helper
}

// NewLedgerEventPublisher 创建账本事件投递器，生产者未启用时返回 nil
func NewLedgerEventPublisher(data *Data, c *conf.Data, logger log.Logger) biz.LedgerEventPublisher {
	if data.mq == nil || c == nil || c.Rocketmq == nil {
		return nil
	}
	return &ledgerEventPublisher{
		data:  data,
		topic: c.Rocketmq.LedgerTopic,
		log:   log.NewHelper(logger),
	}
}

// Publish 同步发送，消息 key 为用户ID，tag 为流水类型
func (p *ledgerEventPublisher) Publish(ctx context.Context, event *biz.LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}

	msg := primitive.NewMessage(p.topic, body).
		WithKeys([]string{event.UserID, event.EventID}).
		WithTag(event.Type)
	result, err := p.data.mq.SendSync(ctx, msg)
	if err != nil {
		return fmt.Errorf("send ledger event: %w", err)
	}
	if result.Status != primitive.SendOK {
		return fmt.Errorf("send ledger event: status=%d", result.Status)
	}
	p.log.Debugf("Ledger event published: eventID=%s, msgID=%s", event.EventID, result.MsgID)
	return nil
}

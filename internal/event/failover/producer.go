package failover

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecodeclub/mq-api"
)

const FailoverTopic = "provider_failover_event"

// Event 供应商故障转移事件，供下游告警和审计消费
type Event struct {
	TenantID   int64  `json:"tenantId"`
	ConfigID   int64  `json:"configId"`
	Channel    string `json:"channel"`
	Provider   string `json:"provider"`
	Status     string `json:"status"` // 故障后的健康状态
	Reason     string `json:"reason"`
	OccurredAt int64  `json:"occurredAt"`
}

//go:generate mockgen -source=./producer.go -package=evtmocks -destination=../mocks/failover_event_producer.mock.go -typed EventProducer
type EventProducer interface {
	Produce(ctx context.Context, evt Event) error
}

type Producer struct {
	producer mq.Producer
}

func NewProducer(producer mq.Producer) *Producer {
	return &Producer{producer: producer}
}

func (p *Producer) Produce(ctx context.Context, evt Event) error {
	evtStr, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化topic的消息失败 %w", err)
	}
	_, err = p.producer.Produce(ctx, &mq.Message{
		Topic: FailoverTopic,
		Value: evtStr,
	})
	return err
}

// NopProducer 未接入消息队列时的空实现
type NopProducer struct{}

func (NopProducer) Produce(_ context.Context, _ Event) error {
	return nil
}

package ioc

import (
	"context"
	"sync"

	"gitee.com/flycash/channel-gateway/internal/event/failover"
	"github.com/ecodeclub/mq-api"
	"github.com/ecodeclub/mq-api/memory"
)

var (
	q          mq.MQ
	mqInitOnce sync.Once
)

func InitMQ() mq.MQ {
	mqInitOnce.Do(func() {
		type Topic struct {
			Name       string
			Partitions int
		}
		topics := []Topic{
			{
				Name:       failover.FailoverTopic,
				Partitions: 1,
			},
		}
		q = memory.NewMQ()
		for _, t := range topics {
			if err := q.CreateTopic(context.Background(), t.Name, t.Partitions); err != nil {
				panic(err)
			}
		}
	})
	return q
}

func InitFailoverProducer(q mq.MQ) failover.EventProducer {
	p, err := q.Producer(failover.FailoverTopic)
	if err != nil {
		panic(err)
	}
	return failover.NewProducer(p)
}

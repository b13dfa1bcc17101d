package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/utils"
	"leverage-executor-sol/pkg/logger"
)

const defaultSendTimeout = 3 * time.Second

// Publisher 发布仓位事件
type Publisher interface {
	Publish(ctx context.Context, events ...*core.PositionEvent) error
}

// KafkaPublisher 将仓位事件编码后发送到 Kafka，按钱包公钥选择分区
type KafkaPublisher struct {
	producer   Producer
	topic      string
	partitions uint32
	timeout    time.Duration
}

func NewKafkaPublisher(producer Producer, topic string, partitions int, timeout time.Duration) *KafkaPublisher {
	if partitions <= 0 {
		partitions = 1
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &KafkaPublisher{
		producer:   producer,
		topic:      topic,
		partitions: uint32(partitions),
		timeout:    timeout,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...*core.PositionEvent) error {
	if len(events) == 0 {
		return nil
	}
	jobs := make([]*KafkaJob, 0, len(events))
	for _, ev := range events {
		value, err := utils.EncodePositionEvent(ev)
		if err != nil {
			return err
		}
		jobs = append(jobs, &KafkaJob{
			Topic:     p.topic,
			Partition: int32(utils.PartitionHashBytes(ev.Wallet, p.partitions)),
			Key:       ev.Wallet,
			Value:     value,
		})
	}

	ok, failed := SendKafkaJobs(ctx, p.producer, jobs, p.timeout)
	if len(failed) == 0 {
		logger.Debugf("[mq] 事件发送完成: topic=%s, count=%d", p.topic, len(ok))
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, f.Err)
	}
	logger.Warnf("[mq] 事件发送失败: topic=%s, ok=%d, failed=%d", p.topic, len(ok), len(failed))
	return fmt.Errorf("publish %d/%d events: %w", len(failed), len(jobs), errors.Join(errs...))
}

// LogPublisher 未配置 Kafka 时使用，只记录日志
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, events ...*core.PositionEvent) error {
	for _, ev := range events {
		logger.Infof("[mq] event=%s id=%s kind=%s signatures=%d err=%q", ev.Type, ev.ID, ev.Kind, len(ev.Signatures), ev.Error)
	}
	return nil
}

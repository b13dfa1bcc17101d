package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Producer 发送单条消息的能力，*kafka.Producer 满足该接口
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

// KafkaJob 表示一条需要发送的 Kafka 消息
type KafkaJob struct {
	Topic     string
	Partition int32
	Key       []byte
	Value     []byte
}

// KafkaSendResult 表示单条消息的发送结果
type KafkaSendResult struct {
	Job *KafkaJob
	Err error
}

// SendKafkaJobs 并发发送多条消息并等待投递回执，受 ctx 与单条超时共同约束。
// 返回的成功列表保持 jobs 的原始顺序。
func SendKafkaJobs(ctx context.Context, producer Producer, jobs []*KafkaJob, perMessageTimeout time.Duration) (ok []*KafkaJob, failed []KafkaSendResult) {
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *KafkaJob) {
			defer wg.Done()
			errs[i] = sendOne(ctx, producer, job, perMessageTimeout)
		}(i, job)
	}
	wg.Wait()

	for i, job := range jobs {
		if errs[i] != nil {
			failed = append(failed, KafkaSendResult{Job: job, Err: errs[i]})
			continue
		}
		ok = append(ok, job)
	}
	return ok, failed
}

func sendOne(ctx context.Context, producer Producer, job *KafkaJob, timeout time.Duration) error {
	topic := job.Topic
	delivery := make(chan kafka.Event, 1)
	err := producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: job.Partition},
		Key:            job.Key,
		Value:          job.Value,
	}, delivery)
	if err != nil {
		return fmt.Errorf("produce error: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case e, open := <-delivery:
		if !open {
			return fmt.Errorf("delivery channel closed unexpectedly")
		}
		msg, isMsg := e.(*kafka.Message)
		if !isMsg {
			return fmt.Errorf("invalid delivery event: %T", e)
		}
		return msg.TopicPartition.Error
	case <-timer.C:
		go drain(delivery)
		return fmt.Errorf("delivery timeout (>%v)", timeout)
	case <-ctx.Done():
		go drain(delivery)
		return fmt.Errorf("ctx cancelled: %w", ctx.Err())
	}
}

// drain 消费迟到的回执，避免 librdkafka 回调阻塞
func drain(ch <-chan kafka.Event) {
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
	}
}

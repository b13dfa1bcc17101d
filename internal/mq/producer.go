package mq

import (
	"context"
	"fmt"
	"time"

	"leverage-executor-sol/internal/utils"
	"leverage-executor-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	defaultBatchSize   = 16 * 1024
	defaultLingerMs    = 5
	metadataTimeoutMs  = 10_000
	createTopicTimeout = 10 * time.Second
)

// TopicOption topic 名称与分区数
type TopicOption struct {
	Topic      string
	Partitions int
}

// KafkaProducerOption Kafka 生产者参数
type KafkaProducerOption struct {
	Brokers   string // 多个用英文逗号分隔
	BatchSize int    // 批处理大小（字节）
	LingerMs  int    // 批处理最大延迟（毫秒）
	Topics    []TopicOption
}

// NewKafkaProducer 确保 topic 存在后创建幂等生产者
func NewKafkaProducer(opt KafkaProducerOption) (*kafka.Producer, error) {
	if err := ensureTopics(opt); err != nil {
		return nil, err
	}

	batchSize := opt.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := opt.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
		"client.id":         fmt.Sprintf("leverage-executor-%s", utils.GetLocalIP()),

		// 幂等写入，max.in.flight 在幂等场景下最大为 5
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5,

		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		"batch.size":        batchSize,
		"linger.ms":         lingerMs,
		"compression.type":  "none",
		"message.max.bytes": 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}

// ensureTopics 创建缺失的 topic，副本数按 broker 数量取 1 或 2
func ensureTopics(opt KafkaProducerOption) error {
	if len(opt.Topics) == 0 {
		return nil
	}
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": opt.Brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	meta, err := admin.GetMetadata(nil, true, metadataTimeoutMs)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	replication := 1
	if len(meta.Brokers) > 1 {
		replication = 2
	}

	var missing []kafka.TopicSpecification
	for _, t := range opt.Topics {
		if _, ok := meta.Topics[t.Topic]; ok || t.Topic == "" {
			continue
		}
		partitions := t.Partitions
		if partitions <= 0 {
			partitions = 1
		}
		missing = append(missing, kafka.TopicSpecification{
			Topic:             t.Topic,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}
	if len(missing) == 0 {
		return nil
	}

	logger.Infof("[mq] 创建 topic: count=%d, brokers=%d, replication=%d", len(missing), len(meta.Brokers), replication)
	ctx, cancel := context.WithTimeout(context.Background(), createTopicTimeout)
	defer cancel()
	results, err := admin.CreateTopics(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, r := range results {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", r.Topic, r.Error)
		}
	}
	return nil
}

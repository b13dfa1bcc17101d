package svc

import (
	"context"
	"fmt"
	"time"

	"leverage-executor-sol/internal/chain"
	"leverage-executor-sol/internal/config"
	"leverage-executor-sol/internal/logic/lookuptable"
	"leverage-executor-sol/internal/logic/position"
	"leverage-executor-sol/internal/logic/protocol"
	"leverage-executor-sol/internal/logic/swap"
	"leverage-executor-sol/internal/logic/txbuilder"
	"leverage-executor-sol/internal/mq"
	"leverage-executor-sol/internal/wallet"
	"leverage-executor-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

const (
	redisPingTimeout = 3 * time.Second
	producerFlushMs  = 5000
)

// ServiceContext 包含仓位执行服务依赖的全部资源
type ServiceContext struct {
	Config    *config.Config
	Signer    types.Account
	Chain     *chain.Client // 模拟模式下为 nil
	Redis     *redis.Client // 未配置时为 nil，元数据存于进程内
	Producer  *kafka.Producer
	Publisher mq.Publisher
	Executor  *position.Executor
}

// NewServiceContext 按配置初始化资源。模拟模式不创建任何网络连接。
func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	signer, err := wallet.Load(c.Wallet.KeyFile)
	if err != nil {
		return nil, err
	}
	ctx := &ServiceContext{Config: c, Signer: signer, Publisher: mq.LogPublisher{}}

	if c.Position.SimulateOnly {
		ctx.Executor = position.NewExecutor(nil, nil, nil, nil, ctx.Publisher, position.Options{SimulateOnly: true})
		logger.Infof("[svc] 模拟模式，跳过 RPC / Redis / Kafka 初始化")
		return ctx, nil
	}

	// 1. RPC
	ctx.Chain, err = chain.NewClient(c.RPC.ToClientOption())
	if err != nil {
		return nil, err
	}

	// 2. 用户压缩表元数据存储
	var store lookuptable.MetaStore = lookuptable.NewMemoryStore()
	if c.Redis.Addr != "" {
		ctx.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		err := ctx.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			ctx.Close()
			return nil, fmt.Errorf("redis ping %s: %w", c.Redis.Addr, err)
		}
		store = lookuptable.NewRedisMetaStore(ctx.Redis, c.Redis.KeyPrefix)
	}

	// 3. 事件发布
	if c.KafkaProducerConf.Brokers != "" {
		ctx.Producer, err = mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
		if err != nil {
			logger.Errorf("[svc] Kafka producer 初始化失败: %v", err)
			ctx.Close()
			return nil, err
		}
		ctx.Publisher = mq.NewKafkaPublisher(ctx.Producer, c.KafkaProducerConf.Topic, c.KafkaProducerConf.Partitions,
			time.Duration(c.KafkaProducerConf.SendTimeoutMs)*time.Millisecond)
	}

	// 4. 协议指令层与报价
	layer, err := protocol.NewRemoteLayer(c.Protocol.ToRemoteOption(c.Swap.MaxAccounts))
	if err != nil {
		ctx.Close()
		return nil, err
	}
	swapper := swap.NewJupiterClient(c.Swap.Endpoint, time.Duration(c.Swap.TimeoutMs)*time.Millisecond)

	// 5. 构建引擎与执行器
	tables := lookuptable.NewManager(ctx.Chain, store, lookuptable.NativeBuilder{}, c.LookupTable.ToManagerOption())
	engine := txbuilder.NewEngine(tables, ctx.Chain, c.ToEngineOption())
	ctx.Executor = position.NewExecutor(layer, swapper, engine, ctx.Chain, ctx.Publisher, position.Options{
		OperationTimeout: time.Duration(c.Position.OperationTimeoutSec) * time.Second,
	})

	logger.Infof("[svc] 服务上下文初始化完成: rpc=%s, redis=%t, kafka=%t", c.RPC.Endpoint, ctx.Redis != nil, ctx.Producer != nil)
	return ctx, nil
}

// Close 关闭服务上下文中的资源
func (ctx *ServiceContext) Close() {
	if ctx.Producer != nil {
		if remaining := ctx.Producer.Flush(producerFlushMs); remaining > 0 {
			logger.Warnf("[svc] Kafka 仍有 %d 条消息未发送", remaining)
		}
		ctx.Producer.Close()
	}
	if ctx.Redis != nil {
		if err := ctx.Redis.Close(); err != nil {
			logger.Warnf("[svc] 关闭 Redis 失败: %v", err)
		}
	}
}

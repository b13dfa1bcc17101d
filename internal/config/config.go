package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"leverage-executor-sol/internal/chain"
	"leverage-executor-sol/internal/logic/lookuptable"
	"leverage-executor-sol/internal/logic/protocol"
	"leverage-executor-sol/internal/logic/txbuilder"
	"leverage-executor-sol/internal/mq"
	itypes "leverage-executor-sol/internal/types"
	"leverage-executor-sol/pkg/logger"

	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径），为空只输出到 stdout
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// RPCConfig Solana RPC 节点配置
type RPCConfig struct {
	Endpoint         string  `yaml:"endpoint"`           // RPC 地址
	RateLimit        float64 `yaml:"rate_limit"`         // 每秒请求数，0 表示不限速
	Burst            int     `yaml:"burst"`              // 令牌桶容量
	MaxRetries       uint64  `yaml:"max_retries"`        // 瞬时错误最大重试次数
	ConfirmTimeoutMs int     `yaml:"confirm_timeout_ms"` // 等待交易确认的超时（毫秒）
	PollIntervalMs   int     `yaml:"poll_interval_ms"`   // 轮询签名状态的间隔（毫秒）
}

func (c *RPCConfig) ToClientOption() chain.Options {
	return chain.Options{
		Endpoint:       c.Endpoint,
		RateLimit:      c.RateLimit,
		Burst:          c.Burst,
		MaxRetries:     c.MaxRetries,
		ConfirmTimeout: time.Duration(c.ConfirmTimeoutMs) * time.Millisecond,
		PollInterval:   time.Duration(c.PollIntervalMs) * time.Millisecond,
	}
}

// RedisConfig 用户压缩表元数据存储，Addr 为空时使用进程内存储
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置，Brokers 为空时事件只写日志
type KafkaProducerConfig struct {
	Brokers       string `yaml:"brokers"`         // Kafka broker 地址，多个用英文逗号分隔
	BatchSize     int    `yaml:"batch_size"`      // 批处理大小（单位字节）
	LingerMs      int    `yaml:"linger_ms"`       // 批处理最大延迟（毫秒）
	Topic         string `yaml:"topic"`           // 仓位事件 topic
	Partitions    int    `yaml:"partitions"`      // 仓位事件 topic 的分区数
	SendTimeoutMs int    `yaml:"send_timeout_ms"` // 单条事件发送并等待 ack 的超时
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics:    []mq.TopicOption{{Topic: c.Topic, Partitions: c.Partitions}},
	}
}

// LookupTableConfig 用户压缩表配置
type LookupTableConfig struct {
	Disabled       bool `yaml:"disabled"`         // 关闭用户压缩表，只使用外部表
	CreateSettleMs int  `yaml:"create_settle_ms"` // 建表后等待生效的时间
	ExtendSettleMs int  `yaml:"extend_settle_ms"` // 扩表后等待生效的时间
}

func (c *LookupTableConfig) ToManagerOption() lookuptable.Options {
	return lookuptable.Options{
		CreateSettle: time.Duration(c.CreateSettleMs) * time.Millisecond,
		ExtendSettle: time.Duration(c.ExtendSettleMs) * time.Millisecond,
	}
}

// TargetConfig 一个定时执行的仓位操作
type TargetConfig struct {
	Kind           string  `yaml:"kind"`            // open / adjust / close
	Market         string  `yaml:"market"`          // 借贷市场地址
	CollateralMint string  `yaml:"collateral_mint"` // 抵押资产 mint
	DebtMint       string  `yaml:"debt_mint"`       // 借出资产 mint
	Amount         uint64  `yaml:"amount"`          // 本金（最小单位）
	TargetLeverage float64 `yaml:"target_leverage"` // 目标杠杆
	SlippageBps    int     `yaml:"slippage_bps"`    // 滑点（bps）
}

// ToOperation 解析地址字段，wallet 由调用方填入
func (c *TargetConfig) ToOperation() (protocol.Operation, error) {
	kind, err := protocol.ParseKind(c.Kind)
	if err != nil {
		return protocol.Operation{}, err
	}
	keys, err := itypes.TryPubkeysFromBase58([]string{c.Market, c.CollateralMint, c.DebtMint})
	if err != nil {
		return protocol.Operation{}, fmt.Errorf("target %s: %w", c.Kind, err)
	}
	return protocol.Operation{
		Kind:           kind,
		Market:         keys[0],
		CollateralMint: keys[1],
		DebtMint:       keys[2],
		Amount:         c.Amount,
		TargetLeverage: c.TargetLeverage,
		SlippageBps:    c.SlippageBps,
	}, nil
}

// PositionConfig 仓位执行配置
type PositionConfig struct {
	SimulateOnly        bool           `yaml:"simulate_only"`         // 只输出计划，不访问网络
	OperationTimeoutSec int            `yaml:"operation_timeout_sec"` // 单次操作的总超时（秒）
	Schedule            string         `yaml:"schedule"`              // cron 表达式（支持秒），为空则只在启动时执行一次
	ComputeUnitLimit    uint32         `yaml:"compute_unit_limit"`    // 0 表示不设置
	ComputeUnitPrice    uint64         `yaml:"compute_unit_price"`    // 优先费（micro-lamports / CU），0 表示不设置
	Targets             []TargetConfig `yaml:"targets"`
}

// ToEngineOption 交易构建引擎配置
func (c *Config) ToEngineOption() txbuilder.Options {
	return txbuilder.Options{
		DisableUserLUT:   c.LookupTable.Disabled,
		ComputeUnitLimit: c.Position.ComputeUnitLimit,
		ComputeUnitPrice: c.Position.ComputeUnitPrice,
	}
}

// SwapConfig 报价服务配置
type SwapConfig struct {
	Endpoint    string `yaml:"endpoint"`     // Jupiter API 地址
	TimeoutMs   int    `yaml:"timeout_ms"`   // 请求超时（毫秒）
	MaxAccounts int    `yaml:"max_accounts"` // 路由允许的最大账户数
}

// ProtocolConfig 协议指令 sidecar 配置
type ProtocolConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

func (c *ProtocolConfig) ToRemoteOption(maxSwapAccounts int) protocol.RemoteOptions {
	return protocol.RemoteOptions{
		Endpoint:        c.Endpoint,
		Timeout:         time.Duration(c.TimeoutMs) * time.Millisecond,
		MaxSwapAccounts: maxSwapAccounts,
	}
}

// MetricsConfig Prometheus 指标端点，Addr 为空时不启动
type MetricsConfig struct {
	Addr string `yaml:"addr"` // 例如 ":9102"
	Path string `yaml:"path"` // 默认 /metrics
}

type WalletConfig struct {
	KeyFile string `yaml:"key_file"` // solana-keygen JSON 或 base58 私钥文件
}

// Config 是主配置结构体，用于驱动仓位执行服务
type Config struct {
	LogConf           LogConfig           `yaml:"logger"`
	RPC               RPCConfig           `yaml:"rpc"`
	Redis             RedisConfig         `yaml:"redis"`
	KafkaProducerConf KafkaProducerConfig `yaml:"kafka_producer"`
	LookupTable       LookupTableConfig   `yaml:"lookup_table"`
	Position          PositionConfig      `yaml:"position"`
	Swap              SwapConfig          `yaml:"swap"`
	Protocol          ProtocolConfig      `yaml:"protocol"`
	Metrics           MetricsConfig       `yaml:"metrics"`
	Wallet            WalletConfig        `yaml:"wallet"`
}

// Load 读取 YAML 配置并填充默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// MustLoad 同 Load，出错时 panic
func MustLoad(path string) *Config {
	c, err := Load(path)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Config) setDefaults() {
	if c.LogConf.Format == "" {
		c.LogConf.Format = "console"
	}
	if c.LogConf.Level == "" {
		c.LogConf.Level = "info"
	}
	if c.KafkaProducerConf.Topic == "" {
		c.KafkaProducerConf.Topic = "leverage-position-events"
	}
	if c.KafkaProducerConf.Partitions <= 0 {
		c.KafkaProducerConf.Partitions = 4
	}
	if c.KafkaProducerConf.SendTimeoutMs <= 0 {
		c.KafkaProducerConf.SendTimeoutMs = 3000
	}
	if c.LookupTable.CreateSettleMs <= 0 {
		c.LookupTable.CreateSettleMs = 2000
	}
	if c.LookupTable.ExtendSettleMs <= 0 {
		c.LookupTable.ExtendSettleMs = 1000
	}
	if c.Position.OperationTimeoutSec <= 0 {
		c.Position.OperationTimeoutSec = 120
	}
	if c.Swap.Endpoint == "" {
		c.Swap.Endpoint = "https://quote-api.jup.ag/v6"
	}
	if c.Swap.TimeoutMs <= 0 {
		c.Swap.TimeoutMs = 10_000
	}
	if c.Swap.MaxAccounts <= 0 {
		c.Swap.MaxAccounts = 30
	}
	if c.Protocol.TimeoutMs <= 0 {
		c.Protocol.TimeoutMs = 15_000
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate 检查必填项。模拟模式不访问网络，RPC 与 sidecar 可以为空。
func (c *Config) Validate() error {
	var errs []error
	if !c.Position.SimulateOnly {
		if c.RPC.Endpoint == "" {
			errs = append(errs, errors.New("rpc.endpoint is required"))
		}
		if c.Protocol.Endpoint == "" {
			errs = append(errs, errors.New("protocol.endpoint is required"))
		}
	}
	if c.Wallet.KeyFile == "" {
		errs = append(errs, errors.New("wallet.key_file is required"))
	}
	for i := range c.Position.Targets {
		if _, err := c.Position.Targets[i].ToOperation(); err != nil {
			errs = append(errs, fmt.Errorf("position.targets[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

package core

import "time"

// PositionEventType 表示仓位操作事件的类别，同时作为 mq 消息前缀中的事件类型
type PositionEventType uint32

const (
	EventPositionSucceeded PositionEventType = iota + 1
	EventPositionFailed
	EventPositionSimulated
	EventTableExtended
)

func (t PositionEventType) String() string {
	switch t {
	case EventPositionSucceeded:
		return "position_succeeded"
	case EventPositionFailed:
		return "position_failed"
	case EventPositionSimulated:
		return "position_simulated"
	case EventTableExtended:
		return "table_extended"
	default:
		return "unknown"
	}
}

// PositionEvent 表示一次仓位操作（或其副作用）的结果记录，发送到 Kafka 供积分 / 奖励日志等下游消费。
type PositionEvent struct {
	ID         string            // 操作 ID（uuid）
	Type       PositionEventType // 事件类别
	Wallet     []byte            // 钱包公钥（32 字节），同时作为分区 key
	Kind       string            // open / adjust / close
	Market     string
	Signatures []string // 已确认的交易签名，按批次顺序
	TxSizes    []int    // 每批交易的序列化字节数
	Attempts   int      // fit 尝试次数（最多 2）
	Error      string
	Timestamp  time.Time
}

package utils

import (
	"encoding/binary"
	"errors"
	"fmt"

	"leverage-executor-sol/internal/logic/core"

	"github.com/mr-tron/base58"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// eventPrefixLen 事件类型前缀长度（uint32，小端序）
const eventPrefixLen = 4

var errShortEvent = errors.New("event payload shorter than type prefix")

// EncodeEvent 将 protobuf 消息编码为带事件类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为确定性 protobuf 序列化数据
func EncodeEvent(eventType uint32, msg proto.Message) ([]byte, error) {
	buf := make([]byte, eventPrefixLen, eventPrefixLen+proto.Size(msg))
	binary.LittleEndian.PutUint32(buf, eventType)

	opts := proto.MarshalOptions{Deterministic: true}
	out, err := opts.MarshalAppend(buf, msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: marshal %T: %w", msg, err)
	}
	return out, nil
}

// DecodeEvent 拆分事件类型前缀，并将剩余部分反序列化到 msg
func DecodeEvent(data []byte, msg proto.Message) (uint32, error) {
	if len(data) < eventPrefixLen {
		return 0, errShortEvent
	}
	if err := proto.Unmarshal(data[eventPrefixLen:], msg); err != nil {
		return 0, fmt.Errorf("DecodeEvent: unmarshal %T: %w", msg, err)
	}
	return binary.LittleEndian.Uint32(data[:eventPrefixLen]), nil
}

// PositionEventStruct 将仓位事件转为 structpb.Struct，字段名使用 snake_case
func PositionEventStruct(ev *core.PositionEvent) (*structpb.Struct, error) {
	sigs := make([]interface{}, 0, len(ev.Signatures))
	for _, s := range ev.Signatures {
		sigs = append(sigs, s)
	}
	sizes := make([]interface{}, 0, len(ev.TxSizes))
	for _, n := range ev.TxSizes {
		sizes = append(sizes, n)
	}
	fields := map[string]interface{}{
		"id":         ev.ID,
		"type":       ev.Type.String(),
		"wallet":     base58.Encode(ev.Wallet),
		"kind":       ev.Kind,
		"market":     ev.Market,
		"signatures": sigs,
		"tx_sizes":   sizes,
		"attempts":   ev.Attempts,
		"timestamp":  ev.Timestamp.UnixMilli(),
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("position event %s: %w", ev.ID, err)
	}
	return s, nil
}

// EncodePositionEvent 按 EncodeEvent 格式编码仓位事件
func EncodePositionEvent(ev *core.PositionEvent) ([]byte, error) {
	s, err := PositionEventStruct(ev)
	if err != nil {
		return nil, err
	}
	return EncodeEvent(uint32(ev.Type), s)
}

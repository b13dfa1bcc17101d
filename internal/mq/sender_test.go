package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leverage-executor-sol/internal/logic/core"
	"leverage-executor-sol/internal/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeProducer 模拟投递回执
type fakeProducer struct {
	mu       sync.Mutex
	messages []*kafka.Message

	produceErr error
	deliverErr func(msg *kafka.Message) error
	silent     bool // 不投递回执，用于超时场景
}

func (p *fakeProducer) Produce(msg *kafka.Message, ch chan kafka.Event) error {
	if p.produceErr != nil {
		return p.produceErr
	}
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	if p.silent {
		return nil
	}
	reply := *msg
	if p.deliverErr != nil {
		reply.TopicPartition.Error = p.deliverErr(msg)
	}
	ch <- &reply
	return nil
}

func TestSendKafkaJobs(t *testing.T) {
	p := &fakeProducer{}
	jobs := make([]*KafkaJob, 10)
	for i := range jobs {
		jobs[i] = &KafkaJob{Topic: "position-events", Value: []byte{byte(i)}}
	}

	ok, failed := SendKafkaJobs(context.Background(), p, jobs, time.Second)
	assert.Len(t, failed, 0)
	assert.Equal(t, jobs, ok, "成功列表保持原始顺序")
	assert.Len(t, p.messages, 10)
}

func TestSendKafkaJobsEmpty(t *testing.T) {
	ok, failed := SendKafkaJobs(context.Background(), &fakeProducer{}, nil, time.Second)
	assert.Empty(t, ok)
	assert.Empty(t, failed)
}

func TestSendKafkaJobsFailures(t *testing.T) {
	t.Run("produce", func(t *testing.T) {
		p := &fakeProducer{produceErr: errors.New("queue full")}
		ok, failed := SendKafkaJobs(context.Background(), p, []*KafkaJob{{Topic: "t"}}, time.Second)
		assert.Empty(t, ok)
		require.Len(t, failed, 1)
		assert.ErrorContains(t, failed[0].Err, "queue full")
	})

	t.Run("delivery", func(t *testing.T) {
		p := &fakeProducer{deliverErr: func(msg *kafka.Message) error {
			if msg.Value[0] == 1 {
				return kafka.NewError(kafka.ErrMsgTimedOut, "timed out", false)
			}
			return nil
		}}
		jobs := []*KafkaJob{{Topic: "t", Value: []byte{0}}, {Topic: "t", Value: []byte{1}}}
		ok, failed := SendKafkaJobs(context.Background(), p, jobs, time.Second)
		assert.Equal(t, jobs[:1], ok)
		require.Len(t, failed, 1)
		assert.Same(t, jobs[1], failed[0].Job)
	})

	t.Run("timeout", func(t *testing.T) {
		p := &fakeProducer{silent: true}
		ok, failed := SendKafkaJobs(context.Background(), p, []*KafkaJob{{Topic: "t"}}, 5*time.Millisecond)
		assert.Empty(t, ok)
		require.Len(t, failed, 1)
		assert.ErrorContains(t, failed[0].Err, "delivery timeout")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &fakeProducer{silent: true}
		_, failed := SendKafkaJobs(ctx, p, []*KafkaJob{{Topic: "t"}}, time.Second)
		require.Len(t, failed, 1)
		assert.ErrorIs(t, failed[0].Err, context.Canceled)
	})
}

func TestKafkaPublisher(t *testing.T) {
	p := &fakeProducer{}
	pub := NewKafkaPublisher(p, "position-events", 8, time.Second)

	wallet := make([]byte, 32)
	wallet[27] = 13
	ev := &core.PositionEvent{ID: "op", Type: core.EventPositionSimulated, Wallet: wallet, Kind: "close"}
	require.NoError(t, pub.Publish(context.Background(), ev))

	require.Len(t, p.messages, 1)
	msg := p.messages[0]
	assert.Equal(t, "position-events", *msg.TopicPartition.Topic)
	assert.Equal(t, int32(13&7), msg.TopicPartition.Partition)
	assert.Equal(t, wallet, msg.Key)

	var s structpb.Struct
	typ, err := utils.DecodeEvent(msg.Value, &s)
	require.NoError(t, err)
	assert.Equal(t, uint32(core.EventPositionSimulated), typ)
	assert.Equal(t, "close", s.AsMap()["kind"])
}

func TestKafkaPublisherReportsFailures(t *testing.T) {
	p := &fakeProducer{produceErr: errors.New("broker down")}
	pub := NewKafkaPublisher(p, "position-events", 1, 0)
	err := pub.Publish(context.Background(), &core.PositionEvent{ID: "a"}, &core.PositionEvent{ID: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish 2/2 events")
	assert.Contains(t, err.Error(), "broker down")

	assert.NoError(t, pub.Publish(context.Background()))
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), &core.PositionEvent{ID: "c"}))
}

package lookuptable

import (
	"context"
	"fmt"
	"strconv"

	itypes "leverage-executor-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/redis/go-redis/v9"
)

// RedisMetaStore 将压缩表元数据保存在 Redis hash 中（无过期时间，表的生命周期由链上状态决定）
type RedisMetaStore struct {
	rdb    *redis.Client
	prefix string
}

// Redis 默认 key 前缀
const defaultKeyPrefix = "leverage:lut"

// hash 字段
const (
	fieldTable       = "table"
	fieldCreatedSlot = "created_slot"
	fieldUpdatedAt   = "updated_at"
)

// NewRedisMetaStore 创建 Redis 元数据存储，prefix 为空时使用默认前缀
func NewRedisMetaStore(rdb *redis.Client, prefix string) *RedisMetaStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisMetaStore{rdb: rdb, prefix: prefix}
}

// getKey 构造 Redis key：<prefix>:<wallet base58>
func (r *RedisMetaStore) getKey(owner common.PublicKey) string {
	return fmt.Sprintf("%s:%s", r.prefix, owner.ToBase58())
}

func (r *RedisMetaStore) Load(ctx context.Context, owner common.PublicKey) (*Meta, error) {
	fields, err := r.rdb.HGetAll(ctx, r.getKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall error: %w", err)
	}
	return decodeMeta(owner, fields)
}

func (r *RedisMetaStore) Save(ctx context.Context, meta *Meta) error {
	if err := r.rdb.HSet(ctx, r.getKey(meta.Owner), encodeMeta(meta)).Err(); err != nil {
		return fmt.Errorf("redis hset error: %w", err)
	}
	return nil
}

func (r *RedisMetaStore) Delete(ctx context.Context, owner common.PublicKey) error {
	if err := r.rdb.Del(ctx, r.getKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

func encodeMeta(meta *Meta) map[string]interface{} {
	return map[string]interface{}{
		fieldTable:       meta.Table.ToBase58(),
		fieldCreatedSlot: strconv.FormatUint(meta.CreatedSlot, 10),
		fieldUpdatedAt:   strconv.FormatInt(meta.UpdatedAt, 10),
	}
}

// decodeMeta 解析 hash 字段；空 hash 视为不存在
func decodeMeta(owner common.PublicKey, fields map[string]string) (*Meta, error) {
	if len(fields) == 0 || fields[fieldTable] == "" {
		return nil, nil
	}
	table, err := itypes.TryPubkeyFromBase58(fields[fieldTable])
	if err != nil {
		return nil, fmt.Errorf("invalid table address in metadata: %w", err)
	}
	meta := &Meta{Owner: owner, Table: table}
	if v := fields[fieldCreatedSlot]; v != "" {
		if meta.CreatedSlot, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid created_slot %q: %w", v, err)
		}
	}
	if v := fields[fieldUpdatedAt]; v != "" {
		if meta.UpdatedAt, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid updated_at %q: %w", v, err)
		}
	}
	return meta, nil
}

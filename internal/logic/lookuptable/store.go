package lookuptable

import (
	"context"
	"sync"

	"github.com/blocto/solana-go-sdk/common"
)

// MetaStore 保存钱包与其压缩表的对应关系。Load 在记录不存在时返回 (nil, nil)。
type MetaStore interface {
	Load(ctx context.Context, owner common.PublicKey) (*Meta, error)
	Save(ctx context.Context, meta *Meta) error
	Delete(ctx context.Context, owner common.PublicKey) error
}

// MemoryStore 进程内实现，用于模拟模式与测试
type MemoryStore struct {
	mu    sync.RWMutex
	metas map[common.PublicKey]Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{metas: make(map[common.PublicKey]Meta)}
}

func (s *MemoryStore) Load(_ context.Context, owner common.PublicKey) (*Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metas[owner]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryStore) Save(_ context.Context, meta *Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[meta.Owner] = *meta
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, owner common.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metas, owner)
	return nil
}

package kvstore

import (
	"context"
	"sync"
)

// Memory はインメモリのStore実装。
// プロセス終了で消える。テストおよび外部ストア未設定時のデフォルト。
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory はMemoryの新しいインスタンスを生成する。
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]string),
	}
}

// Get は指定キーの値を返す。
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set は指定キーに値を保存する。
func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete は指定キーを削除する。
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

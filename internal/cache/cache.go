// Package cache is the durable local copy of the canonical quotation list: a
// plain string key-value store plus a codec that survives empty, corrupt, and
// legacy-schema payloads.
package cache

import "sync"

const QuotationsKey = "padoca.quotations"

type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// MemoryKV is the in-process implementation, used by tests and as a fallback
// when no durable store is wired.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: map[string]string{}}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

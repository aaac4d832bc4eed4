package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.KVStorage = (*MemoryKV)(nil)

// MemoryKV keeps values in process memory. Nothing survives a restart.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (kv *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	const op = "MemoryKV.Get"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, port.ErrKeyNotFound)
	}
	return v, nil
}

func (kv *MemoryKV) Set(ctx context.Context, key, value string) error {
	const op = "MemoryKV.Set"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	kv.mu.Lock()
	kv.data[key] = value
	kv.mu.Unlock()
	return nil
}

func (kv *MemoryKV) Remove(ctx context.Context, key string) error {
	const op = "MemoryKV.Remove"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	kv.mu.Lock()
	delete(kv.data, key)
	kv.mu.Unlock()
	return nil
}

func (kv *MemoryKV) Close() {}

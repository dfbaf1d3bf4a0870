package memory

import (
	"context"
	"sync"
)

// Register mirrors the redis tick register: a shared int64 slot with an
// atomic get-and-set.
type Register struct {
	mu   sync.Mutex
	vals map[string]int64
}

func NewRegister() *Register {
	return &Register{vals: make(map[string]int64)}
}

func (r *Register) GetRegister(ctx context.Context, key string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vals[key]
	return v, ok, nil
}

func (r *Register) GetSetRegister(ctx context.Context, key string, value int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.vals[key]
	r.vals[key] = value
	return prev, ok, nil
}

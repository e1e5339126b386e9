// Package limiter bounds in-process concurrency per named resource.
package limiter

import (
	"context"
	"strings"
	"sync"
)

// Keyed hands out at most max concurrent slots for each key.
type Keyed struct {
	max int
	mu  sync.Mutex
	sem map[string]chan struct{}
}

// New returns a Keyed limiter; max below 1 is treated as 1.
func New(max int) *Keyed {
	if max < 1 {
		max = 1
	}
	return &Keyed{max: max, sem: map[string]chan struct{}{}}
}

func (k *Keyed) slots(key string) chan struct{} {
	key = strings.ToLower(key)
	k.mu.Lock()
	defer k.mu.Unlock()
	ch, ok := k.sem[key]
	if !ok {
		ch = make(chan struct{}, k.max)
		k.sem[key] = ch
	}
	return ch
}

// Acquire blocks until a slot for key is free or ctx is done. The returned
// release must be called exactly once.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	ch := k.slots(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InUse reports how many slots for key are currently held.
func (k *Keyed) InUse(key string) int { return len(k.slots(key)) }

// Package keylock serializes work per key (a session or a user) while
// letting different keys proceed in parallel.
package keylock

import (
	"context"
	"fmt"
	"sync"
)

// Map hands out one lock per key. Entries are dropped once nobody holds or
// waits on them, so the map stays proportional to live contention.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func New() *Map {
	return &Map{locks: make(map[string]*entry)}
}

func (m *Map) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Map) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Acquire blocks until key is free or ctx is done. The returned release
// func is safe to call more than once.
func (m *Map) Acquire(ctx context.Context, key string) (func(), error) {
	e := m.ref(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, e)
		return nil, fmt.Errorf("acquire lock for %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.unref(key, e)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

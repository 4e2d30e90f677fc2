// Package lock provides per-key mutual exclusion for entitlement updates.
package lock

import (
	"context"
	"sync"
)

// Locker serializes work per key. Acquire blocks until the key is free or ctx
// is done; calling the returned release more than once is a no-op.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type entry struct {
	ch      chan struct{}
	waiters int
}

// Local is an in-process Locker. Keys are dropped once no goroutine holds or
// waits on them, so the map does not grow with the user count.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]*entry)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.waiters++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.leave(key, e)
		})
	}, nil
}

func (l *Local) leave(key string, e *entry) {
	l.mu.Lock()
	e.waiters--
	if e.waiters == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

// held reports the number of tracked keys.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

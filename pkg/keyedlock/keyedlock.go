// Package keyedlock provides per-key mutual exclusion with strict FIFO
// ordering of waiters. It serializes read-modify-write cycles against the
// shared JSON document stores (app registry, env vars, tenant overrides):
// at most one operation is in flight per key, and competing writers are
// granted the lock in arrival order so none of them starves.
package keyedlock

import (
	"container/list"
	"context"
	"sync"
)

// KeyedLock hands out exclusive, FIFO-ordered locks scoped to a string key.
// Locks for distinct keys are independent. The zero value is not usable;
// call New.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

type lockState struct {
	held    bool
	waiters *list.List // of chan struct{}
}

// New creates an empty KeyedLock.
func New() *KeyedLock {
	return &KeyedLock{
		locks: make(map[string]*lockState),
	}
}

// Acquire blocks until the lock for key is held by the caller or ctx is
// done. On success the caller must release the lock with Release.
func (k *KeyedLock) Acquire(ctx context.Context, key string) error {
	k.mu.Lock()
	st, ok := k.locks[key]
	if !ok {
		st = &lockState{waiters: list.New()}
		k.locks[key] = st
	}
	if !st.held {
		st.held = true
		k.mu.Unlock()
		return nil
	}

	grant := make(chan struct{})
	elem := st.waiters.PushBack(grant)
	k.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		k.mu.Lock()
		select {
		case <-grant:
			// The lock was handed over between ctx firing and us
			// re-acquiring the mutex; pass it on rather than leak it.
			k.handOver(key, st)
		default:
			st.waiters.Remove(elem)
		}
		k.mu.Unlock()
		return ctx.Err()
	}
}

// Release hands the lock for key to the oldest waiter, or marks it free if
// nobody is waiting. Releasing a key that is not held is a no-op.
func (k *KeyedLock) Release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	st, ok := k.locks[key]
	if !ok || !st.held {
		return
	}
	k.handOver(key, st)
}

// handOver must be called with k.mu held.
func (k *KeyedLock) handOver(key string, st *lockState) {
	if front := st.waiters.Front(); front != nil {
		st.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	st.held = false
	delete(k.locks, key)
}

// WithLock runs fn while holding the lock for key.
func (k *KeyedLock) WithLock(ctx context.Context, key string, fn func() error) error {
	if err := k.Acquire(ctx, key); err != nil {
		return err
	}
	defer k.Release(key)
	return fn()
}

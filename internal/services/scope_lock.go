package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"device-tracker/internal/metrics"
	"device-tracker/internal/models"
)

// Allocation scopes. Ids minted inside one scope come from one sequence.
func batchScope(prefix string) string   { return "batch:" + prefix }
func cartonScope(batchID string) string { return "carton:" + batchID }
func serialScope(prefix string) string  { return "sn:" + prefix }
func aliasScope(t models.AliasType) string {
	return "whitelist:" + string(t)
}

// scopeLocks is an in-process keyed mutex, taken before the store's own
// scope lock.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	ch   chan struct{}
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: make(map[string]*scopeLock)}
}

// Lock acquires every scope in sorted order and returns the release func.
// It gives up with an UnavailableError when ctx expires first.
func (l *scopeLocks) Lock(ctx context.Context, scopes ...string) (func(), error) {
	start := time.Now()
	defer func() { metrics.AllocationLockWait.Observe(time.Since(start).Seconds()) }()

	keys := make([]string, 0, len(scopes))
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		if !seen[s] {
			seen[s] = true
			keys = append(keys, s)
		}
	}
	sort.Strings(keys)

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		sl := l.acquireRef(key)
		select {
		case sl.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.releaseRef(key)
			l.unlock(held)
			return nil, &models.UnavailableError{Op: "allocation.lock " + key, Err: ctx.Err()}
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.unlock(held) }) }, nil
}

func (l *scopeLocks) acquireRef(key string) *scopeLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &scopeLock{ch: make(chan struct{}, 1)}
		l.locks[key] = sl
	}
	sl.refs++
	return sl
}

func (l *scopeLocks) releaseRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl := l.locks[key]
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *scopeLocks) unlock(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		sl := l.locks[keys[i]]
		l.mu.Unlock()
		<-sl.ch
		l.releaseRef(keys[i])
	}
}

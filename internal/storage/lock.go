package storage

import "sync"

// TargetLocks serializes mutations per target project. Two concurrent
// installs into the same target must not interleave reference rewrites;
// installs into different targets proceed freely.
type TargetLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTargetLocks creates an empty lock table.
func NewTargetLocks() *TargetLocks {
	return &TargetLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for target, creating it on first use. The
// returned function releases the lock.
func (t *TargetLocks) Acquire(target string) (release func()) {
	t.mu.Lock()
	l, ok := t.locks[target]
	if !ok {
		l = &sync.Mutex{}
		t.locks[target] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

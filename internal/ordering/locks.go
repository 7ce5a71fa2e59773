package ordering

import "sync"

// ScopeLocks hands out one mutex per scope so compound operations (shift
// then place, or a whole migration) can be serialized in-process. The
// storage layer only guarantees per-row atomicity; holding the scope lock
// for the duration of an operation closes the interleaving window between
// the shift and the subsequent write.
type ScopeLocks struct {
	mu    sync.Mutex
	locks map[Scope]*sync.Mutex
}

func NewScopeLocks() *ScopeLocks {
	return &ScopeLocks{locks: make(map[Scope]*sync.Mutex)}
}

func (l *ScopeLocks) Get(scope Scope) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[scope]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	l.locks[scope] = lock
	return lock
}

// LockPair acquires the locks for two scopes in a stable order so that
// cross-scope operations (category deletion migrating projects) cannot
// deadlock against each other. The returned func releases both.
func (l *ScopeLocks) LockPair(a, b Scope) func() {
	if a == b {
		lock := l.Get(a)
		lock.Lock()
		return lock.Unlock
	}
	first, second := a, b
	if second.String() < first.String() {
		first, second = second, first
	}
	firstLock := l.Get(first)
	secondLock := l.Get(second)
	firstLock.Lock()
	secondLock.Lock()
	return func() {
		secondLock.Unlock()
		firstLock.Unlock()
	}
}

package calendar

import "sync"

// latest keeps the result of the most recently started computation.
// begin hands out monotonically increasing generation numbers; commit
// accepts a value only if no newer computation has begun since, so a
// superseded run that finishes late is dropped instead of overwriting.
type latest[T any] struct {
	mu        sync.Mutex
	issued    uint64
	committed uint64
	val       T
}

func (l *latest[T]) begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	return l.issued
}

func (l *latest[T]) commit(gen uint64, v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.issued {
		return false
	}
	l.val = v
	l.committed = gen
	return true
}

// load returns the committed value and its generation; generation 0 means
// nothing has been committed yet.
func (l *latest[T]) load() (T, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.val, l.committed
}

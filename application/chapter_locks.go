package application

import (
	"fmt"
	"sync"
)

// chapterLocks serializes stage execution per chapter. Two batches that
// target the same chapter take turns; chapters within one batch still run
// concurrently. Locks are never evicted; the fleet of touched chapters is
// small relative to memory, same as the status cache.
type chapterLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newChapterLocks() *chapterLocks {
	return &chapterLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// acquire locks one chapter and returns its unlock function.
func (l *chapterLocks) acquire(seriesID string, index int) func() {
	key := fmt.Sprintf("%s|%d", seriesID, index)

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// threadLock is a one-slot semaphore with a waiter count so idle locks can
// be dropped from the table
type threadLock struct {
	slot chan struct{}
	refs int
}

// ThreadLocks grants exclusive ownership of a thread to one turn at a time
// within this process. Two turns on the same thread never interleave.
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

// NewThreadLocks creates an empty lock table
func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{locks: make(map[string]*threadLock)}
}

func (t *ThreadLocks) ref(threadID string) *threadLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[threadID]
	if !ok {
		l = &threadLock{slot: make(chan struct{}, 1)}
		t.locks[threadID] = l
	}
	l.refs++
	return l
}

func (t *ThreadLocks) unref(threadID string, l *threadLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, threadID)
	}
}

// Acquire blocks until threadID is free or ctx is done. The returned
// release func must be called exactly once; extra calls are no-ops.
func (t *ThreadLocks) Acquire(ctx context.Context, threadID string) (release func(), err error) {
	l := t.ref(threadID)
	select {
	case l.slot <- struct{}{}:
		return t.releaser(threadID, l), nil
	case <-ctx.Done():
		t.unref(threadID, l)
		return nil, ctx.Err()
	}
}

// TryAcquire takes the lock without waiting. It fails with
// types.ErrThreadBusy when another turn holds the thread.
func (t *ThreadLocks) TryAcquire(threadID string) (release func(), err error) {
	l := t.ref(threadID)
	select {
	case l.slot <- struct{}{}:
		return t.releaser(threadID, l), nil
	default:
		t.unref(threadID, l)
		return nil, fmt.Errorf("%w: %s", types.ErrThreadBusy, threadID)
	}
}

func (t *ThreadLocks) releaser(threadID string, l *threadLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.slot
			t.unref(threadID, l)
		})
	}
}

// held reports how many threads currently have a lock entry
func (t *ThreadLocks) held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

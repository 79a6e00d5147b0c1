package lock

import (
	"context"
	"sync"
)

// LocalLocker 进程内的按 key 互斥锁，单实例部署或测试时使用
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{} // 容量为 1，放入即持有
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return &localLock{locker: l, key: key, entry: e}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size 当前仍被引用的 key 数量
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type localLock struct {
	locker *LocalLocker
	key    string
	entry  *localEntry
	once   sync.Once
}

func (l *localLock) Unlock(_ context.Context) error {
	err := ErrLockNotOwned
	l.once.Do(func() {
		<-l.entry.ch
		l.locker.release(l.key, l.entry)
		err = nil
	})
	return err
}

package sales

import (
	"context"
	"sync"

	"salescycle/internal/core/apperror"
	"salescycle/pkg/logger"
)

// localLocker is the in-process Locker used when no shared one is configured.
// It only guards callers within the same process.
type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLocalLocker() *localLocker {
	return &localLocker{held: make(map[string]struct{})}
}

func (l *localLocker) Obtain(_ context.Context, key string) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, apperror.NewConflict("operation already in progress").WithDetail("lock_key", key)
	}
	l.held[key] = struct{}{}
	return &localLock{owner: l, key: key}, nil
}

type localLock struct {
	owner *localLocker
	key   string
	once  sync.Once
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.key)
		l.owner.mu.Unlock()
	})
	return nil
}

// claim takes key on the configured locker, or on the in-process one.
// The returned func releases it and never fails the caller.
func (s *Service) claim(ctx context.Context, key string) (func(), error) {
	var locker Locker = s.local
	if s.locker != nil {
		locker = s.locker
	}

	lock, err := locker.Obtain(ctx, key)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "release lock", "key", key, "error", err)
		}
	}, nil
}

package usecase

import (
	"context"
	"sync"
	"time"

	"argus/internal/domain"
)

// CaseLocker serializes mutating operations per case. Operations on distinct
// cases proceed in parallel. Acquisition waits at most maxWait and then fails
// with the retryable domain.ErrLockTimeout, so contention cannot deadlock.
type CaseLocker struct {
	mu      sync.Mutex
	locks   map[string]chan struct{}
	maxWait time.Duration
}

func NewCaseLocker(maxWait time.Duration) *CaseLocker {
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &CaseLocker{
		locks:   make(map[string]chan struct{}),
		maxWait: maxWait,
	}
}

// Acquire takes the exclusive section for caseID. The returned release func
// must be called exactly once.
func (l *CaseLocker) Acquire(ctx context.Context, caseID string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.locks[caseID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[caseID] = sem
	}
	l.mu.Unlock()

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-sem })
		}, nil
	case <-timer.C:
		return nil, domain.ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

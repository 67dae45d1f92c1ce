package service

import (
	"context"
	"sync"
)

// SchoolLocker guards a school's timetable while it is being regenerated.
type SchoolLocker interface {
	TryLock(ctx context.Context, schoolID string) (release func(), ok bool, err error)
}

// memorySchoolLocker serializes generation per school inside one process.
type memorySchoolLocker struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

func newMemorySchoolLocker() *memorySchoolLocker {
	return &memorySchoolLocker{locked: make(map[string]struct{})}
}

func (l *memorySchoolLocker) TryLock(_ context.Context, schoolID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.locked[schoolID]; busy {
		return nil, false, nil
	}
	l.locked[schoolID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.locked, schoolID)
			l.mu.Unlock()
		})
	}, true, nil
}

// chainedSchoolLocker takes every lock in order and releases in reverse.
type chainedSchoolLocker []SchoolLocker

func (c chainedSchoolLocker) TryLock(ctx context.Context, schoolID string) (func(), bool, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, locker := range c {
		release, ok, err := locker.TryLock(ctx, schoolID)
		if err != nil || !ok {
			releaseAll()
			return nil, ok, err
		}
		releases = append(releases, release)
	}
	return releaseAll, true, nil
}

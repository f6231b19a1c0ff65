/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dispatch

import (
	"context"
	"sort"
	"sync"
)

// keyedLocks hands out one mutex per key. Entries are dropped when no
// holder or waiter remains.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*keyedLock)}
}

func (k *keyedLocks) ref(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyedLocks) unref(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// Acquire locks every key in sorted order, so callers locking overlapping
// sets cannot deadlock. It gives up when ctx ends.
func (k *keyedLocks) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]string, 0, len(sorted))
	heldLocks := make([]*keyedLock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-heldLocks[i].sem
			k.unref(held[i], heldLocks[i])
		}
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		l := k.ref(key)
		select {
		case l.sem <- struct{}{}:
			held = append(held, key)
			heldLocks = append(heldLocks, l)
		case <-ctx.Done():
			k.unref(key, l)
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

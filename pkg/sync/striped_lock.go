package sync

import (
	"sort"
	base "sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock maps an unbounded key space onto a fixed set of read-write
// locks, so callers can serialize per key without a lock per key.
type StripedLock struct {
	locks    []base.RWMutex
	hashRing *ring
}

// NewStripedLock returns a StripedLock with the given number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks:    make([]base.RWMutex, stripes),
		hashRing: newRing(int(stripes), hashEntriesPerLock),
	}
}

// Get returns the lock guarding key.
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.stripe(key)]
}

// LockKeys acquires exclusive locks for the exclusive keys and shared locks
// for the shared keys, returning a function that releases all of them.
//
// Stripes are always acquired in ascending order, so concurrent callers with
// overlapping key sets cannot deadlock. A stripe requested both ways is held
// exclusively.
func (l *StripedLock) LockKeys(exclusive, shared [][]byte) (unlock func()) {
	modes := make(map[int]bool)
	for _, key := range shared {
		modes[l.stripe(key)] = false
	}
	for _, key := range exclusive {
		modes[l.stripe(key)] = true
	}

	stripes := make([]int, 0, len(modes))
	for stripe := range modes {
		stripes = append(stripes, stripe)
	}
	sort.Ints(stripes)

	for _, stripe := range stripes {
		if modes[stripe] {
			l.locks[stripe].Lock()
		} else {
			l.locks[stripe].RLock()
		}
	}

	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			stripe := stripes[i]
			if modes[stripe] {
				l.locks[stripe].Unlock()
			} else {
				l.locks[stripe].RUnlock()
			}
		}
	}
}

func (l *StripedLock) stripe(key []byte) int {
	return l.hashRing.shard(key)
}

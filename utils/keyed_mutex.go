// utils/keyed_mutex.go
package utils

import (
	"sort"
	"sync"
)

// KeyedMutex serializes operations per numeric key. Locking several keys at
// once always acquires them in ascending order, so two calls touching the
// same pair of players cannot deadlock against each other.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uint]*keyLock)}
}

func sortedUnique(keys []uint) []uint {
	out := make([]uint, 0, len(keys))
	seen := make(map[uint]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lock acquires the lock for every given key, ascending. Duplicate keys are
// locked once.
func (km *KeyedMutex) Lock(keys ...uint) {
	for _, k := range sortedUnique(keys) {
		km.mu.Lock()
		l, ok := km.locks[k]
		if !ok {
			l = &keyLock{}
			km.locks[k] = l
		}
		l.refs++
		km.mu.Unlock()

		l.mu.Lock()
	}
}

// Unlock releases the locks acquired by a matching Lock call.
func (km *KeyedMutex) Unlock(keys ...uint) {
	unique := sortedUnique(keys)
	for i := len(unique) - 1; i >= 0; i-- {
		k := unique[i]

		km.mu.Lock()
		l, ok := km.locks[k]
		if !ok {
			km.mu.Unlock()
			continue
		}
		l.refs--
		if l.refs == 0 {
			delete(km.locks, k)
		}
		km.mu.Unlock()

		l.mu.Unlock()
	}
}

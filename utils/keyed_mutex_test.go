// utils/keyed_mutex_test.go
package utils

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock(7)
			defer km.Unlock(7)
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
}

func TestLockDistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock(1)
	defer km.Unlock(1)

	done := make(chan struct{})
	go func() {
		km.Lock(2)
		km.Unlock(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a distinct key blocked")
	}
}

func TestLockPairOppositeOrders(t *testing.T) {
	km := NewKeyedMutex()

	// Both goroutines lock the same pair in opposite argument order.
	// Ascending acquisition means they cannot deadlock.
	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			km.Lock(1, 2)
			km.Unlock(1, 2)
		}()
		go func() {
			defer wg.Done()
			km.Lock(2, 1)
			km.Unlock(2, 1)
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock pair deadlocked")
	}
}

func TestDuplicateKeysLockedOnce(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock(3, 3, 3)
	km.Unlock(3, 3, 3)

	// A fresh lock on the same key must succeed immediately.
	done := make(chan struct{})
	go func() {
		km.Lock(3)
		km.Unlock(3)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key stayed locked after unlock")
	}
}

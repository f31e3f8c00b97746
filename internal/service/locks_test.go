package service

import (
	"sync"
	"testing"
	"time"
)

func TestUserLocks_DropsEntryAfterUnlock(t *testing.T) {
	l := newUserLocks()

	for id := 1; id <= 100; id++ {
		unlock := l.lock(id)
		unlock()
	}
	if n := l.size(); n != 0 {
		t.Fatalf("expected no entries after every unlock, got %d", n)
	}
}

func TestUserLocks_KeepsEntryWhileWaited(t *testing.T) {
	l := newUserLocks()
	unlock := l.lock(1)

	acquired := make(chan func())
	go func() { acquired <- l.lock(1) }()

	select {
	case <-acquired:
		t.Fatalf("second lock acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	var second func()
	select {
	case second = <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("waiter never acquired the lock")
	}
	if n := l.size(); n != 1 {
		t.Fatalf("held lock must keep its entry, got %d entries", n)
	}
	second()
	if n := l.size(); n != 0 {
		t.Fatalf("expected entry dropped, got %d", n)
	}
}

func TestUserLocks_Serializes(t *testing.T) {
	l := newUserLocks()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock(3)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
	if n := l.size(); n != 0 {
		t.Fatalf("expected no entries left, got %d", n)
	}
}

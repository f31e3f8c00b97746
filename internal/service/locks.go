package service

import "sync"

// userLocks hands out one mutex per user id. An entry lives only while
// someone holds or waits for it, so the map stays as small as the number
// of users with a request in flight.
type userLocks struct {
	mu sync.Mutex
	m  map[int]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[int]*userLock)}
}

// lock blocks until the user's mutex is held and returns its unlock func.
// The returned func must be called exactly once.
func (l *userLocks) lock(userID int) func() {
	l.mu.Lock()
	ul, ok := l.m[userID]
	if !ok {
		ul = &userLock{}
		l.m[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, userID)
		}
		l.mu.Unlock()
	}
}

// size reports how many users currently have an entry.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

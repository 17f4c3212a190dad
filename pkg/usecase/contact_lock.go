package usecase

import (
	"strings"
	"sync"

	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// contactLocks serializes projections that target the same remote contact.
// A contact is identified by its location and email, so tasks for one user
// with several categories never race between search and create.
type contactLocks struct {
	mu    sync.Mutex
	locks map[string]*contactLock
}

type contactLock struct {
	mu   sync.Mutex
	refs int
}

func newContactLocks() *contactLocks {
	return &contactLocks{locks: make(map[string]*contactLock)}
}

// lock blocks until the contact is free and returns the unlock function
func (x *contactLocks) lock(locationID types.LocationID, email string) func() {
	key := string(locationID) + "\x00" + strings.ToLower(email)

	x.mu.Lock()
	l, ok := x.locks[key]
	if !ok {
		l = &contactLock{}
		x.locks[key] = l
	}
	l.refs++
	x.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		x.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(x.locks, key)
		}
		x.mu.Unlock()
	}
}

// size reports the number of contacts currently held or awaited
func (x *contactLocks) size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.locks)
}

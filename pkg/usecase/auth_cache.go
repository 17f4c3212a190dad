package usecase

import (
	"sync"
	"time"
)

const (
	oauthStateTTL = 10 * time.Minute
)

// stateCache holds issued OAuth state values until the callback consumes
// them or they expire.
type stateCache struct {
	cache sync.Map
	now   func() time.Time
}

func newStateCache(now func() time.Time) *stateCache {
	return &stateCache{now: now}
}

func (c *stateCache) issue(state string) {
	c.cache.Store(state, c.now().Add(oauthStateTTL))
}

// consume reports whether state was issued and still valid. A state can be
// consumed once.
func (c *stateCache) consume(state string) bool {
	val, ok := c.cache.LoadAndDelete(state)
	if !ok {
		return false
	}
	return c.now().Before(val.(time.Time))
}

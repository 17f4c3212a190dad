package usecase

import "time"

// StateCache is exported for testing
type StateCache = stateCache

// NewStateCache is exported for testing
var NewStateCache = newStateCache

func (c *stateCache) Issue(state string) { c.issue(state) }

func (c *stateCache) Consume(state string) bool { return c.consume(state) }

// OAuthStateTTL is exported for testing
const OAuthStateTTL time.Duration = oauthStateTTL

// ContactLocksHeld reports the contacts currently locked by the reactor
func ContactLocksHeld(uc *ReactorUseCase) int { return uc.locks.size() }

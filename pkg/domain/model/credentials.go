package model

import (
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// Credentials holds the OAuth token set of one CRM location (tenant).
// A refresh replaces the whole token set because the provider rotates the
// refresh token on every grant.
type Credentials struct {
	LocationID   types.LocationID
	AccessToken  string `masq:"secret"`
	RefreshToken string `masq:"secret"`
	ExpiresIn    int
	ExpiresAt    time.Time
	Scope        string
	UserType     string
	CompanyID    string
	RemoteUserID string
	LocationName string
	Timezone     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenSet is the part of Credentials that changes on token exchange/refresh
type TokenSet struct {
	AccessToken  string `masq:"secret"`
	RefreshToken string `masq:"secret"`
	ExpiresIn    int
	ExpiresAt    time.Time
	Scope        string
	UserType     string
	CompanyID    string
	RemoteUserID string
}

// ReplaceTokens overwrites every token field at once
func (c *Credentials) ReplaceTokens(ts TokenSet) {
	c.AccessToken = ts.AccessToken
	c.RefreshToken = ts.RefreshToken
	c.ExpiresIn = ts.ExpiresIn
	c.ExpiresAt = ts.ExpiresAt
	c.Scope = ts.Scope
	c.UserType = ts.UserType
	c.CompanyID = ts.CompanyID
	c.RemoteUserID = ts.RemoteUserID
}

// Expired reports whether the access token is past its expiry at now.
// Credentials without a known expiry never expire.
func (c *Credentials) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

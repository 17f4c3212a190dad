package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// User is a CRM user mirrored locally. ID is globally unique across
// locations.
type User struct {
	ID types.UserID

	// LocationRef points at the owning Credentials record. LocationID is the
	// raw tenant id as delivered by the provider; webhook payloads only carry
	// the raw id, so both are stored.
	LocationRef types.LocationID
	LocationID  types.LocationID

	Name      string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Role      string
	Status    types.UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the user takes part in category propagation
func (u *User) IsActive() bool {
	return u.Status.IsActive()
}

// DisplayName returns Name, or the joined first and last name when the
// provider omitted Name.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Copy returns a shallow copy of the user
func (u *User) Copy() *User {
	c := *u
	return &c
}

// UpsertResult describes the outcome of a user upsert
type UpsertResult struct {
	User    *User
	Created bool
	// Previous holds the state before the update; nil when Created
	Previous *User
}

// Activated reports whether the upsert moved an existing user into the
// active status.
func (r *UpsertResult) Activated() bool {
	if r == nil || r.Created || r.Previous == nil {
		return false
	}
	return !r.Previous.IsActive() && r.User.IsActive()
}

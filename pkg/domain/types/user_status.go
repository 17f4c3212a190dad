package types

import "strings"

// UserStatus represents the lifecycle status of a synced user.
// Only active users take part in category propagation and contact projection.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// IsActive reports whether the status is active
func (s UserStatus) IsActive() bool {
	return s.Normalize() == UserStatusActive
}

// Normalize lowercases the status and treats empty as active, which is what
// the provider means when it omits the field.
func (s UserStatus) Normalize() UserStatus {
	v := strings.ToLower(strings.TrimSpace(string(s)))
	if v == "" {
		return UserStatusActive
	}
	return UserStatus(v)
}

// String returns the string representation of the user status
func (s UserStatus) String() string {
	return string(s)
}

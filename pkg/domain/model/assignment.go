package model

import (
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// Assignment links a user to a category. (UserID, CategoryID) is unique.
type Assignment struct {
	UserID     types.UserID
	CategoryID types.CategoryID
	AssignedAt time.Time
}

// AssignmentKey returns the storage key of a (user, category) pair
func AssignmentKey(userID types.UserID, categoryID types.CategoryID) string {
	return string(userID) + "__" + string(categoryID)
}

// Key returns the storage key of the assignment
func (a *Assignment) Key() string {
	return AssignmentKey(a.UserID, a.CategoryID)
}

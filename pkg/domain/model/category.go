package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// Category is a roleplay training category. Default categories are assigned
// to every active user.
type Category struct {
	ID          types.CategoryID
	Name        string
	Description string
	Default     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks required fields
func (c *Category) Validate() error {
	if err := c.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid category")
	}
	if c.Name == "" {
		return goerr.New("category name is required", goerr.V("id", c.ID))
	}
	return nil
}

// BecameDefault reports whether saving c over previous flips the default flag
// from false (or absent) to true.
func (c *Category) BecameDefault(previous *Category) bool {
	if !c.Default {
		return false
	}
	return previous == nil || !previous.Default
}

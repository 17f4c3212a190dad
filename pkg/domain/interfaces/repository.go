package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// ErrNotFound is returned (wrapped) by every repository backend when the
// requested record does not exist.
var ErrNotFound = goerr.New("not found")

// Repository defines the interface for data persistence
type Repository interface {
	Credentials() CredentialsRepository
	User() UserRepository
	Category() CategoryRepository
	Assignment() AssignmentRepository
	WebhookLog() WebhookLogRepository

	Close() error
}

// CredentialsRepository stores the OAuth token set of each location
type CredentialsRepository interface {
	// Save creates or overwrites the credentials of a location
	Save(ctx context.Context, cred *model.Credentials) error

	// Get retrieves credentials by location ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, locationID types.LocationID) (*model.Credentials, error)

	// List retrieves credentials of every location
	List(ctx context.Context) ([]*model.Credentials, error)
}

// UserRepository stores users mirrored from the CRM provider.
// User ID is unique across all locations.
type UserRepository interface {
	// Upsert creates or updates a user keyed by ID in one atomic step.
	// The result tells whether the user was created and carries the
	// previous state otherwise.
	Upsert(ctx context.Context, user *model.User) (*model.UpsertResult, error)

	// Get retrieves a user by ID regardless of location
	Get(ctx context.Context, id types.UserID) (*model.User, error)

	// GetInLocation retrieves a user by ID only if it belongs to locationID
	GetInLocation(ctx context.Context, id types.UserID, locationID types.LocationID) (*model.User, error)

	// List retrieves all users
	List(ctx context.Context) ([]*model.User, error)

	// ListByLocation retrieves users whose raw location ID is locationID
	ListByLocation(ctx context.Context, locationID types.LocationID) ([]*model.User, error)

	// ListActive retrieves users with active status
	ListActive(ctx context.Context) ([]*model.User, error)

	// Delete deletes a user. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id types.UserID) error
}

// CategoryRepository stores roleplay categories
type CategoryRepository interface {
	// Save creates or updates a category and returns the state it replaced,
	// or nil when the category is new.
	Save(ctx context.Context, category *model.Category) (*model.Category, error)

	Get(ctx context.Context, id types.CategoryID) (*model.Category, error)
	List(ctx context.Context) ([]*model.Category, error)

	// ListDefault retrieves categories flagged as default
	ListDefault(ctx context.Context) ([]*model.Category, error)

	// Delete deletes a category. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id types.CategoryID) error
}

// AssignmentRepository stores user-category assignments.
// (UserID, CategoryID) is unique; creation never duplicates a pair.
type AssignmentRepository interface {
	// CreateIfAbsent creates the assignment unless the pair already exists.
	// Returns true only when a new row was written.
	CreateIfAbsent(ctx context.Context, assignment *model.Assignment) (bool, error)

	// ReplaceForUser deletes every assignment of the user and creates one per
	// category ID in a single atomic unit. Returns the resulting rows.
	ReplaceForUser(ctx context.Context, userID types.UserID, categoryIDs []types.CategoryID, at time.Time) ([]*model.Assignment, error)

	// AssignAll creates all absent pairs in a single atomic unit and returns
	// the rows that were newly created.
	AssignAll(ctx context.Context, assignments []*model.Assignment) ([]*model.Assignment, error)

	ListByUser(ctx context.Context, userID types.UserID) ([]*model.Assignment, error)
	ListByCategory(ctx context.Context, categoryID types.CategoryID) ([]*model.Assignment, error)

	// DeleteByUser removes every assignment of the user and returns the count
	DeleteByUser(ctx context.Context, userID types.UserID) (int, error)

	// DeleteByCategory removes every assignment of the category and returns the count
	DeleteByCategory(ctx context.Context, categoryID types.CategoryID) (int, error)
}

// WebhookLogRepository stores inbound webhook bodies verbatim
type WebhookLogRepository interface {
	Put(ctx context.Context, log *model.WebhookLog) error

	// List retrieves the most recent logs, newest first
	List(ctx context.Context, limit int) ([]*model.WebhookLog, error)
}

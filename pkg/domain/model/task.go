package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// TaskID identifies a queued task
type TaskID string

// NewTaskID generates a new task ID
func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

// ContactProfile is the user data projected onto a remote contact
type ContactProfile struct {
	UserID     types.UserID     `json:"user_id"`
	LocationID types.LocationID `json:"location_id"`
	Email      string           `json:"email"`
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name"`
	Name       string           `json:"name"`
	Phone      string           `json:"phone"`
	Status     types.UserStatus `json:"status"`
}

// NewContactProfile captures the projection fields of a user
func NewContactProfile(u *User) ContactProfile {
	return ContactProfile{
		UserID:     u.ID,
		LocationID: u.LocationID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Name:       u.DisplayName(),
		Phone:      u.Phone,
		Status:     u.Status,
	}
}

// AssignmentTask asks the reactor to project one assignment onto the
// remote contact of the user.
type AssignmentTask struct {
	ContactProfile
	CategoryID   types.CategoryID `json:"category_id"`
	CategoryName string           `json:"category_name"`
}

// ContactRefreshTask asks the reactor to push the current profile of the
// user to the remote contact without tagging.
type ContactRefreshTask struct {
	ContactProfile
}

// Task is the unit of background work carried by the task queue
type Task struct {
	ID         TaskID              `json:"id"`
	Kind       types.TaskKind      `json:"kind"`
	Attempt    int                 `json:"attempt"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
	NotBefore  time.Time           `json:"not_before,omitempty"`
	Assignment *AssignmentTask     `json:"assignment,omitempty"`
	Contact    *ContactRefreshTask `json:"contact,omitempty"`

	// Receipt is set by the queue on Dequeue and identifies the lease to Ack.
	// It is never serialized.
	Receipt string `json:"-"`
}

// NewAssignmentTask builds a project_assignment task
func NewAssignmentTask(u *User, c *Category, now time.Time) *Task {
	return &Task{
		ID:         NewTaskID(),
		Kind:       types.TaskProjectAssignment,
		EnqueuedAt: now,
		Assignment: &AssignmentTask{
			ContactProfile: NewContactProfile(u),
			CategoryID:     c.ID,
			CategoryName:   c.Name,
		},
	}
}

// NewContactRefreshTask builds a refresh_contact task
func NewContactRefreshTask(u *User, now time.Time) *Task {
	return &Task{
		ID:         NewTaskID(),
		Kind:       types.TaskRefreshContact,
		EnqueuedAt: now,
		Contact:    &ContactRefreshTask{ContactProfile: NewContactProfile(u)},
	}
}

// Validate checks that the payload matches the kind
func (t *Task) Validate() error {
	switch t.Kind {
	case types.TaskProjectAssignment:
		if t.Assignment == nil {
			return goerr.New("assignment payload is required", goerr.V("task_id", t.ID))
		}
	case types.TaskRefreshContact:
		if t.Contact == nil {
			return goerr.New("contact payload is required", goerr.V("task_id", t.ID))
		}
	default:
		return goerr.New("unknown task kind", goerr.V("task_id", t.ID), goerr.V("kind", t.Kind))
	}
	return nil
}

// Retry returns the next attempt of the task, scheduled at notBefore
func (t *Task) Retry(notBefore time.Time) *Task {
	next := *t
	next.Attempt++
	next.NotBefore = notBefore
	next.Receipt = ""
	return &next
}

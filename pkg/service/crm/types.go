package crm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// ErrRemoteUnavailable is wrapped by every failure talking to the CRM
// provider, whether the request never completed or the provider answered
// with a non-2xx status.
var ErrRemoteUnavailable = goerr.New("CRM provider unavailable")

// Service provides interface to the CRM provider REST API. Every call is
// authorized with the access token of the location it targets.
type Service interface {
	// ListUsers retrieves every user of a location, following pagination
	ListUsers(ctx context.Context, token string, locationID types.LocationID) ([]*RemoteUser, error)

	// GetUser retrieves a single user
	GetUser(ctx context.Context, token string, userID types.UserID) (*RemoteUser, error)

	// GetLocation retrieves location profile data
	GetLocation(ctx context.Context, token string, locationID types.LocationID) (*Location, error)

	// SearchContactByEmail finds the contact with the email within a
	// location. Returns nil without an error when there is none.
	SearchContactByEmail(ctx context.Context, token string, locationID types.LocationID, email string) (*Contact, error)

	CreateContact(ctx context.Context, token string, input *ContactInput) (*Contact, error)
	UpdateContact(ctx context.Context, token string, contactID types.ContactID, input *ContactInput) (*Contact, error)

	// AddTags adds tags to a contact. Tags already present are not an error.
	AddTags(ctx context.Context, token string, contactID types.ContactID, tags []string) error
}

// RemoteUserRoles is the role block of a provider user
type RemoteUserRoles struct {
	Type        string   `json:"type"`
	Role        string   `json:"role"`
	LocationIDs []string `json:"locationIds"`
}

// RemoteUser is a user as returned by the provider
type RemoteUser struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	FirstName string           `json:"firstName"`
	LastName  string           `json:"lastName"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone"`
	Role      string           `json:"role"`
	Status    string           `json:"status"`
	Deleted   bool             `json:"deleted"`
	Roles     *RemoteUserRoles `json:"roles,omitempty"`
}

// ToUser converts the remote record into a local user of locationID
func (u *RemoteUser) ToUser(locationID types.LocationID) *model.User {
	role := u.Role
	if role == "" && u.Roles != nil {
		role = u.Roles.Role
	}

	status := types.UserStatus(u.Status).Normalize()
	if u.Deleted {
		status = types.UserStatusInactive
	}

	user := &model.User{
		ID:          types.UserID(strings.TrimSpace(u.ID)),
		LocationRef: locationID,
		LocationID:  locationID,
		Name:        u.Name,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        role,
		Status:      status,
	}
	user.Name = user.DisplayName()
	return user
}

// Location is the profile of a provider location
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Contact is a provider-side contact record, keyed by email in a location
type Contact struct {
	ID         types.ContactID `json:"id"`
	LocationID string          `json:"locationId"`
	Email      string          `json:"email"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Tags       []string        `json:"tags"`
}

// HasTag reports whether the contact carries tag, ignoring case
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ContactInput is the writable part of a contact
type ContactInput struct {
	LocationID string   `json:"locationId,omitempty"`
	Email      string   `json:"email,omitempty"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Name       string   `json:"name,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// NewContactInput builds the contact payload for a profile
func NewContactInput(p *model.ContactProfile) *ContactInput {
	return &ContactInput{
		LocationID: string(p.LocationID),
		Email:      p.Email,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Name:       p.Name,
		Phone:      p.Phone,
	}
}

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

// WebhookLogID identifies a persisted inbound webhook
type WebhookLogID string

// NewWebhookLogID generates a new webhook log ID
func NewWebhookLogID() WebhookLogID {
	return WebhookLogID(uuid.New().String())
}

// WebhookLog is the verbatim record of an inbound webhook body. It is
// written before the event is processed, whatever the outcome.
type WebhookLog struct {
	ID         WebhookLogID
	ReceivedAt time.Time
	Type       string
	Payload    []byte
}

// WebhookEvent is the canonical shape of an inbound user event
type WebhookEvent struct {
	// Label is the provider label as received, Type the normalized one
	Label string
	Type  string
	Kind  types.EventKind

	LocationID types.LocationID
	UserID     types.UserID
	FirstName  string
	LastName   string
	Name       string
	Email      string
	Phone      string
	Role       string
	Status     types.UserStatus
}

// ToUser builds the local user record described by the event
func (e *WebhookEvent) ToUser() *User {
	u := &User{
		ID:          e.UserID,
		LocationRef: e.LocationID,
		LocationID:  e.LocationID,
		Name:        e.Name,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Email:       e.Email,
		Phone:       e.Phone,
		Role:        e.Role,
		Status:      e.Status.Normalize(),
	}
	u.Name = u.DisplayName()
	return u
}

type webhookRoles struct {
	Role        string   `json:"role"`
	LocationIDs []string `json:"locationIds"`
}

type webhookUser struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Role       string        `json:"role"`
	Status     string        `json:"status"`
	LocationID string        `json:"locationId"`
	Roles      *webhookRoles `json:"roles"`
}

type webhookEnvelope struct {
	Type       string       `json:"type"`
	LocationID string       `json:"locationId"`
	User       *webhookUser `json:"user"`
}

// ParseWebhookEvent decodes an inbound webhook body. Both the flat layout
// (user fields at the top level) and the nested layout (fields under
// "user") are accepted. A top-level locationId takes precedence over the
// one found inside the user object.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, goerr.Wrap(err, "failed to decode webhook body")
	}

	src := env.User
	if src == nil {
		var flat webhookUser
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, goerr.Wrap(err, "failed to decode webhook user fields")
		}
		src = &flat
	}

	userID := src.ID
	if userID == "" {
		userID = src.UserID
	}

	locationID := env.LocationID
	if locationID == "" {
		locationID = src.LocationID
	}
	if locationID == "" && src.Roles != nil && len(src.Roles.LocationIDs) > 0 {
		locationID = src.Roles.LocationIDs[0]
	}

	role := src.Role
	if role == "" && src.Roles != nil {
		role = src.Roles.Role
	}

	normalized := types.NormalizeEventLabel(env.Type)
	return &WebhookEvent{
		Label:      env.Type,
		Type:       normalized,
		Kind:       types.ParseEventKind(normalized),
		LocationID: types.LocationID(locationID),
		UserID:     types.UserID(userID),
		FirstName:  src.FirstName,
		LastName:   src.LastName,
		Name:       src.Name,
		Email:      src.Email,
		Phone:      src.Phone,
		Role:       role,
		Status:     types.UserStatus(src.Status),
	}, nil
}

// PeekWebhookType extracts only the type label of a webhook body. Bodies
// that are not JSON objects yield an empty label.
func PeekWebhookType(raw []byte) string {
	var v struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v.Type
}

package postgres

import (
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"gorm.io/gorm/schema"
)

type credentialsRecord struct {
	LocationID   string `gorm:"primaryKey"`
	AccessToken  string
	RefreshToken string
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

func (credentialsRecord) TableName(namer schema.Namer) string {
	return namer.TableName("Credential")
}

type userRecord struct {
	ID          string `gorm:"primaryKey"`
	LocationRef string `gorm:"index"`
	LocationID  string `gorm:"index"`
	Name        string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Role        string
	Status      string `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (userRecord) TableName(namer schema.Namer) string {
	return namer.TableName("User")
}

type categoryRecord struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string
	IsDefault   bool `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (categoryRecord) TableName(namer schema.Namer) string {
	return namer.TableName("Category")
}

// assignmentRecord uses the (user, category) pair as primary key, which is
// the uniqueness guard for concurrent create-if-absent.
type assignmentRecord struct {
	UserID     string `gorm:"primaryKey"`
	CategoryID string `gorm:"primaryKey;index"`
	AssignedAt time.Time
}

func (assignmentRecord) TableName(namer schema.Namer) string {
	return namer.TableName("Assignment")
}

type webhookLogRecord struct {
	ID         string    `gorm:"primaryKey"`
	ReceivedAt time.Time `gorm:"index"`
	Type       string
	Payload    []byte
}

func (webhookLogRecord) TableName(namer schema.Namer) string {
	return namer.TableName("WebhookLog")
}

func credentialsToRecord(c *model.Credentials) *credentialsRecord {
	return &credentialsRecord{
		LocationID:   string(c.LocationID),
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresIn:    c.ExpiresIn,
		ExpiresAt:    c.ExpiresAt,
		Scope:        c.Scope,
		UserType:     c.UserType,
		CompanyID:    c.CompanyID,
		RemoteUserID: c.RemoteUserID,
		LocationName: c.LocationName,
		Timezone:     c.Timezone,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r *credentialsRecord) toModel() *model.Credentials {
	return &model.Credentials{
		LocationID:   types.LocationID(r.LocationID),
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		ExpiresAt:    r.ExpiresAt,
		Scope:        r.Scope,
		UserType:     r.UserType,
		CompanyID:    r.CompanyID,
		RemoteUserID: r.RemoteUserID,
		LocationName: r.LocationName,
		Timezone:     r.Timezone,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func userToRecord(u *model.User) *userRecord {
	return &userRecord{
		ID:          string(u.ID),
		LocationRef: string(u.LocationRef),
		LocationID:  string(u.LocationID),
		Name:        u.Name,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		Status:      string(u.Status.Normalize()),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (r *userRecord) toModel() *model.User {
	return &model.User{
		ID:          types.UserID(r.ID),
		LocationRef: types.LocationID(r.LocationRef),
		LocationID:  types.LocationID(r.LocationID),
		Name:        r.Name,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		Role:        r.Role,
		Status:      types.UserStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func categoryToRecord(c *model.Category) *categoryRecord {
	return &categoryRecord{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		IsDefault:   c.Default,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r *categoryRecord) toModel() *model.Category {
	return &model.Category{
		ID:          types.CategoryID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Default:     r.IsDefault,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func assignmentToRecord(a *model.Assignment) *assignmentRecord {
	assignedAt := a.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}
	return &assignmentRecord{
		UserID:     string(a.UserID),
		CategoryID: string(a.CategoryID),
		AssignedAt: assignedAt,
	}
}

func (r *assignmentRecord) toModel() *model.Assignment {
	return &model.Assignment{
		UserID:     types.UserID(r.UserID),
		CategoryID: types.CategoryID(r.CategoryID),
		AssignedAt: r.AssignedAt,
	}
}

package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// ErrUnknownTenant is returned when a location has no stored credentials
	ErrUnknownTenant = errors.New("unknown tenant")

	// Not found errors
	ErrUserNotFound     = errors.New("user not found")
	ErrCategoryNotFound = errors.New("category not found")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Configuration errors
	ErrCRMNotConfigured   = errors.New("CRM client is not configured")
	ErrOAuthNotConfigured = errors.New("OAuth is not configured")
)

// Context keys for error values
const (
	LocationIDKey = "location_id"
	UserIDKey     = "user_id"
	CategoryIDKey = "category_id"
)

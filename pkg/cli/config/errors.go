package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound     = goerr.New("configuration file not found")
	ErrInvalidConfig      = goerr.New("invalid configuration")
	ErrDuplicateCategory  = goerr.New("duplicate category ID")
	ErrInvalidCategoryID  = goerr.New("invalid category ID format")
	ErrMissingName        = goerr.New("name is required")
	ErrUnsupportedBackend = goerr.New("unsupported backend")
)

// Context keys for error values
const (
	ConfigPathKey    = "config_path"
	CategoryIDKey    = "category_id"
	CategoryIndexKey = "category_index"
	BackendKey       = "backend"
)

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/usecase"
)

// CategoryFile is the TOML seed file of roleplay categories
//
//	[[category]]
//	id = "onboarding"
//	name = "Onboarding"
//	default = true
type CategoryFile struct {
	Categories []Category `toml:"category"`
}

// Category is one [[category]] entry of the seed file
type Category struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Default     bool   `toml:"default"`
}

// Validate checks if the Category is valid
func (c *Category) Validate() error {
	if err := types.CategoryID(c.ID).Validate(); err != nil {
		return goerr.Wrap(ErrInvalidCategoryID, err.Error(), goerr.V(CategoryIDKey, c.ID))
	}
	if c.Name == "" {
		return goerr.Wrap(ErrMissingName, "category name is required", goerr.V(CategoryIDKey, c.ID))
	}
	return nil
}

// Validate checks every entry and rejects duplicate IDs
func (f *CategoryFile) Validate() error {
	seen := make(map[string]bool, len(f.Categories))
	for i := range f.Categories {
		cat := &f.Categories[i]
		if err := cat.Validate(); err != nil {
			return goerr.Wrap(err, "invalid category", goerr.V(CategoryIndexKey, i))
		}
		if seen[cat.ID] {
			return goerr.Wrap(ErrDuplicateCategory, "duplicate category ID", goerr.V(CategoryIDKey, cat.ID))
		}
		seen[cat.ID] = true
	}
	return nil
}

// Inputs converts the file into category use case inputs
func (f *CategoryFile) Inputs() []usecase.CategoryInput {
	inputs := make([]usecase.CategoryInput, len(f.Categories))
	for i, cat := range f.Categories {
		inputs[i] = usecase.CategoryInput{
			ID:          types.CategoryID(cat.ID),
			Name:        cat.Name,
			Description: cat.Description,
			Default:     cat.Default,
		}
	}
	return inputs
}

// LoadCategoryFile reads and validates a category seed file
func LoadCategoryFile(path string) (*CategoryFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "category file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read category file", goerr.V(ConfigPathKey, path))
	}

	var file CategoryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "category file validation failed", goerr.V(ConfigPathKey, path))
	}

	return &file, nil
}

package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/cli/config"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	sentinels := []error{
		config.ErrConfigNotFound,
		config.ErrInvalidConfig,
		config.ErrDuplicateCategory,
		config.ErrInvalidCategoryID,
		config.ErrMissingName,
		config.ErrUnsupportedBackend,
	}

	for i, sentinel := range sentinels {
		wrapped := goerr.Wrap(sentinel, "wrapped", goerr.V(config.ConfigPathKey, "categories.toml"))
		gt.True(t, errors.Is(wrapped, sentinel))

		for j, other := range sentinels {
			if i != j {
				gt.False(t, errors.Is(wrapped, other))
			}
		}
	}
}

package ports

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestStoreError covers message formatting and unwrapping of StoreError.
func TestStoreError(t *testing.T) {
	t.Run("formats operation and path", func(t *testing.T) {
		err := NewStoreError("/data/store.json", "save", fs.ErrPermission)

		assert.Equal(t, "store error: operation=save, path=/data/store.json, err=permission denied", err.Error())
		assert.Equal(t, "save", err.Operation)
	})

	t.Run("unwraps to underlying error", func(t *testing.T) {
		err := NewStoreError("/data/store.json", "load", ErrCorruptSnapshot)

		assert.True(t, errors.Is(err, ErrCorruptSnapshot))
		var se *StoreError
		assert.True(t, errors.As(error(err), &se))
	})
}

// TestConfigError covers message formatting and unwrapping of ConfigError.
func TestConfigError(t *testing.T) {
	err := NewConfigError("snapshot_path", ErrConfigNotFound)

	assert.Equal(t, "config error: key=snapshot_path, err=configuration not found", err.Error())
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

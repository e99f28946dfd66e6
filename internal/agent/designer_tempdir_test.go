package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithTempDir_CleansUpOnSuccess(t *testing.T) {
	var capturedDir string
	err := withTempDir("designer-*", func(dir string) error {
		capturedDir = dir
		_, statErr := os.Stat(dir)
		require.NoError(t, statErr)
		return nil
	})
	require.NoError(t, err)
	_, statErr := os.Stat(capturedDir)
	require.True(t, os.IsNotExist(statErr))
}

func TestWithTempDir_CleansUpOnError(t *testing.T) {
	var capturedDir string
	sentinel := errors.New("boom")
	err := withTempDir("designer-*", func(dir string) error {
		capturedDir = dir
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	_, statErr := os.Stat(capturedDir)
	require.True(t, os.IsNotExist(statErr))
}

func TestWithTempDir_CleansUpOnPanic(t *testing.T) {
	var capturedDir string
	require.Panics(t, func() {
		_ = withTempDir("designer-*", func(dir string) error {
			capturedDir = dir
			panic("boom")
		})
	})
	_, statErr := os.Stat(capturedDir)
	require.True(t, os.IsNotExist(statErr))
}

func TestWithTempDir_WritableInsideFn(t *testing.T) {
	err := withTempDir("designer-*", func(dir string) error {
		return os.WriteFile(filepath.Join(dir, "x.tex"), []byte("content"), 0o600)
	})
	require.NoError(t, err)
}

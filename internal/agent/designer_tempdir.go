package agent

import (
	"os"
)

// withTempDir creates a scoped temporary directory, runs fn with its
// path, and guarantees removal — including when fn panics, in which
// case the panic is re-raised after cleanup so callers still observe it.
func withTempDir(pattern string, fn func(dir string) error) (err error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return err
	}
	defer func() {
		removeErr := os.RemoveAll(dir)
		if r := recover(); r != nil {
			panic(r)
		}
		if err == nil {
			err = removeErr
		}
	}()
	return fn(dir)
}

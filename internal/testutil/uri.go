package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

// MemoryURI returns a shared-cache in-memory database URI for name.
func MemoryURI(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// UniqueMemoryURI returns a shared-cache in-memory URI no other test uses.
func UniqueMemoryURI(t testing.TB) string {
	t.Helper()
	return MemoryURI("test-" + uuid.NewString())
}

// FileURI returns a file URI for path opened with mode (ro, rw, rwc).
// Relative paths are made absolute.
func FileURI(t testing.TB, path, mode string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("resolve %s: %v", path, err)
	}
	return fmt.Sprintf("file:%s?mode=%s", filepath.ToSlash(abs), mode)
}

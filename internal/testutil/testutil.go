// Package testutil provides small test helpers shared across dscbuild's
// packages.
//
// Grounded on internal/distritest/distritest.go's RemoveAll. distritest's
// Export (which spawned a "distri export" subprocess and read back its
// listen address over a pipe) has no analogue here: this module's external
// collaborators are plain interfaces (RecipeReader, PackageIndex), not
// subprocesses, so nothing plays that role and it is not carried forward.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// RemoveAll wraps os.RemoveAll and fails the test on failure.
func RemoveAll(t testing.TB, path string) {
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

// WriteTree creates a temporary directory containing one file per entry of
// files, keyed by path relative to the directory root, and returns the
// root. The tree is removed automatically when the test completes.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dscbuild-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { RemoveAll(t, dir) })
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

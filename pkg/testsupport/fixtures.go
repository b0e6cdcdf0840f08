package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-worldstore/seed"
)

// LoadFixture reads a fixture file. The path is relative to the test
// package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// LoadSeed decodes a YAML seed fixture.
func LoadSeed(t *testing.T, path string) seed.Defaults {
	t.Helper()

	d, err := seed.LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load seed fixture from %s: %v", path, err)
	}
	return d
}

// WriteAsset writes content to name under dir, creating directories as
// needed, and returns the full path.
func WriteAsset(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write asset %s: %v", path, err)
	}
	return path
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

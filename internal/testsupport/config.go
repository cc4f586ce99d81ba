package testsupport

import (
	"path/filepath"
	"testing"

	"tunepress/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Root = base
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Covers.LookupEnabled = false
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize test config: %v", err)
	}
	return &cfg
}

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeCLIConfig lays out a project directory with an empty source
// library and returns the config file path. Tools point at sh so
// binary lookups succeed on any test host.
func writeCLIConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "res"), 0o755); err != nil {
		t.Fatalf("create source dir: %v", err)
	}

	content := fmt.Sprintf(`log_level = "error"

[paths]
root = %q
log_dir = %q

[tools]
ffmpeg = "sh"
ffprobe = "sh"

[covers]
lookup_enabled = false
`, base, filepath.Join(base, "logs"))

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tunepress/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing file reported as existing")
	}
	if cfg.Encode.GPUCodec != "h264_nvenc" || cfg.Encode.CPUCodec != "libx264" {
		t.Fatalf("unexpected codec defaults: %+v", cfg.Encode)
	}
	if cfg.Paths.SourceDir != "res" || cfg.Paths.WorkDir != "dist" {
		t.Fatalf("unexpected path defaults: %+v", cfg.Paths)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`log_level = "debug"`,
		`[paths]`,
		`root = "` + dir + `"`,
		`source_dir = "in"`,
		`work_dir = "out"`,
		`[encode]`,
		`timeout_seconds = 60`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config, got exists=%v path=%q", exists, resolved)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.Encode.TimeoutSeconds != 60 {
		t.Fatalf("timeout = %d", cfg.Encode.TimeoutSeconds)
	}
	if cfg.SourceRoot() != filepath.Join(dir, "in") {
		t.Fatalf("SourceRoot = %q", cfg.SourceRoot())
	}
	if cfg.Encode.GPUTimeoutThreshold != 3 {
		t.Fatalf("threshold default = %d", cfg.Encode.GPUTimeoutThreshold)
	}
}

func TestValidateRejectsSharedSourceAndWork(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = cfg.Paths.SourceDir
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for work_dir == source_dir")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config did not load: exists=%v err=%v", exists, err)
	}
}

func TestEnvOverridesConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	t.Setenv(config.EnvConfigPath, path)
	_, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("env path not honored: exists=%v resolved=%q", exists, resolved)
	}
}

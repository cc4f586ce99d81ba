package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath overrides the configuration file location when set.
const EnvConfigPath = "TUNEPRESS_CONFIG"

// Paths contains directory configuration.
type Paths struct {
	// Root is the project directory containing SourceDir and WorkDir.
	Root string `toml:"root"`
	// SourceDir holds the original, possibly encrypted library (relative to Root).
	SourceDir string `toml:"source_dir"`
	// WorkDir receives the normalized library and renders (relative to Root).
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Tools contains external binary configuration.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	// Decoder is the encrypted-container decoder command. Empty means
	// "search tools/ under Root, then PATH, for um".
	Decoder string `toml:"decoder"`
}

// Encode contains video generation settings.
type Encode struct {
	GPUCodec            string `toml:"gpu_codec"`
	CPUCodec            string `toml:"cpu_codec"`
	AudioBitrate        string `toml:"audio_bitrate"`
	MaxEdge             int    `toml:"max_edge"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	GPUTimeoutThreshold int    `toml:"gpu_timeout_threshold"`
}

// Covers contains cover lookup settings.
type Covers struct {
	LookupEnabled  bool   `toml:"lookup_enabled"`
	SearchBaseURL  string `toml:"search_base_url"`
	ArchiveBaseURL string `toml:"archive_base_url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Paths     Paths  `toml:"paths"`
	Tools     Tools  `toml:"tools"`
	Encode    Encode `toml:"encode"`
	Covers    Covers `toml:"covers"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// DefaultConfigPath returns the conventional configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tunepress/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("tunepress.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// SourceRoot returns the absolute source library directory.
func (c *Config) SourceRoot() string {
	return filepath.Join(c.Paths.Root, c.Paths.SourceDir)
}

// WorkRoot returns the absolute working library directory.
func (c *Config) WorkRoot() string {
	return filepath.Join(c.Paths.Root, c.Paths.WorkDir)
}

// FFmpegBinary returns the configured ffmpeg command.
func (c *Config) FFmpegBinary() string { return c.Tools.FFmpeg }

// FFprobeBinary returns the configured ffprobe command.
func (c *Config) FFprobeBinary() string { return c.Tools.FFprobe }

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

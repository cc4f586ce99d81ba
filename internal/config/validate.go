package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate checks semantic constraints after normalization.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.Root) == "" {
		return fmt.Errorf("paths.root is required")
	}
	if filepath.IsAbs(c.Paths.SourceDir) || filepath.IsAbs(c.Paths.WorkDir) {
		return fmt.Errorf("paths.source_dir and paths.work_dir must be relative to paths.root")
	}
	if filepath.Clean(c.Paths.SourceDir) == filepath.Clean(c.Paths.WorkDir) {
		return fmt.Errorf("paths.work_dir must differ from paths.source_dir")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	if c.Encode.MaxEdge < 16 {
		return fmt.Errorf("encode.max_edge too small: %d", c.Encode.MaxEdge)
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
)

// Normalize expands paths and fills empty fields with defaults. It runs before
// Validate so validation always sees absolute, populated values.
func (c *Config) Normalize() error {
	root, err := expandPath(valueOr(c.Paths.Root, "."))
	if err != nil {
		return fmt.Errorf("normalize root: %w", err)
	}
	c.Paths.Root = root
	c.Paths.SourceDir = valueOr(c.Paths.SourceDir, defaultSourceDir)
	c.Paths.WorkDir = valueOr(c.Paths.WorkDir, defaultWorkDir)

	if strings.TrimSpace(c.Paths.LogDir) != "" {
		logDir, err := expandPath(c.Paths.LogDir)
		if err != nil {
			return fmt.Errorf("normalize log dir: %w", err)
		}
		c.Paths.LogDir = logDir
	}

	c.Tools.FFmpeg = valueOr(c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = valueOr(c.Tools.FFprobe, defaultFFprobe)
	c.Tools.Decoder = strings.TrimSpace(c.Tools.Decoder)

	c.Encode.GPUCodec = valueOr(c.Encode.GPUCodec, defaultGPUCodec)
	c.Encode.CPUCodec = valueOr(c.Encode.CPUCodec, defaultCPUCodec)
	c.Encode.AudioBitrate = valueOr(c.Encode.AudioBitrate, defaultAudioBitrate)
	if c.Encode.MaxEdge <= 0 {
		c.Encode.MaxEdge = defaultMaxEdge
	}
	if c.Encode.TimeoutSeconds <= 0 {
		c.Encode.TimeoutSeconds = defaultEncodeTimeout
	}
	if c.Encode.GPUTimeoutThreshold <= 0 {
		c.Encode.GPUTimeoutThreshold = defaultGPUTimeoutThreshold
	}

	c.Covers.SearchBaseURL = valueOr(c.Covers.SearchBaseURL, defaultCoverSearchBaseURL)
	c.Covers.ArchiveBaseURL = valueOr(c.Covers.ArchiveBaseURL, defaultCoverArchiveBaseURL)
	c.Covers.UserAgent = valueOr(c.Covers.UserAgent, defaultCoverUserAgent)
	if c.Covers.TimeoutSeconds <= 0 {
		c.Covers.TimeoutSeconds = defaultCoverTimeout
	}

	c.LogLevel = valueOr(c.LogLevel, defaultLogLevel)
	c.LogFormat = valueOr(c.LogFormat, defaultLogFormat)
	return nil
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

package config

const (
	defaultSourceDir           = "res"
	defaultWorkDir             = "dist"
	defaultLogDir              = "~/.local/share/tunepress/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultFFmpeg              = "ffmpeg"
	defaultFFprobe             = "ffprobe"
	defaultGPUCodec            = "h264_nvenc"
	defaultCPUCodec            = "libx264"
	defaultAudioBitrate        = "192k"
	defaultMaxEdge             = 720
	defaultEncodeTimeout       = 300
	defaultGPUTimeoutThreshold = 3
	defaultCoverSearchBaseURL  = "https://musicbrainz.org/ws/2/release/"
	defaultCoverArchiveBaseURL = "https://coverartarchive.org/release/"
	defaultCoverUserAgent      = "tunepress/1.0 (library normalizer)"
	defaultCoverTimeout        = 15
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root:      ".",
			SourceDir: defaultSourceDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
		},
		Encode: Encode{
			GPUCodec:            defaultGPUCodec,
			CPUCodec:            defaultCPUCodec,
			AudioBitrate:        defaultAudioBitrate,
			MaxEdge:             defaultMaxEdge,
			TimeoutSeconds:      defaultEncodeTimeout,
			GPUTimeoutThreshold: defaultGPUTimeoutThreshold,
		},
		Covers: Covers{
			LookupEnabled:  true,
			SearchBaseURL:  defaultCoverSearchBaseURL,
			ArchiveBaseURL: defaultCoverArchiveBaseURL,
			UserAgent:      defaultCoverUserAgent,
			TimeoutSeconds: defaultCoverTimeout,
		},
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

package command

import (
	"path/filepath"
	"runtime"
	"strings"
)

// SubprocessPath normalizes a filesystem path for use as an external tool
// argument. On Windows the extended-length prefix keeps ffmpeg and ffprobe
// working with long or non-ASCII paths; elsewhere the path passes through
// unchanged apart from being made absolute when possible.
func SubprocessPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if runtime.GOOS != "windows" {
		return abs
	}
	if strings.HasPrefix(abs, `\\?\`) {
		return abs
	}
	return `\\?\` + abs
}

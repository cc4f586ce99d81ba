// Package ffprobe wraps the ffprobe binary for structural validation of
// rendered videos and media containers.
package ffprobe

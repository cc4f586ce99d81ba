// Package decoder drives the external container decoder. The decoder's
// internals are out of scope; this package builds its invocation, bounds
// it with a timeout, finds the file it produced, and salvages the
// container's embedded cover into the output tag.
package decoder

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/ncm"
	"tunepress/internal/services"
	"tunepress/internal/services/command"
	"tunepress/internal/tags"
)

// decodeTimeout bounds one container decode.
const decodeTimeout = 10 * time.Minute

// benignMarkers are stdout/stderr fragments that mean the decoder did
// its job even though it exited non-zero. Some builds return the count
// of skipped files as the exit code.
var benignMarkers = []string{
	"success",
	"saved",
	"already exists",
}

// Decoder invokes the external container decoder.
type Decoder struct {
	logger  *slog.Logger
	command string
	runner  command.Runner
}

// New builds a Decoder around the configured decoder command.
func New(logger *slog.Logger, decoderCommand string, runner command.Runner) *Decoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Decoder{logger: logger, command: decoderCommand, runner: runner}
}

// Decode converts one container into outDir and returns the produced
// audio file's path. A non-zero exit is forgiven when the output shows
// a benign marker or the expected file appeared anyway.
func (d *Decoder) Decode(ctx context.Context, containerPath, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrIO, "decode", "prepare", "create output dir", err)
	}

	binary, args := d.invocation(containerPath, outDir)
	log := d.logger.With(logging.String(logging.FieldPath, containerPath))
	log.Debug("running decoder", logging.String("binary", binary))

	result, err := d.runner.Run(ctx, binary, args, decodeTimeout)
	if result.TimedOut {
		return "", services.Wrap(services.ErrTimeout, "decode", "run", "decoder exceeded deadline", err)
	}
	produced, found := d.findOutput(containerPath, outDir)
	if err != nil {
		output := result.CombinedOutput()
		switch {
		case benignFailure(output):
			log.Debug("decoder reported benign failure", logging.Int("exit_code", result.ExitCode))
		case found:
			log.Warn("decoder exited non-zero but produced output",
				logging.Int("exit_code", result.ExitCode))
		default:
			return "", services.Wrap(services.ErrExternalTool, "decode", "run", firstLine(output), err)
		}
	}
	if !found {
		return "", services.Wrap(services.ErrExternalTool, "decode", "run",
			"decoder produced no output for "+filepath.Base(containerPath), nil)
	}
	d.salvageCover(containerPath, produced, log)
	return produced, nil
}

// invocation builds the argv for one decode. Script-style decoder
// commands need a shell wrapper on Windows.
func (d *Decoder) invocation(containerPath, outDir string) (string, []string) {
	toolArgs := []string{
		"-o", command.SubprocessPath(outDir),
		"--overwrite",
		command.SubprocessPath(containerPath),
	}
	if runtime.GOOS == "windows" {
		switch strings.ToLower(filepath.Ext(d.command)) {
		case ".cmd", ".bat":
			return "cmd", append([]string{"/C", d.command}, toolArgs...)
		case ".ps1":
			return "powershell", append([]string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File", d.command}, toolArgs...)
		}
	}
	return d.command, toolArgs
}

// findOutput locates the audio file the decoder produced: same stem as
// the container, any recognized audio extension.
func (d *Decoder) findOutput(containerPath, outDir string) (string, bool) {
	base := filepath.Base(containerPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() || !library.IsAudio(entry.Name()) {
			continue
		}
		name := entry.Name()
		if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), stem) {
			return filepath.Join(outDir, name), true
		}
	}
	return "", false
}

// salvageCover copies the container's embedded image into the produced
// MP3 when the decoder dropped it. Best effort; failures only log.
func (d *Decoder) salvageCover(containerPath, producedPath string, log *slog.Logger) {
	if !strings.EqualFold(filepath.Ext(producedPath), ".mp3") {
		return
	}
	if tags.HasEmbeddedCover(producedPath) {
		return
	}
	data, err := ncm.ExtractCover(containerPath)
	if err != nil {
		if !errors.Is(err, services.ErrDataAbsent) {
			log.Debug("no salvageable cover", logging.Error(err))
		}
		return
	}
	mime := imageMIME(data)
	if mime == "" {
		return
	}
	if err := tags.WriteCover(producedPath, data, mime); err != nil {
		log.Warn("cover salvage failed", logging.Error(err))
		return
	}
	log.Debug("salvaged container cover into tag")
}

func benignFailure(output string) bool {
	lowered := strings.ToLower(output)
	for _, marker := range benignMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func imageMIME(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 8 && string(data[1:4]) == "PNG":
		return "image/png"
	}
	return ""
}

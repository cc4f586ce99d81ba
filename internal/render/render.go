// Package render turns a cover image plus a track's audio into an MP4,
// preferring the hardware encoder and falling back to software when it
// errors or times out. Outputs are validated with ffprobe; anything
// that fails validation is deleted rather than left half-written.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tunepress/internal/config"
	"tunepress/internal/logging"
	"tunepress/internal/lyrics"
	"tunepress/internal/media/ffprobe"
	"tunepress/internal/services"
	"tunepress/internal/services/command"
)

// Outcome classifies the terminal state of one render job.
type Outcome string

const (
	OutcomeRendered        Outcome = "Rendered"
	OutcomeAlreadyRendered Outcome = "AlreadyRendered"
	OutcomeSkippedNoCover  Outcome = "SkippedNoCover"
	OutcomeFailed          Outcome = "Failed"
)

// Job pairs one track with its directory's resolved cover.
type Job struct {
	AudioPath string
	// CoverPath is empty when the directory's cover is unresolved; the
	// job is then skipped, never failed.
	CoverPath string
	// LyricsPath optionally names an .lrc sidecar to burn in.
	LyricsPath string
	OutputPath string
}

// Options control side effects for one render pass.
type Options struct {
	DryRun    bool
	Overwrite bool
	// ForceCPU skips the hardware encoder entirely.
	ForceCPU bool
}

// Result reports how a job ended.
type Result struct {
	Outcome Outcome
	// Encoder is the codec that produced the output, empty when nothing
	// was encoded.
	Encoder string
	// Subtitled reports whether lyrics were burned in.
	Subtitled bool
}

// GPUBreaker counts consecutive hardware-encoder timeouts. Once the
// threshold trips, GPU attempts stop for the remainder of the run so
// later jobs do not each pay the full timeout before falling back.
type GPUBreaker struct {
	threshold int
	timeouts  int
}

// NewGPUBreaker builds a breaker tripping after threshold consecutive
// timeouts. A threshold below one disables the breaker.
func NewGPUBreaker(threshold int) *GPUBreaker {
	return &GPUBreaker{threshold: threshold}
}

func (b *GPUBreaker) recordTimeout() { b.timeouts++ }
func (b *GPUBreaker) recordSuccess() { b.timeouts = 0 }

// Tripped reports whether GPU attempts are disabled.
func (b *GPUBreaker) Tripped() bool {
	return b.threshold > 0 && b.timeouts >= b.threshold
}

// probeFunc matches ffprobe.Inspect, injectable for tests.
type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Renderer executes render jobs sequentially. The GPU is a single
// exclusive resource, so there is no per-job parallelism.
type Renderer struct {
	logger  *slog.Logger
	cfg     config.Encode
	ffmpeg  string
	ffprobe string
	runner  command.Runner
	breaker *GPUBreaker
	probe   probeFunc
}

// New builds a Renderer. The breaker is shared state owned by the
// caller so repeated passes in one run keep the same timeout history.
func New(logger *slog.Logger, cfg config.Encode, ffmpegBin, ffprobeBin string, runner command.Runner, breaker *GPUBreaker) *Renderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if breaker == nil {
		breaker = NewGPUBreaker(cfg.GPUTimeoutThreshold)
	}
	return &Renderer{
		logger:  logger,
		cfg:     cfg,
		ffmpeg:  ffmpegBin,
		ffprobe: ffprobeBin,
		runner:  runner,
		breaker: breaker,
		probe:   ffprobe.Inspect,
	}
}

// SetProbeForTests swaps the output validation probe.
func (r *Renderer) SetProbeForTests(probe func(ctx context.Context, binary, path string) (ffprobe.Result, error)) {
	r.probe = probe
}

// TargetPath returns the deterministic output path for a track.
func TargetPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".mp4"
}

// Render drives one job through the encode state machine.
func (r *Renderer) Render(ctx context.Context, job Job, opts Options) (Result, error) {
	log := r.logger.With(logging.String(logging.FieldPath, job.AudioPath))

	if job.CoverPath == "" {
		log.Info("render skipped, no cover", logging.String(logging.FieldOutcome, string(OutcomeSkippedNoCover)))
		return Result{Outcome: OutcomeSkippedNoCover}, nil
	}
	if !opts.Overwrite && r.validOutput(ctx, job.OutputPath) {
		log.Debug("render skipped, output exists")
		return Result{Outcome: OutcomeAlreadyRendered}, nil
	}
	if opts.DryRun {
		log.Info("would render video", logging.Bool(logging.FieldDryRun, true))
		return Result{Outcome: OutcomeRendered}, nil
	}

	subtitle, cleanup := r.prepareSubtitle(job, log)
	defer cleanup()

	for _, attempt := range r.attempts(opts, subtitle) {
		err := r.encode(ctx, job, attempt)
		if err == nil {
			if attempt.gpu {
				r.breaker.recordSuccess()
			}
			if !r.validOutput(ctx, job.OutputPath) {
				r.removeArtifact(job.OutputPath, log)
				log.Error("encoded output failed validation",
					logging.String("encoder", attempt.codec))
				return Result{Outcome: OutcomeFailed}, services.Wrap(services.ErrExternalTool,
					"render", "validate", "output failed structural probe", nil)
			}
			log.Info("rendered video",
				logging.String("encoder", attempt.codec),
				logging.Bool("subtitled", attempt.subtitle != ""))
			return Result{Outcome: OutcomeRendered, Encoder: attempt.codec, Subtitled: attempt.subtitle != ""}, nil
		}

		r.removeArtifact(job.OutputPath, log)
		timedOut := errors.Is(err, services.ErrTimeout)
		if attempt.gpu && timedOut {
			r.breaker.recordTimeout()
			if r.breaker.Tripped() {
				log.Warn("hardware encoder disabled for remainder of run",
					logging.Int("consecutive_timeouts", r.breaker.timeouts))
			}
		}
		log.Warn("encode attempt failed",
			logging.String("encoder", attempt.codec),
			logging.Bool("subtitled", attempt.subtitle != ""),
			logging.Error(err))
	}

	return Result{Outcome: OutcomeFailed}, services.Wrap(services.ErrExternalTool,
		"render", "encode", "all encode attempts failed for "+filepath.Base(job.AudioPath), nil)
}

// attempt is one rung of the fallback ladder.
type attempt struct {
	codec    string
	gpu      bool
	subtitle string
}

// attempts builds the fallback ladder: hardware with subtitles,
// hardware plain, software with subtitles, software plain. Rungs
// collapse when GPU is unavailable or there are no lyrics.
func (r *Renderer) attempts(opts Options, subtitle string) []attempt {
	var ladder []attempt
	useGPU := !opts.ForceCPU && !r.breaker.Tripped() && r.cfg.GPUCodec != ""
	if useGPU {
		if subtitle != "" {
			ladder = append(ladder, attempt{codec: r.cfg.GPUCodec, gpu: true, subtitle: subtitle})
		}
		ladder = append(ladder, attempt{codec: r.cfg.GPUCodec, gpu: true})
	}
	if subtitle != "" {
		ladder = append(ladder, attempt{codec: r.cfg.CPUCodec, subtitle: subtitle})
	}
	ladder = append(ladder, attempt{codec: r.cfg.CPUCodec})
	return ladder
}

func (r *Renderer) encode(ctx context.Context, job Job, a attempt) error {
	args := []string{
		"-hide_banner", "-y",
		"-loop", "1",
		"-i", command.SubprocessPath(job.CoverPath),
		"-i", command.SubprocessPath(job.AudioPath),
		"-c:v", a.codec,
		"-c:a", "aac",
		"-b:a", r.cfg.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-vf", r.videoFilter(a.subtitle),
		"-shortest",
		command.SubprocessPath(job.OutputPath),
	}

	timeout := time.Duration(r.cfg.TimeoutSeconds) * time.Second
	result, err := r.runner.Run(ctx, r.ffmpeg, args, timeout)
	if result.TimedOut {
		return services.Wrap(services.ErrTimeout, "render", "encode", a.codec+" exceeded deadline", err)
	}
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "encode", firstLine(result.CombinedOutput()), err)
	}
	return nil
}

// videoFilter caps the longer edge at cfg.MaxEdge without upscaling and
// keeps dimensions even for yuv420p; the subtitles filter is appended
// when a burn-in file exists.
func (r *Renderer) videoFilter(subtitle string) string {
	max := r.cfg.MaxEdge
	filter := fmt.Sprintf(
		"scale='min(iw,%d)':'min(ih,%d)':force_original_aspect_ratio=decrease:force_divisible_by=2",
		max, max)
	if subtitle != "" {
		filter += ",subtitles=" + escapeFilterPath(subtitle)
	}
	return filter
}

// prepareSubtitle converts the job's lyrics to a temporary SRT next to
// the output. A missing or empty sidecar just means no burn-in.
func (r *Renderer) prepareSubtitle(job Job, log *slog.Logger) (string, func()) {
	noop := func() {}
	if job.LyricsPath == "" {
		return "", noop
	}
	srt := strings.TrimSuffix(job.OutputPath, filepath.Ext(job.OutputPath)) + ".srt"
	if err := lyrics.ConvertFile(job.LyricsPath, srt); err != nil {
		if !errors.Is(err, services.ErrDataAbsent) {
			log.Warn("lyrics conversion failed", logging.Error(err))
		}
		return "", noop
	}
	return srt, func() {
		if err := os.Remove(srt); err != nil && !os.IsNotExist(err) {
			log.Warn("could not remove subtitle temp file", logging.Error(err))
		}
	}
}

// validOutput reports whether the target is a finished render: present,
// non-empty, and structurally sound per ffprobe.
func (r *Renderer) validOutput(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	result, err := r.probe(ctx, r.ffprobe, path)
	if err != nil {
		return false
	}
	return result.IsRenderedVideo()
}

func (r *Renderer) removeArtifact(path string, log *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove partial output", logging.Error(err))
	}
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter graph,
// where backslashes, colons and quotes are all metacharacters.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `/`)
	path = strings.ReplaceAll(path, `'`, `\'`)
	path = strings.ReplaceAll(path, `:`, `\:`)
	return "'" + path + "'"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Package pipeline sequences the normalization stages over the library:
// decode, sync, directory renaming, file renaming, cover resolution,
// rendering, cleanup. The run is single-threaded; stages observe a
// consistent snapshot and every mutation is individually atomic. No
// per-item failure aborts the run; each becomes a reported outcome.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"tunepress/internal/config"
	"tunepress/internal/cover"
	"tunepress/internal/cover/lookup"
	"tunepress/internal/decoder"
	"tunepress/internal/deps"
	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/lyrics"
	"tunepress/internal/namer"
	"tunepress/internal/preflight"
	"tunepress/internal/render"
	"tunepress/internal/services"
	"tunepress/internal/services/command"
)

// Modes are the run switches threaded through every stage. They are
// consulted before each mutating operation, never during one.
type Modes struct {
	// DryRun reports every outcome a live run would produce without
	// changing any path's existence, content, or mtime.
	DryRun bool
	// SkipConvert leaves encrypted containers alone; files already
	// decoded on earlier runs still flow through every later stage.
	SkipConvert bool
	// ForceCPU disables the hardware encoder for the whole run.
	ForceCPU bool
	// Overwrite re-renders videos whose valid output already exists.
	Overwrite bool
	// ForceRename resolves naming conflicts with a numeric suffix
	// instead of skipping.
	ForceRename bool
}

// Pipeline owns the collaborators for one run.
type Pipeline struct {
	logger   *slog.Logger
	cfg      *config.Config
	modes    Modes
	runner   command.Runner
	decoder  *decoder.Decoder
	resolver *cover.Resolver
	renderer *render.Renderer
}

// New wires a Pipeline with production collaborators: the real command
// executor, the discovered decoder (nil when absent), the remote cover
// lookup when enabled, and a renderer sharing one GPU breaker for the
// whole run.
func New(logger *slog.Logger, cfg *config.Config, modes Modes) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := command.Executor{}

	var dec *decoder.Decoder
	if status := deps.FindDecoder(cfg.Tools.Decoder, cfg.Paths.Root); status.Available {
		dec = decoder.New(logger, status.Command, runner)
	}

	var fetch cover.Lookup
	if cfg.Covers.LookupEnabled {
		fetch = lookup.NewClient(cfg.Covers)
	}
	resolver := cover.NewResolver(logger, cfg.Tools.FFmpeg, runner, fetch)

	breaker := render.NewGPUBreaker(cfg.Encode.GPUTimeoutThreshold)
	renderer := render.New(logger, cfg.Encode, cfg.Tools.FFmpeg, cfg.Tools.FFprobe, runner, breaker)

	return &Pipeline{
		logger:   logger,
		cfg:      cfg,
		modes:    modes,
		runner:   runner,
		decoder:  dec,
		resolver: resolver,
		renderer: renderer,
	}
}

// NewWithCollaborators wires a Pipeline around injected collaborators
// for tests.
func NewWithCollaborators(logger *slog.Logger, cfg *config.Config, modes Modes,
	runner command.Runner, dec *decoder.Decoder, resolver *cover.Resolver, renderer *render.Renderer) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		logger:   logger,
		cfg:      cfg,
		modes:    modes,
		runner:   runner,
		decoder:  dec,
		resolver: resolver,
		renderer: renderer,
	}
}

// Run executes the full pipeline. The only fatal error is a failed
// preflight; everything after that surfaces through the report.
func (p *Pipeline) Run(ctx context.Context, runID string) (*Report, error) {
	report := NewReport(runID, p.modes.DryRun)
	defer func() { report.Duration = time.Since(report.Started) }()

	ctx = services.WithRunID(ctx, runID)
	access := preflight.WriteProbe
	if p.modes.DryRun {
		access = preflight.InspectOnly
	}
	if err := preflight.Ensure(preflight.RunAll(ctx, p.cfg, access)); err != nil {
		return report, err
	}
	if !p.modes.DryRun {
		if err := os.MkdirAll(p.cfg.WorkRoot(), 0o755); err != nil {
			return report, services.Wrap(services.ErrConfiguration, "pipeline", "prepare",
				"create working directory", err)
		}
	}

	if !p.modes.SkipConvert {
		p.runDecode(ctx, report)
	}
	p.runSync(report)

	groups, err := library.ScanLeafDirs(p.cfg.WorkRoot())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Info("working tree absent, nothing to normalize")
			return report, nil
		}
		return report, services.Wrap(services.ErrIO, "pipeline", "scan", "walk working tree", err)
	}

	namerOpts := namer.Options{DryRun: p.modes.DryRun, ForceSuffix: p.modes.ForceRename}
	coverOpts := cover.Options{DryRun: p.modes.DryRun}
	renderOpts := render.Options{
		DryRun:    p.modes.DryRun,
		Overwrite: p.modes.Overwrite,
		ForceCPU:  p.modes.ForceCPU,
	}

	var jobs []render.Job
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		groupCtx := services.WithItemPath(ctx, group.Path)

		dirResult := namer.RenameDirectory(groupCtx, p.logger, group, namerOpts)
		report.Record(StageDirectories, string(dirResult.Outcome))
		if dirResult.Err != nil {
			report.Failures = append(report.Failures, Failure{
				Stage: StageDirectories, Path: dirResult.OldPath, Err: dirResult.Err,
			})
		}

		for _, trackResult := range namer.RenameTracks(groupCtx, p.logger, group, namerOpts) {
			report.Record(StageFiles, string(trackResult.Outcome))
			if trackResult.Err != nil {
				report.Failures = append(report.Failures, Failure{
					Stage: StageFiles, Path: trackResult.OldPath, Err: trackResult.Err,
				})
			}
		}

		lyrics.AlignSidecars(p.logger, group, lyrics.Options{DryRun: p.modes.DryRun})

		artist, album, _ := namer.CanonicalPair(group)
		coverResult, err := p.resolver.Resolve(groupCtx, group, artist, album, coverOpts)
		report.Record(StageCovers, string(coverResult.Outcome))
		if err != nil {
			report.Failures = append(report.Failures, Failure{
				Stage: StageCovers, Path: group.Path, Err: err,
			})
		}

		jobs = append(jobs, p.renderJobs(group, coverResult)...)
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := p.renderer.Render(services.WithItemPath(ctx, job.AudioPath), job, renderOpts)
		report.Record(StageRender, string(result.Outcome))
		if err != nil {
			report.Failures = append(report.Failures, Failure{
				Stage: StageRender, Path: job.AudioPath, Err: err,
			})
		}
	}

	p.runCleanup(groups, report)
	return report, nil
}

// renderJobs pairs each track with the group's resolved cover. An
// unresolved cover produces jobs with an empty cover path, which the
// renderer skips rather than fails.
func (p *Pipeline) renderJobs(group *library.Group, coverResult cover.Result) []render.Job {
	jobs := make([]render.Job, 0, len(group.Tracks))
	for _, track := range group.Tracks {
		job := render.Job{
			AudioPath:  track.Path,
			CoverPath:  coverResult.Path,
			OutputPath: render.TargetPath(track.Path),
		}
		if sidecar, ok := lyrics.SidecarFor(track.Path); ok {
			job.LyricsPath = sidecar
		}
		jobs = append(jobs, job)
	}
	return jobs
}

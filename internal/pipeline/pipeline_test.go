package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tunepress/internal/config"
	"tunepress/internal/cover"
	"tunepress/internal/decoder"
	"tunepress/internal/media/ffprobe"
	"tunepress/internal/namer"
	"tunepress/internal/render"
	"tunepress/internal/services/command"
	"tunepress/internal/testsupport"
)

// encodeRunner plays ffmpeg for the render stage: it writes the output
// file named by the last argument.
type encodeRunner struct {
	calls int
}

func (r *encodeRunner) Run(ctx context.Context, binary string, args []string, timeout time.Duration) (command.Result, error) {
	r.calls++
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("mp4"), 0o644); err != nil {
		return command.Result{ExitCode: -1}, err
	}
	return command.Result{}, nil
}

// countingRunner records invocations without doing anything; used where
// a stage's external tool must not run at all.
type countingRunner struct {
	calls int
}

func (r *countingRunner) Run(ctx context.Context, binary string, args []string, timeout time.Duration) (command.Result, error) {
	r.calls++
	return command.Result{}, nil
}

func validProbe(ctx context.Context, binary, path string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "audio"}},
		Format:  ffprobe.Format{Duration: "120.0"},
	}, nil
}

// newTestPipeline builds a pipeline whose external tools are stubbed
// and whose preflight can pass in any environment.
func newTestPipeline(t *testing.T, modes Modes) (*Pipeline, *config.Config, *encodeRunner) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = "sh"
	cfg.Tools.FFprobe = "sh"
	if err := os.MkdirAll(cfg.SourceRoot(), 0o755); err != nil {
		t.Fatal(err)
	}

	runner := &encodeRunner{}
	resolver := cover.NewResolver(nil, "", nil, nil)
	renderer := render.New(nil, cfg.Encode, cfg.Tools.FFmpeg, cfg.Tools.FFprobe, runner, nil)
	renderer.SetProbeForTests(validProbe)
	p := NewWithCollaborators(nil, cfg, modes, runner, nil, resolver, renderer)
	return p, cfg, runner
}

func seedAlbum(t *testing.T, cfg *config.Config, dirName string) string {
	t.Helper()
	dir := filepath.Join(cfg.SourceRoot(), dirName)
	art := testsupport.JPEGBytes(t)
	testsupport.WriteTrack(t, filepath.Join(dir, "first song.mp3"), testsupport.TrackSpec{
		Artist: "The Band", Album: "Debut", Track: "1", Title: "Opening",
		Cover: art,
	})
	testsupport.WriteTrack(t, filepath.Join(dir, "second song.mp3"), testsupport.TrackSpec{
		Artist: "The Band", Album: "Debut", Track: "2/10", Title: "Closing",
	})
	return dir
}

func TestRunNormalizesLibrary(t *testing.T) {
	p, cfg, runner := newTestPipeline(t, Modes{})
	seedAlbum(t, cfg, "new album folder")

	report, err := p.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	albumDir := filepath.Join(cfg.WorkRoot(), "The Band - Debut")
	if _, statErr := os.Stat(albumDir); statErr != nil {
		t.Fatalf("canonical album directory missing: %v", statErr)
	}
	for _, name := range []string{"01 - first song.mp3", "02 - second song.mp3", "Cover.jpg",
		"01 - first song.mp4", "02 - second song.mp4"} {
		if _, statErr := os.Stat(filepath.Join(albumDir, name)); statErr != nil {
			t.Errorf("missing %s: %v", name, statErr)
		}
	}
	if got := report.Count(StageSync, "Copied"); got != 2 {
		t.Errorf("synced = %d, want 2", got)
	}
	if got := report.Count(StageDirectories, string(namer.OutcomeRenamed)); got != 1 {
		t.Errorf("directories renamed = %d, want 1", got)
	}
	if got := report.Count(StageCovers, string(cover.OutcomeExtractedFromTag)); got != 1 {
		t.Errorf("covers extracted = %d, want 1", got)
	}
	if got := report.Count(StageRender, string(render.OutcomeRendered)); got != 2 {
		t.Errorf("rendered = %d, want 2", got)
	}
	if runner.calls != 2 {
		t.Errorf("encoder calls = %d, want 2", runner.calls)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	p, cfg, _ := newTestPipeline(t, Modes{})
	seedAlbum(t, cfg, "album")

	if _, err := p.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	p2, _, runner2 := func() (*Pipeline, *config.Config, *encodeRunner) {
		runner := &encodeRunner{}
		resolver := cover.NewResolver(nil, "", nil, nil)
		renderer := render.New(nil, cfg.Encode, cfg.Tools.FFmpeg, cfg.Tools.FFprobe, runner, nil)
		renderer.SetProbeForTests(validProbe)
		return NewWithCollaborators(nil, cfg, Modes{}, runner, nil, resolver, renderer), cfg, runner
	}()

	report, err := p2.Run(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := report.Count(StageDirectories, string(namer.OutcomeAlreadyCanonical)); got != 1 {
		t.Errorf("directories already canonical = %d, want 1", got)
	}
	if got := report.Count(StageFiles, string(namer.OutcomeAlreadyCanonical)); got != 2 {
		t.Errorf("files already canonical = %d, want 2", got)
	}
	if got := report.Count(StageCovers, string(cover.OutcomeAlreadyPresent)); got != 1 {
		t.Errorf("covers already present = %d, want 1", got)
	}
	if got := report.Count(StageRender, string(render.OutcomeAlreadyRendered)); got != 2 {
		t.Errorf("renders skipped = %d, want 2", got)
	}
	if runner2.calls != 0 {
		t.Errorf("encoder calls on second run = %d, want 0", runner2.calls)
	}
}

func TestRunDryRunChangesNothing(t *testing.T) {
	p, cfg, runner := newTestPipeline(t, Modes{DryRun: true})
	seedAlbum(t, cfg, "album")

	report, err := p.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, statErr := os.Stat(cfg.WorkRoot()); !os.IsNotExist(statErr) {
		t.Fatal("dry run created the working directory")
	}
	if runner.calls != 0 {
		t.Fatalf("encoder calls = %d, want 0", runner.calls)
	}
	if got := report.Count(StageSync, "Copied"); got != 2 {
		t.Errorf("dry run reported %d copies, want 2", got)
	}
}

func TestRunSkipConvertLeavesContainersButRenders(t *testing.T) {
	p, cfg, runner := newTestPipeline(t, Modes{SkipConvert: true})
	albumDir := seedAlbum(t, cfg, "album")

	decodeRunner := &countingRunner{}
	p.decoder = decoder.New(nil, "um", decodeRunner)
	container := filepath.Join(albumDir, "locked.ncm")
	testsupport.WriteFile(t, container, 64)

	report, err := p.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if decodeRunner.calls != 0 {
		t.Fatalf("decoder invoked %d time(s) despite skip", decodeRunner.calls)
	}
	if rows := report.Rows(); containsStage(rows, StageDecode) {
		t.Fatal("decode stage reported despite skip")
	}
	if _, statErr := os.Stat(container); statErr != nil {
		t.Fatalf("container went missing: %v", statErr)
	}
	if got := report.Count(StageRender, string(render.OutcomeRendered)); got != 2 {
		t.Errorf("rendered = %d, want 2", got)
	}
	if runner.calls != 2 {
		t.Errorf("encoder calls = %d, want 2", runner.calls)
	}
}

func TestRunCleansStrays(t *testing.T) {
	p, cfg, _ := newTestPipeline(t, Modes{})
	seedAlbum(t, cfg, "album")

	if _, err := p.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	albumDir := filepath.Join(cfg.WorkRoot(), "The Band - Debut")
	stray := filepath.Join(albumDir, "notes.txt")
	loose := filepath.Join(cfg.WorkRoot(), "leftover.tmp")
	testsupport.WriteFile(t, stray, 64)
	testsupport.WriteFile(t, loose, 64)

	report, err := p.Run(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := report.Count(StageCleanup, outcomeRemoved); got != 2 {
		t.Fatalf("removed = %d, want 2", got)
	}
	if _, statErr := os.Stat(stray); !os.IsNotExist(statErr) {
		t.Fatal("stray album file survived cleanup")
	}
	if _, statErr := os.Stat(loose); !os.IsNotExist(statErr) {
		t.Fatal("loose work-root file survived cleanup")
	}
}

func TestRunPreflightFailureIsFatal(t *testing.T) {
	p, cfg, _ := newTestPipeline(t, Modes{})
	if err := os.RemoveAll(cfg.SourceRoot()); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(context.Background(), "run-1"); err == nil {
		t.Fatal("expected preflight failure for missing source directory")
	}
}

func TestReportRows(t *testing.T) {
	report := NewReport("run-1", false)
	report.Record(StageRender, "Rendered")
	report.Record(StageDecode, "Decoded")
	report.Record(StageDecode, "Decoded")

	rows := report.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Stage != StageDecode || rows[0].Count != 2 {
		t.Fatalf("first row = %+v, want decode count 2", rows[0])
	}
	if rows[1].Stage != StageRender {
		t.Fatalf("second row = %+v, want render", rows[1])
	}
}

func TestSyncable(t *testing.T) {
	cases := map[string]bool{
		"song.mp3":   true,
		"song.FLAC":  true,
		"song.lrc":   true,
		"Cover.jpg":  true,
		"cover.PNG":  true,
		"random.jpg": false,
		"song.ncm":   false,
		"notes.txt":  false,
	}
	for name, want := range cases {
		if got := syncable(name); got != want {
			t.Errorf("syncable(%q) = %v, want %v", name, got, want)
		}
	}
}

func containsStage(rows []Row, stage string) bool {
	for _, row := range rows {
		if row.Stage == stage {
			return true
		}
	}
	return false
}

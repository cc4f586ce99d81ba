package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tunepress/internal/config"
	"tunepress/internal/media/ffprobe"
	"tunepress/internal/services"
	"tunepress/internal/services/command"
	"tunepress/internal/testsupport"
)

// call records one invocation seen by the scripted runner.
type call struct {
	codec    string
	subtitle bool
}

// scriptRunner plays ffmpeg: each step either times out, fails, or
// succeeds by writing the output file.
type scriptRunner struct {
	t     *testing.T
	steps []string // "ok", "fail", "timeout"
	calls []call
}

func (s *scriptRunner) Run(ctx context.Context, binary string, args []string, timeout time.Duration) (command.Result, error) {
	idx := len(s.calls)
	s.calls = append(s.calls, call{
		codec:    argValue(args, "-c:v"),
		subtitle: strings.Contains(argValue(args, "-vf"), "subtitles="),
	})
	if idx >= len(s.steps) {
		s.t.Fatalf("unexpected encode attempt %d", idx+1)
	}
	switch s.steps[idx] {
	case "timeout":
		return command.Result{ExitCode: -1, TimedOut: true}, context.DeadlineExceeded
	case "fail":
		return command.Result{ExitCode: 1, Stderr: []byte("Unknown encoder")}, errors.New("exit status 1")
	default:
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("mp4-bytes"), 0o644); err != nil {
			return command.Result{ExitCode: -1}, err
		}
		return command.Result{}, nil
	}
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func validProbe(ctx context.Context, binary, path string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "audio"}},
		Format:  ffprobe.Format{Duration: "184.2"},
	}, nil
}

func invalidProbe(ctx context.Context, binary, path string) (ffprobe.Result, error) {
	return ffprobe.Result{}, nil
}

func testEncodeConfig() config.Encode {
	return config.Encode{
		GPUCodec:            "h264_nvenc",
		CPUCodec:            "libx264",
		AudioBitrate:        "192k",
		MaxEdge:             720,
		TimeoutSeconds:      30,
		GPUTimeoutThreshold: 3,
	}
}

func newJob(t *testing.T) Job {
	dir := t.TempDir()
	audio := filepath.Join(dir, "01 - Song.mp3")
	cover := filepath.Join(dir, "Cover.jpg")
	testsupport.WriteTrack(t, audio, testsupport.TrackSpec{})
	if err := os.WriteFile(cover, testsupport.JPEGBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}
	return Job{AudioPath: audio, CoverPath: cover, OutputPath: TargetPath(audio)}
}

func newRenderer(t *testing.T, runner *scriptRunner, probe probeFunc) *Renderer {
	t.Helper()
	r := New(nil, testEncodeConfig(), "ffmpeg", "ffprobe", runner, nil)
	r.SetProbeForTests(probe)
	return r
}

func TestRenderGPUSuccess(t *testing.T) {
	runner := &scriptRunner{t: t, steps: []string{"ok"}}
	r := newRenderer(t, runner, validProbe)
	job := newJob(t)

	res, err := r.Render(context.Background(), job, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Outcome != OutcomeRendered || res.Encoder != "h264_nvenc" {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestRenderFallsBackToCPU(t *testing.T) {
	runner := &scriptRunner{t: t, steps: []string{"timeout", "ok"}}
	r := newRenderer(t, runner, validProbe)

	res, err := r.Render(context.Background(), newJob(t), Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Encoder != "libx264" {
		t.Fatalf("encoder = %s, want libx264", res.Encoder)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("attempts = %d, want 2", len(runner.calls))
	}
	if runner.calls[0].codec != "h264_nvenc" || runner.calls[1].codec != "libx264" {
		t.Fatalf("attempt order: %+v", runner.calls)
	}
}

func TestRenderBreakerDisablesGPU(t *testing.T) {
	breaker := NewGPUBreaker(2)
	runner := &scriptRunner{t: t, steps: []string{
		"timeout", "ok", // job 1: gpu timeout, cpu ok
		"timeout", "ok", // job 2: gpu timeout trips breaker, cpu ok
		"ok", // job 3: straight to cpu
	}}
	r := New(nil, testEncodeConfig(), "ffmpeg", "ffprobe", runner, breaker)
	r.SetProbeForTests(validProbe)

	for i := 0; i < 3; i++ {
		if _, err := r.Render(context.Background(), newJob(t), Options{}); err != nil {
			t.Fatalf("job %d: %v", i+1, err)
		}
	}
	if !breaker.Tripped() {
		t.Fatal("breaker not tripped after consecutive timeouts")
	}
	last := runner.calls[len(runner.calls)-1]
	if last.codec != "libx264" {
		t.Fatalf("job 3 used %s, want libx264", last.codec)
	}
	if len(runner.calls) != 5 {
		t.Fatalf("attempts = %d, want 5", len(runner.calls))
	}
}

func TestRenderGPUSuccessResetsBreaker(t *testing.T) {
	breaker := NewGPUBreaker(2)
	runner := &scriptRunner{t: t, steps: []string{
		"timeout", "ok", // job 1: one gpu timeout, cpu ok
		"ok", // job 2: gpu success resets the count
	}}
	r := New(nil, testEncodeConfig(), "ffmpeg", "ffprobe", runner, breaker)
	r.SetProbeForTests(validProbe)

	for i := 0; i < 2; i++ {
		if _, err := r.Render(context.Background(), newJob(t), Options{}); err != nil {
			t.Fatalf("job %d: %v", i+1, err)
		}
	}
	if breaker.Tripped() {
		t.Fatal("breaker tripped despite GPU success")
	}
	if breaker.timeouts != 0 {
		t.Fatalf("timeout count = %d, want 0", breaker.timeouts)
	}
}

func TestRenderForceCPU(t *testing.T) {
	runner := &scriptRunner{t: t, steps: []string{"ok"}}
	r := newRenderer(t, runner, validProbe)

	res, err := r.Render(context.Background(), newJob(t), Options{ForceCPU: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Encoder != "libx264" {
		t.Fatalf("encoder = %s, want libx264", res.Encoder)
	}
}

func TestRenderSkipsWithoutCover(t *testing.T) {
	runner := &scriptRunner{t: t}
	r := newRenderer(t, runner, validProbe)
	job := newJob(t)
	job.CoverPath = ""

	res, err := r.Render(context.Background(), job, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Outcome != OutcomeSkippedNoCover {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeSkippedNoCover)
	}
	if len(runner.calls) != 0 {
		t.Fatal("encoder invoked for coverless job")
	}
}

func TestRenderSkipsValidExisting(t *testing.T) {
	runner := &scriptRunner{t: t}
	r := newRenderer(t, runner, validProbe)
	job := newJob(t)
	if err := os.WriteFile(job.OutputPath, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := r.Render(context.Background(), job, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Outcome != OutcomeAlreadyRendered {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeAlreadyRendered)
	}
	if len(runner.calls) != 0 {
		t.Fatal("encoder invoked for finished job")
	}
}

func TestRenderOverwriteReencodes(t *testing.T) {
	runner := &scriptRunner{t: t, steps: []string{"ok"}}
	r := newRenderer(t, runner, validProbe)
	job := newJob(t)
	if err := os.WriteFile(job.OutputPath, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := r.Render(context.Background(), job, Options{Overwrite: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Outcome != OutcomeRendered {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeRendered)
	}
}

func TestRenderValidationFailureDeletesArtifact(t *testing.T) {
	runner := &scriptRunner{t: t, steps: []string{"ok"}}
	r := newRenderer(t, runner, invalidProbe)
	job := newJob(t)

	res, err := r.Render(context.Background(), job, Options{})
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeFailed)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
	if _, statErr := os.Stat(job.OutputPath); !os.IsNotExist(statErr) {
		t.Fatal("invalid output not deleted")
	}
}

func TestRenderAllAttemptsFail(t *testing.T) {
	runner := &scriptRunner{t: t, steps: []string{"fail", "fail"}}
	r := newRenderer(t, runner, validProbe)
	job := newJob(t)

	res, err := r.Render(context.Background(), job, Options{})
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeFailed)
	}
	if err == nil {
		t.Fatal("expected error for exhausted attempts")
	}
	if _, statErr := os.Stat(job.OutputPath); !os.IsNotExist(statErr) {
		t.Fatal("partial artifact left behind")
	}
}

func TestRenderSubtitleFallback(t *testing.T) {
	runner := &scriptRunner{t: t, steps: []string{"fail", "ok"}}
	r := newRenderer(t, runner, validProbe)
	job := newJob(t)
	job.LyricsPath = strings.TrimSuffix(job.AudioPath, ".mp3") + ".lrc"
	if err := os.WriteFile(job.LyricsPath, []byte("[00:01.00]line one\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := r.Render(context.Background(), job, Options{ForceCPU: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Subtitled {
		t.Fatal("result reports subtitles after subtitle-less fallback")
	}
	if !runner.calls[0].subtitle || runner.calls[1].subtitle {
		t.Fatalf("attempt ladder: %+v", runner.calls)
	}
	srt := strings.TrimSuffix(job.OutputPath, ".mp4") + ".srt"
	if _, statErr := os.Stat(srt); !os.IsNotExist(statErr) {
		t.Fatal("subtitle temp file not removed")
	}
}

func TestRenderDryRun(t *testing.T) {
	runner := &scriptRunner{t: t}
	r := newRenderer(t, runner, validProbe)
	job := newJob(t)

	res, err := r.Render(context.Background(), job, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Outcome != OutcomeRendered {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeRendered)
	}
	if len(runner.calls) != 0 {
		t.Fatal("dry run invoked the encoder")
	}
	if _, statErr := os.Stat(job.OutputPath); !os.IsNotExist(statErr) {
		t.Fatal("dry run wrote an output file")
	}
}

func TestVideoFilterCapsEdge(t *testing.T) {
	r := newRenderer(t, &scriptRunner{t: t}, validProbe)
	filter := r.videoFilter("")
	if !strings.Contains(filter, "min(iw,720)") || !strings.Contains(filter, "min(ih,720)") {
		t.Fatalf("filter missing cap: %s", filter)
	}
	if !strings.Contains(filter, "force_original_aspect_ratio=decrease") {
		t.Fatalf("filter missing aspect guard: %s", filter)
	}
}

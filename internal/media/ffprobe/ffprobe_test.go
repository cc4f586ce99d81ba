package ffprobe_test

import (
	"context"
	"testing"

	"tunepress/internal/media/ffprobe"
)

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := ffprobe.Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestIsRenderedVideo(t *testing.T) {
	cases := []struct {
		name   string
		result ffprobe.Result
		want   bool
	}{
		{
			name: "audio and video with duration",
			result: ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "audio"}},
				Format:  ffprobe.Format{Duration: "181.4"},
			},
			want: true,
		},
		{
			name: "missing audio",
			result: ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "video"}},
				Format:  ffprobe.Format{Duration: "181.4"},
			},
			want: false,
		},
		{
			name: "zero duration",
			result: ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "audio"}},
				Format:  ffprobe.Format{Duration: "0"},
			},
			want: false,
		},
		{
			name: "unparseable duration",
			result: ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "audio"}},
				Format:  ffprobe.Format{Duration: "N/A"},
			},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.result.IsRenderedVideo(); got != tc.want {
				t.Fatalf("IsRenderedVideo = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStreamCounts(t *testing.T) {
	result := ffprobe.Result{Streams: []ffprobe.Stream{
		{CodecType: "Video"},
		{CodecType: "audio"},
		{CodecType: "audio"},
	}}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 2 {
		t.Fatalf("counts = %d video, %d audio", result.VideoStreamCount(), result.AudioStreamCount())
	}
}

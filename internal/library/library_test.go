package library_test

import (
	"path/filepath"
	"testing"

	"tunepress/internal/library"
	"tunepress/internal/testsupport"
)

func TestScanLeafDirs(t *testing.T) {
	root := t.TempDir()
	// albumA is a leaf; parent/ holds a track but also a child dir with
	// tracks, so only the child is a leaf.
	testsupport.WriteTrack(t, filepath.Join(root, "albumA", "one.mp3"), testsupport.TrackSpec{Title: "One"})
	testsupport.WriteTrack(t, filepath.Join(root, "albumA", "two.mp3"), testsupport.TrackSpec{Title: "Two"})
	testsupport.WriteTrack(t, filepath.Join(root, "parent", "loose.mp3"), testsupport.TrackSpec{Title: "Loose"})
	testsupport.WriteTrack(t, filepath.Join(root, "parent", "child", "deep.mp3"), testsupport.TrackSpec{Title: "Deep"})
	testsupport.WriteFile(t, filepath.Join(root, "albumA", "notes.txt"), 10)

	groups, err := library.ScanLeafDirs(root)
	if err != nil {
		t.Fatalf("ScanLeafDirs: %v", err)
	}

	got := map[string]int{}
	for _, g := range groups {
		rel, _ := filepath.Rel(root, g.Path)
		got[rel] = len(g.Tracks)
	}
	if len(got) != 2 {
		t.Fatalf("leaf dirs = %v", got)
	}
	if got["albumA"] != 2 {
		t.Fatalf("albumA tracks = %d", got["albumA"])
	}
	if got[filepath.Join("parent", "child")] != 1 {
		t.Fatalf("child tracks = %v", got)
	}
}

func TestScanOrdersTracksByName(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTrack(t, filepath.Join(root, "a", "b.mp3"), testsupport.TrackSpec{Title: "B"})
	testsupport.WriteTrack(t, filepath.Join(root, "a", "A.mp3"), testsupport.TrackSpec{Title: "A"})
	testsupport.WriteTrack(t, filepath.Join(root, "a", "c.mp3"), testsupport.TrackSpec{Title: "C"})

	groups, err := library.ScanLeafDirs(root)
	if err != nil {
		t.Fatalf("ScanLeafDirs: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d", len(groups))
	}
	var names []string
	for _, track := range groups[0].Tracks {
		names = append(names, filepath.Base(track.Path))
	}
	want := []string{"A.mp3", "b.mp3", "c.mp3"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestTrackTagsCached(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "x", "t.mp3")
	testsupport.WriteTrack(t, path, testsupport.TrackSpec{Artist: "A", Album: "B", Title: "T"})

	groups, err := library.ScanLeafDirs(root)
	if err != nil {
		t.Fatalf("ScanLeafDirs: %v", err)
	}
	track := groups[0].Tracks[0]
	first := track.Tags()
	track.SetPath(filepath.Join(root, "x", "moved.mp3")) // stale path on purpose
	second := track.Tags()
	if first != second {
		t.Fatalf("tags re-read after rename: %+v vs %+v", first, second)
	}
}

func TestIsAudio(t *testing.T) {
	for _, p := range []string{"a.mp3", "b.FLAC", "c.wav", "d.m4a"} {
		if !library.IsAudio(p) {
			t.Fatalf("%s should be audio", p)
		}
	}
	for _, p := range []string{"a.txt", "b.jpg", "c.ncm", "d"} {
		if library.IsAudio(p) {
			t.Fatalf("%s should not be audio", p)
		}
	}
}

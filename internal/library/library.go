package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tunepress/internal/fingerprint"
	"tunepress/internal/tags"
)

// audioExtensions are the file extensions recognized as tracks.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".m4a":  true,
}

// IsAudio reports whether path has a recognized audio extension.
func IsAudio(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Track is one audio file on disk. Tags and fingerprint are computed once per
// pipeline pass and cached; Path changes exactly once on a successful rename.
type Track struct {
	Path string

	tagsRead bool
	tagsVal  tags.Tags

	fpDone bool
	fpVal  string
	fpErr  error
}

// Tags returns the track's canonical tag fields, reading them on first use.
func (t *Track) Tags() tags.Tags {
	if !t.tagsRead {
		t.tagsVal = tags.Read(t.Path)
		t.tagsRead = true
	}
	return t.tagsVal
}

// Fingerprint returns the track's cached content digest. An error means the
// file could not be read; callers must treat such tracks as non-duplicable.
func (t *Track) Fingerprint() (string, error) {
	if !t.fpDone {
		t.fpVal, t.fpErr = fingerprint.Compute(t.Path)
		t.fpDone = true
	}
	return t.fpVal, t.fpErr
}

// SetPath records a successful rename and invalidates nothing: tags and
// fingerprint describe content, which a rename does not change.
func (t *Track) SetPath(path string) {
	t.Path = path
}

// Group is a leaf directory and the tracks it directly contains.
type Group struct {
	Path   string
	Tracks []*Track
}

// Rebase updates the group and member paths after the directory was renamed.
func (g *Group) Rebase(newDir string) {
	for _, track := range g.Tracks {
		track.SetPath(filepath.Join(newDir, filepath.Base(track.Path)))
	}
	g.Path = newDir
}

// ScanLeafDirs walks root and returns one Group per leaf directory: a
// directory holding tracks directly, with no descendant directory that itself
// holds tracks. Groups are ordered by lowercased path and member tracks by
// lowercased filename, so vote tie-breaks are stable across platforms.
func ScanLeafDirs(root string) ([]*Group, error) {
	trackDirs := map[string][]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsAudio(path) {
			return nil
		}
		dir := filepath.Dir(path)
		trackDirs[dir] = append(trackDirs[dir], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	hasTrackDescendant := map[string]bool{}
	for dir := range trackDirs {
		for parent := filepath.Dir(dir); len(parent) >= len(root); parent = filepath.Dir(parent) {
			if _, ok := trackDirs[parent]; ok {
				hasTrackDescendant[parent] = true
			}
			if parent == filepath.Dir(parent) {
				break
			}
		}
	}

	groups := make([]*Group, 0, len(trackDirs))
	for dir, paths := range trackDirs {
		if hasTrackDescendant[dir] {
			continue
		}
		sort.Slice(paths, func(i, j int) bool {
			return strings.ToLower(filepath.Base(paths[i])) < strings.ToLower(filepath.Base(paths[j]))
		})
		tracks := make([]*Track, 0, len(paths))
		for _, p := range paths {
			tracks = append(tracks, &Track{Path: p})
		}
		groups = append(groups, &Group{Path: dir, Tracks: tracks})
	}
	sort.Slice(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Path) < strings.ToLower(groups[j].Path)
	})
	return groups, nil
}

// ListByExtension returns files directly inside dir whose lowercased
// extension matches ext, sorted by name.
func ListByExtension(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

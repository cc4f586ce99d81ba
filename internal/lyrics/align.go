package lyrics

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/textutil"
)

// Options control side effects during sidecar alignment.
type Options struct {
	DryRun bool
}

// SidecarFor returns the track's matching .lrc path if one exists.
func SidecarFor(trackPath string) (string, bool) {
	candidate := strings.TrimSuffix(trackPath, filepath.Ext(trackPath)) + ".lrc"
	if _, err := os.Stat(candidate); err != nil {
		return "", false
	}
	return candidate, true
}

// AlignSidecars renames stray .lrc files in the group's directory so
// each shares its track's stem. Matching runs in three tiers: exact
// stem (case-insensitive), normalized stem, then the track's tag
// title. Files that match nothing are left in place.
func AlignSidecars(logger *slog.Logger, group *library.Group, opts Options) {
	if logger == nil {
		logger = logging.NewNop()
	}
	sidecars, err := library.ListByExtension(group.Path, ".lrc")
	if err != nil {
		logger.Warn("could not list lyric sidecars",
			logging.String(logging.FieldPath, group.Path), logging.Error(err))
		return
	}

	trackStems := make([]string, len(group.Tracks))
	for i, track := range group.Tracks {
		trackStems[i] = stem(track.Path)
	}

	var unmatched []string
	for _, sc := range sidecars {
		if stemIndex(trackStems, stem(sc)) < 0 {
			unmatched = append(unmatched, sc)
		}
	}
	if len(unmatched) == 0 {
		return
	}

	for i, track := range group.Tracks {
		if len(unmatched) == 0 {
			return
		}
		trackStem := trackStems[i]
		if containsFold(sidecarStems(sidecars, unmatched), trackStem) {
			continue
		}
		idx := matchSidecar(unmatched, trackStem, track.Tags().Title)
		if idx < 0 {
			continue
		}
		source := unmatched[idx]
		target := filepath.Join(group.Path, trackStem+".lrc")
		log := logger.With(
			logging.String("sidecar", filepath.Base(source)),
			logging.String("target", filepath.Base(target)),
		)
		if opts.DryRun {
			log.Info("would align lyric sidecar", logging.Bool(logging.FieldDryRun, true))
		} else if err := os.Rename(source, target); err != nil {
			log.Warn("could not align lyric sidecar", logging.Error(err))
			continue
		} else {
			log.Info("aligned lyric sidecar")
		}
		unmatched = append(unmatched[:idx], unmatched[idx+1:]...)
	}
}

// sidecarStems lists the stems of sidecars that are already matched,
// i.e. present in all but absent from unmatched.
func sidecarStems(all, unmatched []string) []string {
	skip := make(map[string]bool, len(unmatched))
	for _, sc := range unmatched {
		skip[sc] = true
	}
	var stems []string
	for _, sc := range all {
		if !skip[sc] {
			stems = append(stems, stem(sc))
		}
	}
	return stems
}

func matchSidecar(candidates []string, trackStem, title string) int {
	for i, sc := range candidates {
		if strings.EqualFold(stem(sc), trackStem) {
			return i
		}
	}
	normStem := textutil.NormalizeVote(trackStem)
	for i, sc := range candidates {
		if textutil.NormalizeVote(stem(sc)) == normStem {
			return i
		}
	}
	if title = strings.TrimSpace(title); title != "" {
		normTitle := textutil.NormalizeVote(title)
		for i, sc := range candidates {
			if textutil.NormalizeVote(stem(sc)) == normTitle {
				return i
			}
		}
	}
	return -1
}

func stemIndex(stems []string, s string) int {
	for i, candidate := range stems {
		if strings.EqualFold(candidate, s) {
			return i
		}
	}
	return -1
}

func containsFold(stems []string, s string) bool {
	return stemIndex(stems, s) >= 0
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

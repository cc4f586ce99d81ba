package namer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/textutil"
)

// TrackResult reports one file rename decision.
type TrackResult struct {
	Outcome Outcome
	OldPath string
	NewPath string
	Err     error
}

// TrackFileName derives the canonical file name for a track: the zero-padded
// track number plus the portion of the original stem after its first "- "
// separator (the whole stem when absent). Returns false when the track number
// is unusable.
func TrackFileName(track *library.Track) (string, bool) {
	number, ok := track.Tags().TrackNumber()
	if !ok {
		return "", false
	}
	stem := strings.TrimSuffix(filepath.Base(track.Path), filepath.Ext(track.Path))
	title := stem
	if idx := strings.Index(stem, "- "); idx >= 0 {
		title = strings.TrimSpace(stem[idx+2:])
	}
	if title == "" {
		title = stem
	}
	name := textutil.SanitizeFileName(fmt.Sprintf("%02d - %s", number, title))
	return name + strings.ToLower(filepath.Ext(track.Path)), true
}

// RenameTracks renames every member of the group to its canonical file name,
// collapsing exact duplicates and skipping genuine conflicts. A file whose
// content differs from the target's is never overwritten or deleted.
func RenameTracks(ctx context.Context, logger *slog.Logger, group *library.Group, opts Options) []TrackResult {
	log := logging.WithContext(ctx, logger)
	results := make([]TrackResult, 0, len(group.Tracks))

	for _, track := range group.Tracks {
		results = append(results, renameTrack(log, group, track, opts))
	}

	// Drop records of deleted duplicates from the group so later stages
	// never touch paths that no longer exist.
	if !opts.DryRun {
		kept := group.Tracks[:0]
		for i, track := range group.Tracks {
			if results[i].Outcome == OutcomeDeduplicatedRemoved {
				continue
			}
			kept = append(kept, track)
		}
		group.Tracks = kept
	}
	return results
}

func renameTrack(log *slog.Logger, group *library.Group, track *library.Track, opts Options) TrackResult {
	result := TrackResult{OldPath: track.Path, NewPath: track.Path}

	name, ok := TrackFileName(track)
	if !ok {
		result.Outcome = OutcomeSkippedNoData
		log.Info("no usable track number, keeping file name",
			logging.String(logging.FieldPath, track.Path),
			logging.String(logging.FieldOutcome, string(OutcomeSkippedNoData)))
		return result
	}

	if filepath.Base(track.Path) == name {
		result.Outcome = OutcomeAlreadyCanonical
		return result
	}

	target := filepath.Join(group.Path, name)
	if pathExists(target) {
		srcFP, srcErr := track.Fingerprint()
		dstFP, dstErr := (&library.Track{Path: target}).Fingerprint()
		if srcErr == nil && dstErr == nil && srcFP == dstFP {
			result.Outcome = OutcomeDeduplicatedRemoved
			result.NewPath = target
			log.Info("duplicate of canonical file, removing",
				logging.String(logging.FieldPath, track.Path),
				logging.String("kept", target),
				logging.Bool(logging.FieldDryRun, opts.DryRun))
			if opts.DryRun {
				return result
			}
			if err := os.Remove(track.Path); err != nil {
				result.Outcome = OutcomeFailed
				result.Err = err
			}
			return result
		}
		// Uncertain fingerprints are treated as differing content: the
		// file is never deleted on an unreadable digest.
		if !opts.ForceSuffix {
			result.Outcome = OutcomeSkippedConflict
			log.Warn("target file exists with different content, skipping rename",
				logging.String(logging.FieldPath, track.Path),
				logging.String("target", target),
				logging.String(logging.FieldOutcome, string(OutcomeSkippedConflict)))
			return result
		}
		ext := filepath.Ext(target)
		target = suffixedPath(target, ext)
	}

	result.NewPath = target
	result.Outcome = OutcomeRenamed
	log.Info("renaming track",
		logging.String(logging.FieldPath, track.Path),
		logging.String("target", target),
		logging.Bool(logging.FieldDryRun, opts.DryRun))
	if opts.DryRun {
		return result
	}
	if err := os.Rename(track.Path, target); err != nil {
		result.Outcome = OutcomeFailed
		result.NewPath = track.Path
		result.Err = err
		return result
	}
	moveSidecar(log, track.Path, target, opts)
	track.SetPath(target)
	return result
}

// moveSidecar keeps a track's .lrc lyrics file co-named with it.
func moveSidecar(log *slog.Logger, oldPath, newPath string, opts Options) {
	oldLrc := replaceExt(oldPath, ".lrc")
	if !pathExists(oldLrc) {
		return
	}
	newLrc := replaceExt(newPath, ".lrc")
	if pathExists(newLrc) {
		return
	}
	if err := os.Rename(oldLrc, newLrc); err != nil {
		log.Warn("moving lyrics sidecar failed",
			logging.String(logging.FieldPath, oldLrc),
			logging.Error(err))
	}
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

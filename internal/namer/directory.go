package namer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/textutil"
)

// Options thread the run modes through every rename decision. They are
// consulted before each mutation, never during one.
type Options struct {
	DryRun      bool
	ForceSuffix bool
}

// DirectoryResult reports one directory rename decision.
type DirectoryResult struct {
	Outcome Outcome
	OldPath string
	NewPath string
	Err     error
}

// DirectoryName derives the canonical directory name for a group, or false
// when no member supplies a usable (artist, album) pair.
func DirectoryName(group *library.Group) (string, bool) {
	artist, album, ok := electAlbum(group)
	if !ok {
		return "", false
	}
	return textutil.SanitizeFileName(fmt.Sprintf("%s - %s", artist, album)), true
}

// RenameDirectory renames the group's directory to its canonical name. The
// move is rename-or-fail: either the whole directory moves or nothing
// changes, and two directories are never merged. On success the group and its
// member paths are rebased to the new location.
func RenameDirectory(ctx context.Context, logger *slog.Logger, group *library.Group, opts Options) DirectoryResult {
	log := logging.WithContext(ctx, logger)
	result := DirectoryResult{OldPath: group.Path, NewPath: group.Path}

	name, ok := DirectoryName(group)
	if !ok {
		result.Outcome = OutcomeSkippedNoData
		log.Info("no usable artist/album tags, keeping directory name",
			logging.String(logging.FieldPath, group.Path),
			logging.String(logging.FieldOutcome, string(OutcomeSkippedNoData)))
		return result
	}

	if filepath.Base(group.Path) == name {
		result.Outcome = OutcomeAlreadyCanonical
		return result
	}

	target := filepath.Join(filepath.Dir(group.Path), name)
	if pathExists(target) {
		if !opts.ForceSuffix {
			result.Outcome = OutcomeSkippedConflict
			result.NewPath = target
			log.Warn("target directory exists, skipping rename",
				logging.String(logging.FieldPath, group.Path),
				logging.String("target", target),
				logging.String(logging.FieldOutcome, string(OutcomeSkippedConflict)))
			return result
		}
		target = suffixedPath(target, "")
	}

	result.NewPath = target
	result.Outcome = OutcomeRenamed
	log.Info("renaming directory",
		logging.String(logging.FieldPath, group.Path),
		logging.String("target", target),
		logging.Bool(logging.FieldDryRun, opts.DryRun))
	if opts.DryRun {
		return result
	}
	if err := os.Rename(group.Path, target); err != nil {
		result.Outcome = OutcomeFailed
		result.NewPath = group.Path
		result.Err = err
		return result
	}
	group.Rebase(target)
	return result
}

// suffixedPath appends " (2)", " (3)", ... before ext until the path is free.
func suffixedPath(path, ext string) string {
	base := path
	if ext != "" {
		base = path[:len(path)-len(ext)]
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if !pathExists(candidate) {
			return candidate
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

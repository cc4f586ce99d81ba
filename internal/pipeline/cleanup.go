package pipeline

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tunepress/internal/library"
	"tunepress/internal/logging"
)

// runCleanup prunes the working tree after rendering: loose files
// sitting directly in the work root, and anything inside an album
// directory that is not a pipeline output. Album directories keep
// audio, rendered videos, lyric sidecars, and the cover.
func (p *Pipeline) runCleanup(groups []*library.Group, report *Report) {
	log := p.logger.With(logging.String(logging.FieldStage, StageCleanup))

	entries, err := os.ReadDir(p.cfg.WorkRoot())
	if err != nil {
		log.Warn("could not list work root", logging.Error(err))
		report.Fail(StageCleanup, p.cfg.WorkRoot(), err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(p.cfg.WorkRoot(), entry.Name())
		if !entry.IsDir() {
			p.removeEntry(path, log, report)
			continue
		}
		if !holdsAudio(path) {
			p.removeTree(path, log, report)
		}
	}

	for _, group := range groups {
		groupEntries, err := os.ReadDir(group.Path)
		if err != nil {
			log.Warn("could not list album directory",
				logging.String(logging.FieldPath, group.Path), logging.Error(err))
			report.Fail(StageCleanup, group.Path, err)
			continue
		}
		for _, entry := range groupEntries {
			if entry.IsDir() || keepInAlbum(entry.Name()) {
				continue
			}
			p.removeEntry(filepath.Join(group.Path, entry.Name()), log, report)
		}
	}
}

func (p *Pipeline) removeEntry(path string, log *slog.Logger, report *Report) {
	if p.modes.DryRun {
		log.Info("would remove stray file",
			logging.String(logging.FieldPath, path),
			logging.Bool(logging.FieldDryRun, true))
		report.Record(StageCleanup, outcomeRemoved)
		return
	}
	if err := os.Remove(path); err != nil {
		log.Warn("could not remove stray file",
			logging.String(logging.FieldPath, path), logging.Error(err))
		report.Fail(StageCleanup, path, err)
		return
	}
	log.Info("removed stray file", logging.String(logging.FieldPath, path))
	report.Record(StageCleanup, outcomeRemoved)
}

// removeTree deletes a directory that holds no audio, such as the
// mirrored remains of normalized source directories.
func (p *Pipeline) removeTree(path string, log *slog.Logger, report *Report) {
	if p.modes.DryRun {
		log.Info("would remove non-album directory",
			logging.String(logging.FieldPath, path),
			logging.Bool(logging.FieldDryRun, true))
		report.Record(StageCleanup, outcomeRemoved)
		return
	}
	if err := os.RemoveAll(path); err != nil {
		log.Warn("could not remove non-album directory",
			logging.String(logging.FieldPath, path), logging.Error(err))
		report.Fail(StageCleanup, path, err)
		return
	}
	log.Info("removed non-album directory", logging.String(logging.FieldPath, path))
	report.Record(StageCleanup, outcomeRemoved)
}

// holdsAudio reports whether any audio file lives anywhere under dir.
func holdsAudio(dir string) bool {
	found := false
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && library.IsAudio(path) {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// keepInAlbum reports whether a file belongs in a finished album
// directory.
func keepInAlbum(name string) bool {
	if library.IsAudio(name) {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".lrc":
		return true
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.EqualFold(stem, "Cover")
}

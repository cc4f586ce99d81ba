package pipeline

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tunepress/internal/fingerprint"
	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/namer"
	"tunepress/internal/services"
	"tunepress/internal/textutil"
)

// runSync copies already-standard material from the source tree into
// the working tree: audio files, cover images, and lyric sidecars.
// Containers are not copied; the decode stage owns those. An existing
// target of the same size is assumed current; a size mismatch keeps
// the target, since the working copy may carry salvaged covers or
// later edits.
func (p *Pipeline) runSync(report *Report) {
	log := p.logger.With(logging.String(logging.FieldStage, StageSync))
	sourceRoot := p.cfg.SourceRoot()

	err := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !syncable(path) {
			return nil
		}

		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return err
		}
		if p.canonicalSynced(path) {
			report.Record(StageSync, outcomeSkippedExisting)
			return nil
		}
		target := filepath.Join(p.cfg.WorkRoot(), rel)

		sourceInfo, err := d.Info()
		if err != nil {
			return err
		}
		if targetInfo, statErr := os.Stat(target); statErr == nil {
			if targetInfo.Size() == sourceInfo.Size() {
				report.Record(StageSync, outcomeSkippedExisting)
				return nil
			}
			log.Warn("target differs in size, keeping working copy",
				logging.String(logging.FieldPath, rel),
				logging.Int("source_bytes", int(sourceInfo.Size())),
				logging.Int("target_bytes", int(targetInfo.Size())))
			report.Record(StageSync, outcomeSizeMismatch)
			return nil
		}

		if p.modes.DryRun {
			log.Info("would copy into working tree",
				logging.String(logging.FieldPath, rel),
				logging.Bool(logging.FieldDryRun, true))
			report.Record(StageSync, outcomeCopied)
			return nil
		}
		if err := copyFile(path, target); err != nil {
			log.Warn("copy failed", logging.String(logging.FieldPath, rel), logging.Error(err))
			report.Fail(StageSync, path, err)
			return nil
		}
		log.Debug("copied into working tree", logging.String(logging.FieldPath, rel))
		report.Record(StageSync, outcomeCopied)
		return nil
	})
	if err != nil {
		log.Warn("source walk failed", logging.Error(err))
		report.Fail(StageSync, sourceRoot, err)
	}
}

// canonicalSynced reports whether the file's content already lives at
// its canonical location in the working tree. A previous run's renames
// move synced files away from their mirrored paths; without this check
// every re-run would re-import the whole source tree.
func (p *Pipeline) canonicalSynced(src string) bool {
	switch {
	case library.IsAudio(src):
		target, ok := p.canonicalAudioPath(src)
		if !ok {
			return false
		}
		if _, err := os.Stat(target); err != nil {
			return false
		}
		return sameContent(src, target)
	case strings.EqualFold(filepath.Ext(src), ".lrc"):
		sibling, ok := siblingAudio(src)
		if !ok {
			return false
		}
		target, ok := p.canonicalAudioPath(sibling)
		if !ok {
			return false
		}
		lrc := strings.TrimSuffix(target, filepath.Ext(target)) + ".lrc"
		_, err := os.Stat(lrc)
		return err == nil
	default:
		sibling, ok := anyAudioIn(filepath.Dir(src))
		if !ok {
			return false
		}
		target, ok := p.canonicalAudioPath(sibling)
		if !ok {
			return false
		}
		for _, ext := range []string{".jpg", ".png", ".webp"} {
			if _, err := os.Stat(filepath.Join(filepath.Dir(target), "Cover"+ext)); err == nil {
				return true
			}
		}
		return false
	}
}

// canonicalAudioPath predicts where a previous run would have placed
// this audio file: the sanitized "artist - album" directory under the
// work root, with the zero-padded canonical filename. The prediction
// uses the single file's own tags, not a group vote; a miss only costs
// a redundant copy that in-directory dedup later collapses.
func (p *Pipeline) canonicalAudioPath(src string) (string, bool) {
	track := &library.Track{Path: src}
	t := track.Tags()
	if strings.TrimSpace(t.Artist) == "" || strings.TrimSpace(t.Album) == "" {
		return "", false
	}
	name, ok := namer.TrackFileName(track)
	if !ok {
		return "", false
	}
	dir := textutil.SanitizeFileName(t.Artist + " - " + t.Album)
	return filepath.Join(p.cfg.WorkRoot(), dir, name), true
}

// sameContent compares two files by tag-excluding fingerprint. Any
// uncertainty reads as different, which errs toward copying.
func sameContent(a, b string) bool {
	fpA, err := fingerprint.Compute(a)
	if err != nil {
		return false
	}
	fpB, err := fingerprint.Compute(b)
	if err != nil {
		return false
	}
	return fpA == fpB
}

// siblingAudio finds the audio file sharing the sidecar's stem.
func siblingAudio(sidecar string) (string, bool) {
	stem := strings.TrimSuffix(sidecar, filepath.Ext(sidecar))
	for _, ext := range []string{".mp3", ".flac", ".wav", ".m4a"} {
		if _, err := os.Stat(stem + ext); err == nil {
			return stem + ext, true
		}
	}
	return "", false
}

// anyAudioIn returns the first audio file directly inside dir.
func anyAudioIn(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() && library.IsAudio(entry.Name()) {
			return filepath.Join(dir, entry.Name()), true
		}
	}
	return "", false
}

// syncable reports whether a source file belongs in the working tree
// as-is: standard audio, a cover image, or a lyric sidecar.
func syncable(path string) bool {
	if library.IsAudio(path) {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lrc":
		return true
	case ".jpg", ".png", ".webp":
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return strings.EqualFold(stem, "Cover")
	}
	return false
}

// copyFile streams src to a new file at dst, creating parent
// directories. The copy is atomic at the file level: it lands under a
// temporary name and moves into place only when complete.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return services.Wrap(services.ErrIO, StageSync, "copy", "create target dir", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return services.Wrap(services.ErrIO, StageSync, "copy", "open source", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tunepress-copy-*")
	if err != nil {
		return services.Wrap(services.ErrIO, StageSync, "copy", "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return services.Wrap(services.ErrIO, StageSync, "copy", "stream content", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrIO, StageSync, "copy", "flush temp file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrIO, StageSync, "copy", "set permissions", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrIO, StageSync, "copy", "move into place", err)
	}
	return nil
}

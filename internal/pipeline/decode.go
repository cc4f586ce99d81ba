package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/ncm"
)

// Decode stage outcomes.
const (
	outcomeDecoded         = "Decoded"
	outcomeAlreadyDecoded  = "AlreadyDecoded"
	outcomeSkippedNoTool   = "SkippedNoDecoder"
	outcomeCopied          = "Copied"
	outcomeSkippedExisting = "SkippedExisting"
	outcomeSizeMismatch    = "KeptSizeMismatch"
	outcomeRemoved         = "Removed"
)

// runDecode converts every encrypted container under the source tree
// into the mirrored directory of the working tree. Source files are
// never deleted; a failed decode leaves the container untouched.
func (p *Pipeline) runDecode(ctx context.Context, report *Report) {
	log := p.logger.With(logging.String(logging.FieldStage, StageDecode))

	var containers []string
	err := filepath.WalkDir(p.cfg.SourceRoot(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && ncm.IsContainer(path) {
			containers = append(containers, path)
		}
		return nil
	})
	if err != nil {
		log.Warn("source walk failed", logging.Error(err))
		report.Fail(StageDecode, p.cfg.SourceRoot(), err)
		return
	}
	if len(containers) == 0 {
		return
	}
	if p.decoder == nil {
		log.Warn("containers present but no decoder available",
			logging.Int("containers", len(containers)))
		for range containers {
			report.Record(StageDecode, outcomeSkippedNoTool)
		}
		return
	}

	for _, container := range containers {
		outDir, err := p.mirrorDir(filepath.Dir(container))
		if err != nil {
			report.Fail(StageDecode, container, err)
			continue
		}
		if decodedOutputExists(container, outDir) {
			report.Record(StageDecode, outcomeAlreadyDecoded)
			continue
		}
		if p.modes.DryRun {
			log.Info("would decode container",
				logging.String(logging.FieldPath, container),
				logging.Bool(logging.FieldDryRun, true))
			report.Record(StageDecode, outcomeDecoded)
			continue
		}
		produced, err := p.decoder.Decode(ctx, container, outDir)
		if err != nil {
			log.Warn("decode failed", logging.String(logging.FieldPath, container), logging.Error(err))
			report.Fail(StageDecode, container, err)
			continue
		}
		// A previous run may have normalized this decode's output away
		// from the mirrored path. Collapse the fresh copy against its
		// canonical twin instead of letting duplicates accumulate.
		if canonical, ok := p.canonicalAudioPath(produced); ok && canonical != produced && sameContent(produced, canonical) {
			if removeErr := os.Remove(produced); removeErr != nil {
				log.Warn("could not collapse duplicate decode", logging.Error(removeErr))
			}
			report.Record(StageDecode, outcomeAlreadyDecoded)
			continue
		}
		log.Info("decoded container",
			logging.String(logging.FieldPath, container),
			logging.String("output", produced))
		report.Record(StageDecode, outcomeDecoded)
	}
}

// mirrorDir maps a source-tree directory to its working-tree twin.
func (p *Pipeline) mirrorDir(sourceDir string) (string, error) {
	rel, err := filepath.Rel(p.cfg.SourceRoot(), sourceDir)
	if err != nil {
		return "", err
	}
	target := filepath.Join(p.cfg.WorkRoot(), rel)
	if p.modes.DryRun {
		return target, nil
	}
	return target, os.MkdirAll(target, 0o755)
}

// decodedOutputExists reports whether the container was already decoded
// into outDir on a previous run.
func decodedOutputExists(container, outDir string) bool {
	base := filepath.Base(container)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() || !library.IsAudio(entry.Name()) {
			continue
		}
		name := entry.Name()
		if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), stem) {
			return true
		}
	}
	return false
}

// Package cover resolves one album cover image per album directory,
// trying progressively more expensive sources until one yields a
// decodable image.
package cover

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"tunepress/internal/library"
	"tunepress/internal/logging"
	"tunepress/internal/services"
	"tunepress/internal/services/command"
	"tunepress/internal/tags"
)

// Outcome classifies how a cover was (or was not) resolved.
type Outcome string

const (
	OutcomeAlreadyPresent   Outcome = "AlreadyPresent"
	OutcomeExtractedFromTag Outcome = "ExtractedFromTag"
	OutcomeFetchedRemote    Outcome = "FetchedRemote"
	OutcomeRepairedCorrupt  Outcome = "RepairedCorrupt"
	OutcomeUnresolved       Outcome = "Unresolved"
)

// coverBase is the filename stem shared by every cover candidate.
const coverBase = "Cover"

// coverExtensions lists candidate extensions in preference order.
var coverExtensions = []string{".jpg", ".png", ".webp"}

// repairTimeout bounds the ffmpeg re-encode used to salvage a corrupt
// cover file.
const repairTimeout = 60 * time.Second

// Lookup fetches cover art from a remote catalog. Implementations
// return lookup.ErrNotFound when the release has no art.
type Lookup interface {
	FetchAlbumCover(ctx context.Context, artist, album string) ([]byte, error)
}

// Options control side effects during resolution.
type Options struct {
	// DryRun reports the outcome each group would get without writing
	// or deleting anything. The remote lookup still runs so the
	// reported outcome matches a live run; a fetch is read-only.
	DryRun bool
}

// Result reports the outcome for one album directory.
type Result struct {
	Outcome Outcome
	// Path is the resolved cover file, empty when Unresolved. In a dry
	// run it names the file a live run would have written.
	Path string
}

// Resolver walks the fallback chain for album cover art.
type Resolver struct {
	logger *slog.Logger
	ffmpeg string
	runner command.Runner
	lookup Lookup
}

// NewResolver builds a Resolver. lookup may be nil to disable remote
// fetching; runner may be nil to disable ffmpeg repair.
func NewResolver(logger *slog.Logger, ffmpeg string, runner command.Runner, lookup Lookup) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{logger: logger, ffmpeg: ffmpeg, runner: runner, lookup: lookup}
}

// Resolve finds or produces a valid cover image for the group's
// directory. artist and album feed the remote lookup and may be empty,
// which skips that rung of the chain.
func (r *Resolver) Resolve(ctx context.Context, group *library.Group, artist, album string, opts Options) (Result, error) {
	log := r.logger.With(logging.FieldPath, group.Path)

	existing, corrupt := r.findExisting(group.Path)
	if existing != "" {
		log.Debug("cover already present", logging.String("cover", filepath.Base(existing)))
		return Result{Outcome: OutcomeAlreadyPresent, Path: existing}, nil
	}
	repaired := func(o Outcome) Outcome {
		if corrupt != "" {
			return OutcomeRepairedCorrupt
		}
		return o
	}

	if data, ok := r.extractEmbedded(group); ok {
		path, err := r.install(group.Path, data, opts)
		if err != nil {
			return Result{Outcome: OutcomeUnresolved}, err
		}
		log.Info("cover extracted from tag", logging.String("cover", filepath.Base(path)))
		return Result{Outcome: repaired(OutcomeExtractedFromTag), Path: path}, nil
	}

	if r.lookup != nil && album != "" {
		data, err := r.lookup.FetchAlbumCover(ctx, artist, album)
		switch {
		case err == nil:
			if _, _, decodeErr := image.Decode(bytes.NewReader(data)); decodeErr == nil {
				path, err := r.install(group.Path, data, opts)
				if err != nil {
					return Result{Outcome: OutcomeUnresolved}, err
				}
				if !opts.DryRun {
					r.writeBack(group, data, log)
				}
				log.Info("cover fetched from catalog", logging.String("cover", filepath.Base(path)))
				return Result{Outcome: repaired(OutcomeFetchedRemote), Path: path}, nil
			}
			log.Warn("fetched cover not decodable, discarding")
		case ctx.Err() != nil:
			// The run itself was cancelled or timed out. A per-request
			// network timeout reaches the default branch and falls
			// through the chain instead.
			return Result{Outcome: OutcomeUnresolved}, err
		default:
			log.Warn("cover lookup failed", logging.Error(err))
		}
	}

	if corrupt != "" {
		if path, ok := r.repair(ctx, corrupt, opts, log); ok {
			return Result{Outcome: OutcomeRepairedCorrupt, Path: path}, nil
		}
	}

	log.Warn("cover unresolved")
	return Result{Outcome: OutcomeUnresolved}, nil
}

// findExisting returns the first valid Cover.* candidate, and
// separately the first invalid one so the chain can repair it later.
func (r *Resolver) findExisting(dir string) (valid, corrupt string) {
	for _, ext := range coverExtensions {
		path := filepath.Join(dir, coverBase+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if validImage(path) {
			if valid == "" {
				valid = path
			}
		} else if corrupt == "" {
			corrupt = path
		}
	}
	return valid, corrupt
}

// extractEmbedded returns the first decodable APIC payload scanning the
// group's tracks in order.
func (r *Resolver) extractEmbedded(group *library.Group) ([]byte, bool) {
	for _, track := range group.Tracks {
		data, ok := tags.ExtractCover(track.Path)
		if !ok {
			continue
		}
		if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
			continue
		}
		return data, true
	}
	return nil, false
}

// maxCoverEdge caps the longer edge of an installed cover. Oversized
// art from tags or the archive is scaled down before it hits disk.
const maxCoverEdge = 1600

// install writes the cover under the extension matching its content and
// removes stale candidates with other extensions. A corrupt file with
// the same extension is overwritten in place.
func (r *Resolver) install(dir string, data []byte, opts Options) (string, error) {
	data = downscale(data)
	ext := sniffExtension(data)
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(dir, coverBase+ext)
	if opts.DryRun {
		return path, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrIO, "cover", "install", "write cover file", err)
	}
	for _, staleExt := range coverExtensions {
		if staleExt == ext {
			continue
		}
		stale := filepath.Join(dir, coverBase+staleExt)
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("could not remove stale cover", logging.String("path", stale), logging.Error(err))
		}
	}
	return path, nil
}

// writeBack embeds fetched art into tracks that lack an APIC frame so
// the cover travels with the files.
func (r *Resolver) writeBack(group *library.Group, data []byte, log *slog.Logger) {
	mime := sniffMIME(data)
	if mime == "" {
		return
	}
	for _, track := range group.Tracks {
		if !strings.EqualFold(filepath.Ext(track.Path), ".mp3") {
			continue
		}
		if tags.HasEmbeddedCover(track.Path) {
			continue
		}
		if err := tags.WriteCover(track.Path, data, mime); err != nil {
			log.Warn("cover write-back failed",
				logging.String("track", filepath.Base(track.Path)), logging.Error(err))
		}
	}
}

// repair re-encodes a corrupt cover through ffmpeg. Many files with
// damaged headers still carry a recoverable image stream.
func (r *Resolver) repair(ctx context.Context, corrupt string, opts Options, log *slog.Logger) (string, bool) {
	if r.runner == nil || r.ffmpeg == "" || opts.DryRun {
		return "", false
	}
	fixed := strings.TrimSuffix(corrupt, filepath.Ext(corrupt)) + "_fixed.jpg"
	args := []string{
		"-hide_banner", "-y",
		"-i", command.SubprocessPath(corrupt),
		"-q:v", "2",
		command.SubprocessPath(fixed),
	}
	result, err := r.runner.Run(ctx, r.ffmpeg, args, repairTimeout)
	if err != nil || result.ExitCode != 0 {
		log.Warn("cover repair failed", logging.Int("exit_code", result.ExitCode), logging.Error(err))
		os.Remove(fixed)
		return "", false
	}
	if !validImage(fixed) {
		os.Remove(fixed)
		return "", false
	}
	target := strings.TrimSuffix(corrupt, filepath.Ext(corrupt)) + ".jpg"
	if err := os.Remove(corrupt); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove corrupt cover", logging.Error(err))
	}
	if err := os.Rename(fixed, target); err != nil {
		log.Warn("could not move repaired cover", logging.Error(err))
		os.Remove(fixed)
		return "", false
	}
	log.Info("cover repaired", logging.String("cover", filepath.Base(target)))
	return target, true
}

// downscale re-encodes covers whose longer edge exceeds maxCoverEdge as
// a smaller JPEG. Anything already in bounds (or undecodable) passes
// through untouched.
func downscale(data []byte) []byte {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	edge := w
	if h > edge {
		edge = h
	}
	if edge <= maxCoverEdge {
		return data
	}
	scale := float64(maxCoverEdge) / float64(edge)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return data
	}
	return buf.Bytes()
}

// validImage reports whether the file decodes as a real image with
// non-empty bounds.
func validImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return false
	}
	return cfg.Width > 0 && cfg.Height > 0
}

// sniffExtension maps the image's leading bytes to a file extension.
func sniffExtension(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return ".jpg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return ".png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return ".webp"
	}
	return ""
}

func sniffMIME(data []byte) string {
	switch sniffExtension(data) {
	case ".jpg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return ""
}

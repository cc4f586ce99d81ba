package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"tunepress/internal/config"
	"tunepress/internal/deps"
	"tunepress/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// AccessCheck selects how directory writability is verified.
type AccessCheck int

const (
	// WriteProbe creates and removes a throwaway file in the directory.
	WriteProbe AccessCheck = iota
	// InspectOnly trusts the permission bits. Dry runs use it: the
	// probe file would change the directory's mtime.
	InspectOnly
)

// RunAll executes all preflight checks for the given config. The
// decoder check is optional: a library without encrypted containers
// never needs it.
func RunAll(ctx context.Context, cfg *config.Config, access AccessCheck) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Library root", cfg.Paths.Root, access),
		CheckDirectoryAccess("Source directory", cfg.SourceRoot(), access),
		checkWorkDirectory(cfg.WorkRoot(), access),
	}

	for _, status := range deps.CheckBinaries([]deps.Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Required for video rendering"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "Required for output validation"},
	}) {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available,
			Detail: statusDetail(status),
		})
	}

	decoderStatus := deps.FindDecoder(cfg.Tools.Decoder, cfg.Paths.Root)
	results = append(results, Result{
		Name:     decoderStatus.Name,
		Passed:   decoderStatus.Available,
		Optional: true,
		Detail:   statusDetail(decoderStatus),
	})

	return results
}

// Ensure converts failed required checks into a configuration error,
// which is the only error class that aborts a run before any mutation.
func Ensure(results []Result) error {
	var failed []string
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "ensure",
		strings.Join(failed, "; "), nil)
}

// CheckDirectoryAccess verifies that the directory exists, is a
// directory, and is writable.
func CheckDirectoryAccess(name, path string, access AccessCheck) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := writable(path, info.Mode(), access); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// checkWorkDirectory passes for a missing work directory: the pipeline
// creates it on first run.
func checkWorkDirectory(path string, access AccessCheck) Result {
	const name = "Work directory"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
	}
	return CheckDirectoryAccess(name, path, access)
}

// writable probes the directory with a throwaway file, which works the
// same on every platform unlike an access(2) bit check. InspectOnly
// settles for the owner-write bit.
func writable(dir string, mode os.FileMode, access AccessCheck) error {
	if access == InspectOnly {
		if mode.Perm()&0o200 == 0 {
			return fmt.Errorf("directory is not owner-writable")
		}
		return nil
	}
	probe, err := os.CreateTemp(dir, ".tunepress-preflight-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

func statusDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	if status.Detail != "" {
		return status.Detail
	}
	return "not found"
}

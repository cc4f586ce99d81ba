package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// decoderName is the Unlock Music CLI binary searched for when no decoder
// command is configured.
const decoderName = "um"

// FindDecoder resolves the encrypted-container decoder. A configured command
// wins; otherwise tools/ under the project root is preferred over PATH so a
// bundled binary beats a stale system install.
func FindDecoder(configured, root string) Status {
	result := Status{
		Name:        "Decoder",
		Description: "Converts encrypted audio containers to standard audio",
	}

	if cmd := strings.TrimSpace(configured); cmd != "" {
		result.Command = cmd
		if resolved, err := exec.LookPath(cmd); err == nil {
			result.Command = resolved
			result.Available = usableBinary(resolved, &result)
			return result
		}
		if usableBinary(cmd, &result) {
			result.Available = true
			return result
		}
		if result.Detail == "" {
			result.Detail = fmt.Sprintf("configured decoder %q not found", cmd)
		}
		return result
	}

	name := decoderName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	for _, candidate := range []string{
		filepath.Join(root, "tools", name),
		filepath.Join(root, name),
	} {
		if usableBinary(candidate, &result) {
			result.Command = candidate
			result.Available = true
			return result
		}
	}

	if resolved, err := exec.LookPath(decoderName); err == nil {
		result.Command = resolved
		result.Available = usableBinary(resolved, &result)
		return result
	}

	result.Command = decoderName
	if result.Detail == "" {
		result.Detail = fmt.Sprintf("binary %q not found in tools/ or PATH", decoderName)
	}
	return result
}

// usableBinary rejects missing, directory, or zero-byte candidates. A
// zero-byte decoder is a common symptom of an interrupted download and would
// otherwise fail every conversion.
func usableBinary(path string, status *Status) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if info.Size() == 0 {
		status.Detail = fmt.Sprintf("decoder %q is empty (0 bytes)", path)
		return false
	}
	return true
}

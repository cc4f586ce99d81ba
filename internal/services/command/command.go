package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Result captures the outcome of one external tool invocation.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
}

// Runner executes a binary with arguments, bounded by timeout. Implementations
// must treat timeout expiry as the tool's failure, reported via
// Result.TimedOut, not as a caller error.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, timeout time.Duration) (Result, error)
}

// Executor is the production Runner backed by os/exec.
type Executor struct{}

// Run invokes the binary and waits for completion. The returned error is nil
// for a zero exit; a non-zero exit or timeout fills Result and returns the
// underlying exec error so callers can wrap it with their own classification.
func (Executor) Run(ctx context.Context, binary string, args []string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, runCtx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		return res, err
	}
	return res, nil
}

// Decode converts external tool output into a string, tolerating the GBK
// bytes that ffmpeg and the container decoder emit on zh-CN Windows. Valid
// UTF-8 passes through; GBK is tried next; anything else keeps replacement
// runes.
func Decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	if decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), raw); err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// CombinedOutput renders stdout and stderr as one trimmed, decoded string for
// log messages.
func (r Result) CombinedOutput() string {
	out := strings.TrimSpace(Decode(r.Stdout))
	errOut := strings.TrimSpace(Decode(r.Stderr))
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

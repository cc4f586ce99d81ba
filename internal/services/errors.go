package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying stage failures. No class aborts the run; the
// orchestrator records the outcome and continues with the next item.
var (
	// ErrIO marks an unreadable or unwritable path.
	ErrIO = errors.New("io failure")
	// ErrExternalTool marks a non-zero exit from an external tool.
	ErrExternalTool = errors.New("external tool error")
	// ErrTimeout marks an external tool exceeding its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrConflict marks a target name already taken by unrelated content.
	ErrConflict = errors.New("naming conflict")
	// ErrDataAbsent marks an item without usable tags; never guessed around.
	ErrDataAbsent = errors.New("no usable data")
	// ErrConfiguration marks pre-flight problems that abort before any mutation.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err should abort the run before any mutation. Only
// configuration problems qualify; everything else is a per-item outcome.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

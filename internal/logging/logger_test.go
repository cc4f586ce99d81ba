package logging_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tunepress/internal/logging"
	"tunepress/internal/services"
)

func TestNewConsoleWritesComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", ConsoleOut: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.With(logging.String(logging.FieldComponent, "cover-resolver")).
		Info("cover extracted", logging.String(logging.FieldOutcome, "ExtractedFromTag"))

	out := buf.String()
	if !strings.Contains(out, "[cover-resolver]") {
		t.Fatalf("component missing from %q", out)
	}
	if !strings.Contains(out, "outcome=ExtractedFromTag") {
		t.Fatalf("attr missing from %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", LogDir: dir, ConsoleOut: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, "tunepress.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log file missing record: %q", string(data))
	}
}

func TestWithContextAttachesRunFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", ConsoleOut: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithStage(ctx, "file-namer")

	logging.WithContext(ctx, logger).Info("renamed")
	out := buf.String()
	if !strings.Contains(out, "run_id=run-1") || !strings.Contains(out, "stage=file-namer") {
		t.Fatalf("context fields missing from %q", out)
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	logger.Info("must not panic")
}

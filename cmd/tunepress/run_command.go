package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tunepress/internal/logging"
	"tunepress/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var modes pipeline.Modes

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Normalize the library and render cover videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, modes)
		},
	}

	cmd.Flags().BoolVar(&modes.DryRun, "dry-run", false, "Report planned changes without touching any file")
	cmd.Flags().BoolVar(&modes.SkipConvert, "skip-convert", false, "Leave encrypted containers alone; process only decoded files")
	cmd.Flags().BoolVar(&modes.ForceCPU, "no-gpu", false, "Encode on the CPU even when a hardware encoder is configured")
	cmd.Flags().BoolVar(&modes.Overwrite, "overwrite", false, "Re-render videos whose output already exists")
	cmd.Flags().BoolVar(&modes.ForceRename, "force-rename", false, "Resolve naming conflicts with a numeric suffix instead of skipping")

	return cmd
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, modes pipeline.Modes) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		LogDir:     cfg.Paths.LogDir,
		ConsoleOut: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	// One live run per library. Dry runs mutate nothing and may observe
	// a concurrent run mid-flight without harm.
	if !modes.DryRun {
		release, err := acquireRunLock(cfg.Paths.Root)
		if err != nil {
			return err
		}
		defer release()
	}

	runID := uuid.NewString()
	report, runErr := pipeline.New(logger, cfg, modes).Run(signalCtx, runID)

	out := cmd.OutOrStdout()
	renderSummary(out, report)
	if runErr != nil {
		return runErr
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d item(s) failed; see the log for details", len(report.Failures))
	}
	return nil
}

// acquireRunLock guards the library root against concurrent live runs.
func acquireRunLock(root string) (func(), error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("library root: %w", err)
	}
	lock := flock.New(filepath.Join(root, ".tunepress.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another tunepress run is already in progress")
	}
	return func() { _ = lock.Unlock() }, nil
}

func renderSummary(out io.Writer, report *pipeline.Report) {
	if report == nil {
		return
	}

	rows := report.Rows()
	if len(rows) == 0 {
		fmt.Fprintln(out, "Nothing to do")
		return
	}

	tableRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		tableRows = append(tableRows, []string{row.Stage, row.Outcome, strconv.Itoa(row.Count)})
	}

	if report.DryRun {
		fmt.Fprintln(out, "Dry run; no changes were made")
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Outcome", "Count"},
		tableRows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	))

	for _, failure := range report.Failures {
		fmt.Fprintf(out, "failed %s: %s: %v\n", failure.Stage, failure.Path, failure.Err)
	}
	fmt.Fprintf(out, "Run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
}

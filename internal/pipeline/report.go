package pipeline

import (
	"sort"
	"time"
)

// Stage names in execution order.
const (
	StageDecode      = "decode"
	StageSync        = "sync"
	StageDirectories = "directories"
	StageFiles       = "files"
	StageCovers      = "covers"
	StageRender      = "render"
	StageCleanup     = "cleanup"
)

var stageOrder = []string{
	StageDecode, StageSync, StageDirectories, StageFiles,
	StageCovers, StageRender, StageCleanup,
}

// Failure records one non-fatal per-item error for the summary.
type Failure struct {
	Stage string
	Path  string
	Err   error
}

// Report accumulates per-stage outcome counts across one run.
type Report struct {
	RunID    string
	DryRun   bool
	Started  time.Time
	Duration time.Duration

	counts   map[string]map[string]int
	Failures []Failure
}

// NewReport starts an empty report.
func NewReport(runID string, dryRun bool) *Report {
	return &Report{
		RunID:   runID,
		DryRun:  dryRun,
		Started: time.Now(),
		counts:  map[string]map[string]int{},
	}
}

// Record counts one outcome for a stage.
func (r *Report) Record(stage, outcome string) {
	byOutcome, ok := r.counts[stage]
	if !ok {
		byOutcome = map[string]int{}
		r.counts[stage] = byOutcome
	}
	byOutcome[outcome]++
}

// Fail counts a failure outcome and remembers its detail.
func (r *Report) Fail(stage, path string, err error) {
	r.Record(stage, "Failed")
	r.Failures = append(r.Failures, Failure{Stage: stage, Path: path, Err: err})
}

// Row is one summary line: a stage, an outcome, and its count.
type Row struct {
	Stage   string
	Outcome string
	Count   int
}

// Rows returns the counts in stage order with outcomes sorted by name,
// ready for tabular presentation.
func (r *Report) Rows() []Row {
	var rows []Row
	for _, stage := range stageOrder {
		byOutcome, ok := r.counts[stage]
		if !ok {
			continue
		}
		outcomes := make([]string, 0, len(byOutcome))
		for outcome := range byOutcome {
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)
		for _, outcome := range outcomes {
			rows = append(rows, Row{Stage: stage, Outcome: outcome, Count: byOutcome[outcome]})
		}
	}
	return rows
}

// Count returns the tally for one stage/outcome pair.
func (r *Report) Count(stage, outcome string) int {
	return r.counts[stage][outcome]
}

package namer

// Outcome tags the result of one rename decision. Every mutation or would-be
// mutation reports exactly one outcome; there are no silent no-ops.
type Outcome string

const (
	// OutcomeRenamed reports a performed (or dry-run intended) rename.
	OutcomeRenamed Outcome = "Renamed"
	// OutcomeAlreadyCanonical reports a name that needed no change.
	OutcomeAlreadyCanonical Outcome = "AlreadyCanonical"
	// OutcomeSkippedConflict reports a target taken by different content.
	OutcomeSkippedConflict Outcome = "SkippedConflict"
	// OutcomeSkippedNoData reports insufficient tags to derive a name.
	OutcomeSkippedNoData Outcome = "SkippedNoData"
	// OutcomeDeduplicatedRemoved reports a duplicate collapsed into the
	// canonical copy.
	OutcomeDeduplicatedRemoved Outcome = "DeduplicatedRemoved"
	// OutcomeFailed reports an IO error during the rename itself.
	OutcomeFailed Outcome = "Failed"
)

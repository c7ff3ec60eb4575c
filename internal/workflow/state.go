package workflow

// Phase is the lifecycle position of one asset inside the porting workflow.
type Phase string

const (
	PhasePending      Phase = "PENDING"
	PhaseReviewedOK   Phase = "REVIEWED_OK"
	PhaseReviewedFail Phase = "REVIEWED_FAIL"
	PhaseVerifiedOK   Phase = "VERIFIED_OK"
	PhaseVerifiedFail Phase = "VERIFIED_FAIL"
	PhaseFailed       Phase = "FAILED_TERMINAL"
)

// Terminal reports whether the phase ends the workflow for an asset.
func (p Phase) Terminal() bool {
	return p == PhaseVerifiedOK || p == PhaseFailed
}

// ExecutionStats carries the audit counts from the most recent verification
// attempt.
type ExecutionStats struct {
	ExecutedCount     int
	SkippedStatements []string
}

// MigrationState is the full per-asset state threaded through the controller.
// It is owned exclusively by one RunAsset call: transition functions receive
// it by value and return the updated copy, so nothing is shared between
// assets or workers.
type MigrationState struct {
	// Identifier is an opaque handle to the asset, typically its file path.
	Identifier string
	// SourceText is the original SQL; it is never modified.
	SourceText string
	// TargetText is the current best candidate in the target dialect.
	TargetText string

	Phase      Phase
	RetryCount int
	// LastError holds the diagnostic from the most recent failed review or
	// verification.
	LastError string

	// ContextDocument caches the schema context; it is computed at most once
	// per asset, on the first corrective pass.
	ContextDocument string
	// ContextComputed distinguishes "not yet built" from "built but empty".
	ContextComputed bool

	// ReferencedSchemas is the set of schema names the dependency analyzer
	// discovered in the source script.
	ReferencedSchemas []string

	Stats ExecutionStats
}

// NewState creates the initial state for one asset entering processing.
func NewState(identifier, sourceText string) MigrationState {
	return MigrationState{
		Identifier: identifier,
		SourceText: sourceText,
		Phase:      PhasePending,
	}
}

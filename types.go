package sqlport

import (
	"github.com/sqlport/sqlport/internal/batch"
	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/metastore"
	"github.com/sqlport/sqlport/internal/rag"
	"github.com/sqlport/sqlport/internal/verifier"
	"github.com/sqlport/sqlport/internal/workflow"
)

// Re-export important types for external consumption

// Config is the full project configuration.
type Config = config.Config

// MigrationState is the per-script workflow state, including its terminal
// phase, retry count, and last diagnostic.
type MigrationState = workflow.MigrationState

// Phase is a workflow lifecycle phase.
type Phase = workflow.Phase

// Terminal and non-terminal workflow phases.
const (
	PhasePending      = workflow.PhasePending
	PhaseVerifiedOK   = workflow.PhaseVerifiedOK
	PhaseVerifiedFail = workflow.PhaseVerifiedFail
	PhaseFailed       = workflow.PhaseFailed
)

// VerifyResult is the outcome of executing a script against the target
// database.
type VerifyResult = verifier.Result

// VerificationPolicy controls which statement categories may execute.
type VerificationPolicy = verifier.Policy

// SchemaContext is the rendered schema context document plus the reference
// sets it was built from.
type SchemaContext = rag.Result

// Summary aggregates one batch porting run.
type Summary = batch.Summary

// AssetResult is the outcome for one asset in a batch run.
type AssetResult = batch.Result

// SchemaObject is one stored source-database object definition.
type SchemaObject = metastore.SchemaObject

// SourceAsset is one registered source SQL file.
type SourceAsset = metastore.SourceAsset

// RenderedOutput is the stored target SQL for one asset.
type RenderedOutput = metastore.RenderedOutput

package workflow

import (
	"context"

	"github.com/sqlport/sqlport/internal/rag"
	"github.com/sqlport/sqlport/internal/verifier"
)

// The controller sequences four external services plus the verifier. Each is
// injected as an interface so the state machine can be exercised with fakes.

// Transpiler converts a script from the source dialect to the target dialect.
// A returned error means the source could not be understood at all; the
// controller treats that as terminal and never retries it.
type Transpiler interface {
	Transpile(ctx context.Context, sqlText, sourceDialect, targetDialect string) (string, error)
}

// Verdict is the outcome of one review pass.
type Verdict struct {
	Passed    bool
	Rationale string
}

// Reviewer judges a candidate script before it is allowed near the database.
type Reviewer interface {
	Review(ctx context.Context, candidateSQL string) (Verdict, error)
}

// Rewriter produces a corrected candidate from the schema context, the
// current candidate, and the last diagnostic. The returned text is free-form
// and may contain fenced markup; the controller strips and re-normalizes it.
type Rewriter interface {
	Rewrite(ctx context.Context, contextDoc, currentSQL, lastError string) (string, error)
}

// ContextSource builds the schema context document for a script.
// *rag.Builder satisfies it.
type ContextSource interface {
	Build(ctx context.Context, sqlScript string) (rag.Result, error)
}

// ScriptVerifier executes a candidate against the target database in
// rollback mode. *verifier.Verifier satisfies it via its Verify method.
type ScriptVerifier interface {
	Verify(ctx context.Context, script string) verifier.Result
}

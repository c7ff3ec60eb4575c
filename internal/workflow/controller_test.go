package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlport/sqlport/internal/rag"
	"github.com/sqlport/sqlport/internal/verifier"
)

type fakeTranspiler struct {
	out   string
	err   error
	calls int
}

func (f *fakeTranspiler) Transpile(_ context.Context, sqlText, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return sqlText, nil
}

type scriptedReviewer struct {
	verdicts []Verdict
	err      error
	calls    int
}

func (f *scriptedReviewer) Review(context.Context, string) (Verdict, error) {
	f.calls++
	if f.err != nil {
		return Verdict{}, f.err
	}
	if len(f.verdicts) == 0 {
		return Verdict{Passed: true}, nil
	}
	v := f.verdicts[0]
	if len(f.verdicts) > 1 {
		f.verdicts = f.verdicts[1:]
	}
	return v, nil
}

type fakeRewriter struct {
	out         string
	err         error
	calls       int
	gotContexts []string
	gotErrors   []string
}

func (f *fakeRewriter) Rewrite(_ context.Context, contextDoc, currentSQL, lastError string) (string, error) {
	f.calls++
	f.gotContexts = append(f.gotContexts, contextDoc)
	f.gotErrors = append(f.gotErrors, lastError)
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return currentSQL, nil
}

type fakeContextSource struct {
	res   rag.Result
	err   error
	calls int
}

func (f *fakeContextSource) Build(context.Context, string) (rag.Result, error) {
	f.calls++
	return f.res, f.err
}

type scriptedVerifier struct {
	results []verifier.Result
	calls   int
}

func (f *scriptedVerifier) Verify(context.Context, string) verifier.Result {
	f.calls++
	if len(f.results) == 0 {
		return verifier.Result{Success: true}
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r
}

func newTestController(t *testing.T, tr Transpiler, rev Reviewer, rw Rewriter, cs ContextSource, v ScriptVerifier, maxRetries int) *Controller {
	t.Helper()
	return NewController(tr, rev, rw, cs, v, Config{
		SourceDialect: "oracle",
		TargetDialect: "postgres",
		MaxRetries:    maxRetries,
	}, nil)
}

func TestRunAssetHappyPath(t *testing.T) {
	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{}
	rw := &fakeRewriter{}
	cs := &fakeContextSource{}
	v := &scriptedVerifier{results: []verifier.Result{{
		Success:           true,
		ExecutedCount:     2,
		SkippedStatements: []string{"DROP TABLE old"},
	}}}

	final := newTestController(t, tr, rev, rw, cs, v, 3).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, PhaseVerifiedOK, final.Phase)
	assert.Empty(t, final.LastError)
	assert.Equal(t, 0, final.RetryCount)
	assert.Equal(t, 2, final.Stats.ExecutedCount)
	assert.Equal(t, []string{"DROP TABLE old"}, final.Stats.SkippedStatements)
	// Context is lazy: a run without corrections never builds it.
	assert.Equal(t, 0, cs.calls)
	assert.Equal(t, 0, rw.calls)
}

func TestRunAssetTranspileFailureIsTerminal(t *testing.T) {
	tr := &fakeTranspiler{err: errors.New("syntax error at line 3")}
	rev := &scriptedReviewer{}
	rw := &fakeRewriter{}
	v := &scriptedVerifier{}

	final := newTestController(t, tr, rev, rw, &fakeContextSource{}, v, 3).
		RunAsset(context.Background(), NewState("a.sql", "GARBAGE"))

	assert.Equal(t, PhaseFailed, final.Phase)
	assert.Contains(t, final.LastError, "syntax error")
	assert.Equal(t, 0, final.RetryCount, "transpile errors are not retried")
	assert.Equal(t, 0, rev.calls)
	assert.Equal(t, 0, rw.calls)
}

func TestRunAssetBoundedRetryTermination(t *testing.T) {
	const maxRetries = 3

	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Passed: false, Rationale: "bad cast"}}}
	rw := &fakeRewriter{}
	cs := &fakeContextSource{}
	v := &scriptedVerifier{}

	final := newTestController(t, tr, rev, rw, cs, v, maxRetries).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, PhaseFailed, final.Phase)
	assert.Equal(t, maxRetries, final.RetryCount)
	assert.Equal(t, maxRetries, rw.calls, "exactly maxRetries corrective attempts, never one more")
	assert.Equal(t, 0, v.calls, "a candidate that never passes review never reaches the database")
	assert.Contains(t, final.LastError, "Max retries (3) exceeded")
	assert.Contains(t, final.LastError, "bad cast")
}

func TestRunAssetVerifyFailureThenRecovery(t *testing.T) {
	diag := `Statement #2 failed: relation "missing" does not exist | SQL: SELECT * FROM missing`

	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{} // always passes
	rw := &fakeRewriter{out: "SELECT 1;"}
	cs := &fakeContextSource{res: rag.Result{Text: "-- schema --", Schemas: []string{"hr"}}}
	v := &scriptedVerifier{results: []verifier.Result{
		{Success: false, Error: diag},
		{Success: true, ExecutedCount: 1},
	}}

	final := newTestController(t, tr, rev, rw, cs, v, 3).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, PhaseVerifiedOK, final.Phase)
	assert.Equal(t, 1, final.RetryCount)
	require.Len(t, rw.gotErrors, 1)
	assert.Equal(t, diag, rw.gotErrors[0], "verification diagnostic is passed to the rewriter")
	assert.Equal(t, "-- schema --", rw.gotContexts[0])
	assert.Equal(t, []string{"hr"}, final.ReferencedSchemas)
}

func TestContextBuiltOnceAcrossCorrections(t *testing.T) {
	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Passed: false, Rationale: "nope"}}}
	rw := &fakeRewriter{}
	cs := &fakeContextSource{res: rag.Result{Text: "ctx"}}

	final := newTestController(t, tr, rev, rw, cs, &scriptedVerifier{}, 4).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, PhaseFailed, final.Phase)
	assert.Equal(t, 4, rw.calls)
	assert.Equal(t, 1, cs.calls, "context is computed at most once per asset")
	for _, got := range rw.gotContexts {
		assert.Equal(t, "ctx", got)
	}
}

func TestContextFailureIsNonFatal(t *testing.T) {
	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Passed: false, Rationale: "nope"}, {Passed: true}}}
	rw := &fakeRewriter{out: "SELECT 1;"}
	cs := &fakeContextSource{err: errors.New("metadata store offline")}

	final := newTestController(t, tr, rev, rw, cs, &scriptedVerifier{}, 3).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, PhaseVerifiedOK, final.Phase)
	require.Len(t, rw.gotContexts, 1)
	assert.Empty(t, rw.gotContexts[0], "rewrite proceeds without schema hints")
}

func TestCorrectionNormalizesRewrittenOutput(t *testing.T) {
	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Passed: false, Rationale: "style"}, {Passed: true}}}
	rw := &fakeRewriter{out: "```sql\nSELECT    1;\n```"}

	final := newTestController(t, tr, rev, rw, &fakeContextSource{}, &scriptedVerifier{}, 3).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, PhaseVerifiedOK, final.Phase)
	assert.NotContains(t, final.TargetText, "```")
	assert.Equal(t, "SELECT 1;", final.TargetText, "re-parse canonicalizes formatting")
}

func TestCorrectionKeepsRawTextWhenReparseFails(t *testing.T) {
	raw := "SELEC 1 FROM"

	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Passed: false, Rationale: "style"}, {Passed: true}}}
	rw := &fakeRewriter{out: "```sql\n" + raw + "\n```"}

	final := newTestController(t, tr, rev, rw, &fakeContextSource{}, &scriptedVerifier{}, 3).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, raw, final.TargetText, "unparsable rewrite output is kept stripped but otherwise raw")
	assert.Equal(t, PhaseVerifiedOK, final.Phase, "the attempt itself is not aborted")
}

func TestRewriteServiceErrorStillTerminates(t *testing.T) {
	tr := &fakeTranspiler{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Passed: false, Rationale: "nope"}}}
	rw := &fakeRewriter{err: errors.New("model unavailable")}

	final := newTestController(t, tr, rev, rw, &fakeContextSource{}, &scriptedVerifier{}, 2).
		RunAsset(context.Background(), NewState("a.sql", "SELECT 1"))

	assert.Equal(t, PhaseFailed, final.Phase)
	assert.Equal(t, 2, final.RetryCount)
	assert.Contains(t, final.LastError, "model unavailable")
}

func TestTerminalMessageAvoidsDuplicateNotice(t *testing.T) {
	msg := terminalMessage("review service error: max retries budget burned", 3)
	if strings.Count(strings.ToLower(msg), "max retries") != 1 {
		t.Errorf("expected a single max-retries notice, got %q", msg)
	}

	msg = terminalMessage("bad cast", 3)
	assert.Contains(t, msg, "Max retries (3) exceeded")
	assert.Contains(t, msg, "bad cast")

	assert.Equal(t, "Max retries (5) exceeded", terminalMessage("", 5))
}

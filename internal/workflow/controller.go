// Package workflow drives one SQL asset through transpilation, review,
// safety-gated verification, and corrective rewriting, bounded by a maximum
// retry count. The controller is a plain state machine over MigrationState;
// every external call is caught at its transition boundary and folded into
// the state, so a failing collaborator can never abort a run uncleanly.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Config bounds and parameterizes the controller.
type Config struct {
	SourceDialect string
	TargetDialect string
	// MaxRetries caps corrective rewrite attempts per asset. Must be >= 1.
	MaxRetries int
}

// Controller sequences the porting workflow for single assets. It holds no
// per-asset state and is safe to share across workers; each RunAsset call
// owns its MigrationState exclusively.
type Controller struct {
	transpiler Transpiler
	reviewer   Reviewer
	rewriter   Rewriter
	contexts   ContextSource
	verifier   ScriptVerifier
	cfg        Config
	logger     *slog.Logger
}

// NewController wires the collaborating services into a controller.
func NewController(
	transpiler Transpiler,
	reviewer Reviewer,
	rewriter Rewriter,
	contexts ContextSource,
	scriptVerifier ScriptVerifier,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Controller{
		transpiler: transpiler,
		reviewer:   reviewer,
		rewriter:   rewriter,
		contexts:   contexts,
		verifier:   scriptVerifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// RunAsset drives one asset to a terminal phase and returns the final state.
// It never returns a non-terminal phase and never panics past the boundary of
// a collaborator call.
func (c *Controller) RunAsset(ctx context.Context, st MigrationState) MigrationState {
	log := c.logger.With("asset", st.Identifier)

	st = c.transpile(ctx, st, log)
	if st.Phase.Terminal() {
		return st
	}

	for {
		st = c.review(ctx, st, log)

		if st.Phase == PhaseReviewedOK {
			st = c.verify(ctx, st, log)
			if st.Phase == PhaseVerifiedOK {
				return st
			}
		}

		// Review rejection or verification failure: attempt a corrective
		// rewrite. The retry counter increases by exactly one per pass and is
		// bounded by MaxRetries, which guarantees termination.
		st = c.correct(ctx, st, log)
		if st.RetryCount >= c.cfg.MaxRetries {
			st.Phase = PhaseFailed
			st.LastError = terminalMessage(st.LastError, c.cfg.MaxRetries)
			log.Error("asset failed", "retries", st.RetryCount, "error", st.LastError)
			return st
		}
	}
}

// transpile is the entry transition. Transpile errors are terminal: a source
// script the parser cannot understand is not something corrective rewriting
// can recover.
func (c *Controller) transpile(ctx context.Context, st MigrationState, log *slog.Logger) MigrationState {
	log.Info("transpiling", "source", c.cfg.SourceDialect, "target", c.cfg.TargetDialect)

	target, err := c.transpiler.Transpile(ctx, st.SourceText, c.cfg.SourceDialect, c.cfg.TargetDialect)
	if err != nil {
		st.TargetText = st.SourceText
		st.LastError = err.Error()
		st.Phase = PhaseFailed
		log.Error("transpilation failed", "error", err)
		return st
	}
	st.TargetText = target
	st.Phase = PhasePending
	return st
}

func (c *Controller) review(ctx context.Context, st MigrationState, log *slog.Logger) MigrationState {
	log.Info("reviewing candidate")

	verdict, err := c.reviewer.Review(ctx, st.TargetText)
	if err != nil {
		// A broken review service is indistinguishable from a rejection for
		// control purposes; the error text becomes the rewrite feedback.
		st.Phase = PhaseReviewedFail
		st.LastError = fmt.Sprintf("review service error: %v", err)
		log.Warn("review service failed", "error", err)
		return st
	}
	if verdict.Passed {
		st.Phase = PhaseReviewedOK
		return st
	}
	st.Phase = PhaseReviewedFail
	st.LastError = verdict.Rationale
	return st
}

func (c *Controller) verify(ctx context.Context, st MigrationState, log *slog.Logger) MigrationState {
	log.Info("verifying against target database")

	res := c.verifier.Verify(ctx, st.TargetText)
	st.Stats = ExecutionStats{
		ExecutedCount:     res.ExecutedCount,
		SkippedStatements: res.SkippedStatements,
	}
	if res.Success {
		st.Phase = PhaseVerifiedOK
		st.LastError = ""
		if res.Notes != "" {
			log.Info("verification passed", "notes", res.Notes)
		}
		return st
	}
	st.Phase = PhaseVerifiedFail
	st.LastError = res.Error
	return st
}

// correct invokes the rewrite service with the cached schema context, the
// current candidate, and the last diagnostic. The schema context is built
// lazily here, on the first corrective pass only.
func (c *Controller) correct(ctx context.Context, st MigrationState, log *slog.Logger) MigrationState {
	st.RetryCount++
	log.Info("corrective rewrite", "attempt", st.RetryCount)

	if !st.ContextComputed {
		res, err := c.contexts.Build(ctx, st.SourceText)
		if err != nil {
			// Missing schema hints degrade the rewrite but never block it.
			log.Warn("schema context unavailable", "error", err)
		} else {
			st.ContextDocument = res.Text
			st.ReferencedSchemas = res.Schemas
		}
		st.ContextComputed = true
	}

	rewritten, err := c.rewriter.Rewrite(ctx, st.ContextDocument, st.TargetText, st.LastError)
	if err != nil {
		// Keep the current candidate; the bounded loop still terminates.
		st.LastError = fmt.Sprintf("rewrite service error: %v", err)
		log.Warn("rewrite service failed", "error", err)
		return st
	}

	cleaned := StripFences(rewritten)
	normalized, ok := renormalize(cleaned)
	if !ok {
		log.Warn("rewritten SQL did not re-parse; keeping raw text")
	}
	st.TargetText = normalized
	return st
}

// terminalMessage combines the last specific error with the retry-exhaustion
// notice, without duplicating the notice when the error already carries it.
func terminalMessage(lastError string, maxRetries int) string {
	notice := fmt.Sprintf("Max retries (%d) exceeded", maxRetries)
	if lastError == "" {
		return notice
	}
	if strings.Contains(strings.ToLower(lastError), "max retries") {
		return lastError
	}
	return fmt.Sprintf("%s. Last error: %s", notice, lastError)
}

// Package verifier executes candidate SQL against a live target database
// under a strict safety policy. Verify mode proves executability inside a
// transaction that is always rolled back; apply mode commits on full success.
// Statements classified dangerous or procedural are only executed when the
// corresponding policy flag is set, and everything filtered out is reported
// as skipped rather than silently dropped.
package verifier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Policy controls which statement categories may be executed automatically.
// Both flags default to false: nothing mutating runs without opting in.
type Policy struct {
	AllowDangerousStatements bool
	AllowProcedureExecution  bool
}

// Options configures a Verifier.
type Options struct {
	Policy
	// StatementTimeoutMS is applied per connection via SET statement_timeout.
	// Zero disables the timeout. A timed-out statement surfaces through the
	// same diagnostic path as any other database error.
	StatementTimeoutMS int
}

// ConnectFunc opens a fresh connection to the target database. The verifier
// opens one per call and closes it before returning, so failures stay
// isolated to a single asset.
type ConnectFunc func(ctx context.Context) (*sql.DB, error)

// Result is the outcome of one verify or apply call.
type Result struct {
	Success           bool
	Error             string
	ExecutedCount     int
	SkippedStatements []string
	Notes             string
}

// Verifier drives policy-filtered execution of SQL scripts.
type Verifier struct {
	connect ConnectFunc
	opts    Options
	logger  *slog.Logger
}

// New creates a Verifier that obtains target connections from connect.
func New(connect ConnectFunc, opts Options, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{connect: connect, opts: opts, logger: logger}
}

// Verify executes the allowed subset of the script inside a transaction and
// rolls it back regardless of outcome.
func (v *Verifier) Verify(ctx context.Context, script string) Result {
	return v.run(ctx, script, false)
}

// Apply executes the allowed subset of the script and commits on full
// success; any failure rolls the transaction back. Apply is a distinct
// operation and is never entered implicitly from Verify.
func (v *Verifier) Apply(ctx context.Context, script string) Result {
	return v.run(ctx, script, true)
}

func (v *Verifier) run(ctx context.Context, script string, apply bool) Result {
	if strings.TrimSpace(script) == "" {
		return Result{Error: "empty SQL script"}
	}

	executable, skipped, err := v.filter(script)
	if err != nil {
		return Result{Error: err.Error()}
	}
	if len(executable) == 0 {
		// Nothing survived filtering. That is an auditable no-op, not a
		// failure.
		note := "No executable statements after safety filtering"
		if !apply && len(skipped) > 0 {
			note = "All statements skipped due to verification safety settings; functional data checks must be done manually."
		}
		return Result{Success: true, SkippedStatements: skipped, Notes: note}
	}

	db, err := v.connect(ctx)
	if err != nil {
		return Result{Error: fmt.Sprintf("target connection failed: %v", err), SkippedStatements: skipped}
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Result{Error: fmt.Sprintf("failed to begin transaction: %v", err), SkippedStatements: skipped}
	}
	committed := false
	defer func() {
		// Rollback is the terminating action on every path that did not
		// commit; verification must never persist side effects.
		if !committed {
			tx.Rollback()
		}
	}()

	if v.opts.StatementTimeoutMS > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET statement_timeout = %d", v.opts.StatementTimeoutMS)); err != nil {
			return Result{Error: fmt.Sprintf("failed to set statement timeout: %v", err), SkippedStatements: skipped}
		}
	}

	executed := 0
	for i, stmt := range executable {
		v.logger.Debug("executing statement", "index", i+1, "category", stmt.Category.String())
		if _, err := tx.ExecContext(ctx, stmt.Text); err != nil {
			diag := composeDiagnostic(i+1, err, stmt.Text)
			v.logger.Warn("verification failed", "error", diag)
			return Result{Error: diag, ExecutedCount: executed, SkippedStatements: skipped}
		}
		executed++
	}

	if apply {
		if err := tx.Commit(); err != nil {
			return Result{Error: fmt.Sprintf("commit failed: %v", err), ExecutedCount: executed, SkippedStatements: skipped}
		}
		committed = true
		v.logger.Info("applied statements to target", "executed", executed, "skipped", len(skipped))
		return Result{
			Success:           true,
			ExecutedCount:     executed,
			SkippedStatements: skipped,
			Notes:             "Statements applied to target database.",
		}
	}

	v.logger.Info("verification passed, transaction rolled back",
		"executed", executed, "skipped", len(skipped))
	return Result{
		Success:           true,
		ExecutedCount:     executed,
		SkippedStatements: skipped,
		Notes:             "Data parity is not validated; please run your own comparisons.",
	}
}

// filter splits and classifies the script and partitions it into statements
// allowed by policy and statements to record as skipped.
func (v *Verifier) filter(script string) (executable []ClassifiedStatement, skipped []string, err error) {
	statements, err := splitAndClassify(script)
	if err != nil {
		return nil, nil, err
	}
	for _, stmt := range statements {
		switch stmt.Category {
		case CategoryProcedural:
			if !v.opts.AllowProcedureExecution {
				skipped = append(skipped, stmt.Text)
				continue
			}
		case CategoryDangerous:
			if !v.opts.AllowDangerousStatements {
				skipped = append(skipped, stmt.Text)
				continue
			}
		}
		executable = append(executable, stmt)
	}
	return executable, skipped, nil
}

// composeDiagnostic folds a database error into the single-line diagnostic
// handed to the corrective rewrite: failing statement index, primary message,
// server-provided context when present, and the literal offending SQL.
func composeDiagnostic(index int, err error, stmtText string) string {
	primary, where := "", ""

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		primary = pgErr.Message
		where = pgErr.Where
	case errors.As(err, &pqErr):
		primary = pqErr.Message
		where = pqErr.Where
	}
	if primary == "" {
		primary = err.Error()
	}
	if primary == "" {
		primary = "Unknown database error"
	}

	msg := fmt.Sprintf("Statement #%d failed: %s", index, primary)
	if where != "" {
		msg += " | Context: " + where
	}
	msg += " | SQL: " + stmtText
	return msg
}

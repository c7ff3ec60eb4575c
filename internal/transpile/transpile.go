// Package transpile turns source-dialect SQL into a candidate PostgreSQL
// script. For Postgres-compatible sources the local transpiler parses and
// deparses each statement, which both validates the script and normalizes its
// formatting. Other dialects are delegated to a model-backed fallback.
package transpile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// postgresCompatible lists the dialects the local parser can read directly.
var postgresCompatible = map[string]bool{
	"postgres":   true,
	"postgresql": true,
	"pg":         true,
	"redshift":   true,
}

// Fallback translates dialects the local parser cannot read.
type Fallback interface {
	Transpile(ctx context.Context, sqlText, sourceDialect, targetDialect string) (string, error)
}

// Transpiler is the parser-based transpiler with an optional Fallback for
// foreign dialects.
type Transpiler struct {
	fallback Fallback
	logger   *slog.Logger
}

// New returns a Transpiler. fallback may be nil, in which case foreign
// dialects fail with an explanatory error.
func New(fallback Fallback, logger *slog.Logger) *Transpiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transpiler{fallback: fallback, logger: logger}
}

// Transpile produces a PostgreSQL script for the given source text. Parse
// errors are returned as-is; the caller treats them as terminal.
func (t *Transpiler) Transpile(ctx context.Context, sqlText, sourceDialect, targetDialect string) (string, error) {
	dialect := strings.ToLower(strings.TrimSpace(sourceDialect))
	if !postgresCompatible[dialect] {
		if t.fallback == nil {
			return "", fmt.Errorf("no transpiler available for source dialect %q", sourceDialect)
		}
		t.logger.Debug("delegating to fallback transpiler", "source", sourceDialect)
		return t.fallback.Transpile(ctx, sqlText, sourceDialect, targetDialect)
	}
	return Normalize(sqlText)
}

// Normalize parses the script and deparses every statement back to canonical
// form, one statement per line, each terminated with a semicolon.
func Normalize(sqlText string) (string, error) {
	parsed, err := pg_query.Parse(sqlText)
	if err != nil {
		return "", fmt.Errorf("SQL parse error: %w", err)
	}
	if len(parsed.Stmts) == 0 {
		return "", fmt.Errorf("no statements found in source script")
	}

	lines := make([]string, 0, len(parsed.Stmts))
	for _, raw := range parsed.Stmts {
		out, err := pg_query.Deparse(&pg_query.ParseResult{Stmts: []*pg_query.RawStmt{{Stmt: raw.Stmt}}})
		if err != nil {
			return "", fmt.Errorf("failed to render statement: %w", err)
		}
		lines = append(lines, out+";")
	}
	return strings.Join(lines, "\n"), nil
}
